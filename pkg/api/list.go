package api

// ListResponse is the envelope for paginated collections.
type ListResponse[T any] struct {
	Object     string `json:"object"`
	Data       []T    `json:"data"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	TotalItems int    `json:"total_items"`
	TotalPages int    `json:"total_pages"`
}

// DataResponse wraps a single resource.
type DataResponse[T any] struct {
	Data T `json:"data"`
}

// ActiveRequest is the body of the toggle endpoints.
type ActiveRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

// PreviewRequest carries placeholder values for a message preview.
type PreviewRequest struct {
	Variables map[string]string `json:"variables"`
}

// PreviewResponse is the rendered message and the placeholders it uses.
// Subject is only set for email templates. Unknown lists placeholders no
// value will ever be supplied for.
type PreviewResponse struct {
	Subject   string   `json:"subject,omitempty"`
	Rendered  string   `json:"rendered"`
	Variables []string `json:"variables"`
	Unknown   []string `json:"unknown"`
}
