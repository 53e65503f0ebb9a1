// Package listing implements the search and pagination shared by the admin tables.
package listing

import "strings"

// PageSizes are the page sizes offered by the admin tables.
var PageSizes = []int{10, 20, 50}

// DefaultPageSize is used when a request asks for a size outside PageSizes.
const DefaultPageSize = 10

// Page is one slice of a filtered list.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// NormalizePageSize maps size onto PageSizes.
func NormalizePageSize(size int) int {
	for _, s := range PageSizes {
		if s == size {
			return size
		}
	}
	return DefaultPageSize
}

// Filter keeps the items where at least one of fields(item) contains term,
// compared case-insensitively. A blank term keeps everything.
func Filter[T any](items []T, term string, fields func(T) []string) []T {
	needle := strings.ToLower(strings.TrimSpace(term))
	out := make([]T, 0, len(items))
	for _, it := range items {
		if needle == "" || matches(fields(it), needle) {
			out = append(out, it)
		}
	}
	return out
}

func matches(fields []string, needle string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

// TotalPages is ceil(n / size).
func TotalPages(n, size int) int {
	if size <= 0 || n <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// ClampPage keeps page within [1, TotalPages]. It is how a table keeps its
// cursor valid after the filtered set shrinks.
func ClampPage(page, n, size int) int {
	total := TotalPages(n, size)
	if page > total {
		page = total
	}
	if page < 1 {
		page = 1
	}
	return page
}

// Paginate returns page (1-based) of items. size is normalized and page clamped.
func Paginate[T any](items []T, page, size int) Page[T] {
	size = NormalizePageSize(size)
	n := len(items)
	page = ClampPage(page, n, size)

	start := (page - 1) * size
	end := start + size
	if start > n {
		start = n
	}
	if end > n {
		end = n
	}

	return Page[T]{
		Items:      items[start:end],
		Page:       page,
		PageSize:   size,
		TotalItems: n,
		TotalPages: TotalPages(n, size),
	}
}

// Split cuts items into consecutive pages of size. Any size > 0 is accepted.
func Split[T any](items []T, size int) [][]T {
	if size <= 0 {
		return nil
	}
	pages := make([][]T, 0, TotalPages(len(items), size))
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		pages = append(pages, items[start:end])
	}
	return pages
}
