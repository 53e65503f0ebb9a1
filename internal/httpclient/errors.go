package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// UpstreamError represents an error returned by an upstream service
type UpstreamError struct {
	StatusCode int
	Body       []byte
	URL        string
}

func (e *UpstreamError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("upstream error: status %d from %s: %s", e.StatusCode, e.URL, msg)
	}
	return fmt.Sprintf("upstream error: status %d from %s", e.StatusCode, e.URL)
}

// Message extracts a human-readable message from common error bodies:
// {"error": "..."}, {"error": {"message": "..."}}, {"detail": "..."} and {"message": "..."}.
func (e *UpstreamError) Message() string {
	var body map[string]any
	if err := json.Unmarshal(e.Body, &body); err != nil {
		return strings.TrimSpace(string(e.Body))
	}
	switch v := body["error"].(type) {
	case string:
		return v
	case map[string]any:
		if m, ok := v["message"].(string); ok {
			return m
		}
	}
	for _, k := range []string{"detail", "message", "title"} {
		if m, ok := body[k].(string); ok && m != "" {
			return m
		}
	}
	return ""
}

// IsStatus reports whether err is an UpstreamError with the given status.
func IsStatus(err error, status int) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.StatusCode == status
}
