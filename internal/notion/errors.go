package notion

import "fmt"

// APIError is a non-2xx response from the Notion API
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("notion api: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("notion api: unexpected status %d", e.StatusCode)
}

// HTTPStatus returns the HTTP status code for retry classification
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}
