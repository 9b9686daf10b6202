package domain

import "fmt"

// HTTPError is the normalized failure shape attached to store transitions.
type HTTPError struct {
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}
