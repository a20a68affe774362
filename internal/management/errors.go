package management

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned by New when no API URL is configured.
	ErrNotConfigured = errors.New("management: EMQX API URL not configured")

	// ErrInvalidRequest is returned for requests rejected before any HTTP call.
	ErrInvalidRequest = errors.New("management: invalid request")

	// ErrRequestFailed wraps transport-level failures (DNS, refused, timeout).
	ErrRequestFailed = errors.New("management: request failed")
)

// APIError is a non-2xx response from the EMQX API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EMQX API Error: %d - %s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}
