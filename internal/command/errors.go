package command

import (
	"errors"

	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/session"
)

// Domain-specific errors for command dispatch.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrOutOfRange is returned when a numeric value is outside the device's
	// accepted range. Not retryable; nothing is published.
	ErrOutOfRange = errors.New("command: value out of range")

	// ErrInvalidParameter is returned for missing or malformed command fields.
	// Not retryable; nothing is published.
	ErrInvalidParameter = errors.New("command: invalid parameter")

	// ErrRateLimited is returned when commands arrive faster than the
	// configured rate. Retryable.
	ErrRateLimited = errors.New("command: rate limit exceeded")

	// ErrNotConnected is the session error, re-exported for callers of this
	// package. Retryable.
	ErrNotConnected = session.ErrNotConnected
)

// IsRetryable reports whether the caller may retry the same command later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNotConnected) || errors.Is(err, ErrRateLimited)
}
