package session

import "errors"

// Domain-specific errors for session operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned by Publish when the session is not Connected.
	// It is retryable: the controller reconnects on its own.
	ErrNotConnected = errors.New("session: not connected")

	// ErrInvalidTopic is returned for malformed topic names or filters.
	ErrInvalidTopic = errors.New("session: invalid topic")

	// ErrInvalidQoS is returned when a QoS level is not 0, 1 or 2.
	ErrInvalidQoS = errors.New("session: invalid QoS level (must be 0, 1, or 2)")

	// ErrNotSubscribed is returned by Unsubscribe for an unknown filter.
	// It is a soft error; the subscription set is unchanged.
	ErrNotSubscribed = errors.New("session: topic filter not subscribed")

	// ErrSubscribeFailed is returned when the broker rejects a subscribe
	// issued on a live connection. The previous entry, if any, is restored.
	ErrSubscribeFailed = errors.New("session: subscribe failed")

	// ErrUnsubscribeFailed is returned when the wire unsubscribe fails.
	// The entry is still removed locally.
	ErrUnsubscribeFailed = errors.New("session: unsubscribe failed")

	// ErrPublishFailed is returned when the transport rejects a publish on a
	// live connection.
	ErrPublishFailed = errors.New("session: publish failed")

	// ErrRetriesExhausted is recorded as the last error when the retry policy
	// gives up.
	ErrRetriesExhausted = errors.New("session: connection retries exhausted")
)
