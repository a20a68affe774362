// Package command turns control intents into device command documents and
// publishes them through the broker session.
//
// Every command is published at QoS 1, not retained, on the device command
// topic as:
//
//	{"command":"set_temperature","value":22.5,"unit":"°C","timestamp":"...","device":"classroom-ac-controller"}
//
// Validation failures (ErrOutOfRange, ErrInvalidParameter) are caller errors
// and never reach the broker. ErrNotConnected and ErrRateLimited are
// retryable; use IsRetryable to tell them apart.
package command
