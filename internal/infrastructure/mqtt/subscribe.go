package mqtt

import (
	"context"
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// subackFailure is the SUBACK return code for a refused filter.
const subackFailure = 0x80

// Subscribe registers a topic filter on the broker.
//
// Messages matching the filter are delivered to Handlers.OnMessage of the
// Dial call that created this connection.
//
// Parameters:
//   - ctx: Bounds the wait for SUBACK
//   - filter: The topic filter (supports + and # wildcards)
//   - qos: Maximum QoS level for received messages
//
// Wildcards:
//   - +: Single-level wildcard (e.g., "classroom/+/status")
//   - #: Multi-level wildcard, last level only (e.g., "classroom/#")
//
// Returns:
//   - error: nil on success, ErrSubscribeFailed if the broker refused the filter
func (c *client) Subscribe(ctx context.Context, filter string, qos byte) error {
	if err := ValidateFilter(filter); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Subscribe(filter, qos, nil)
	if err := waitToken(ctx, token, defaultPublishTimeout); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, filter, err)
	}

	if st, ok := token.(*pahomqtt.SubscribeToken); ok {
		if granted, found := st.Result()[filter]; found && granted == subackFailure {
			return fmt.Errorf("%w: broker refused %s", ErrSubscribeFailed, filter)
		}
	}

	return nil
}

// Unsubscribe removes a topic filter from the broker.
//
// Parameters:
//   - ctx: Bounds the wait for UNSUBACK
//   - filter: The exact filter string used in Subscribe
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *client) Unsubscribe(ctx context.Context, filter string) error {
	if err := ValidateFilter(filter); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Unsubscribe(filter)
	if err := waitToken(ctx, token, defaultPublishTimeout); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnsubscribeFailed, filter, err)
	}

	return nil
}
