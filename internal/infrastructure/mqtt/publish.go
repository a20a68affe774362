package mqtt

import (
	"context"
	"fmt"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends a message to the specified MQTT topic.
//
// Parameters:
//   - ctx: Bounds the wait for the broker acknowledgment (QoS 1 and 2)
//   - topic: The topic to publish to (e.g., "classroom/control/ac"), no wildcards
//   - payload: The message payload (typically JSON, max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
//
// QoS Levels:
//   - 0: At most once. Publish returns once the message is handed to the
//     transport; there is no broker confirmation to wait for.
//   - 1: At least once. Publish waits for PUBACK.
//   - 2: Exactly once between client and broker. Publish waits for PUBCOMP.
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *client) Publish(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error {
	// Validate inputs
	if err := ValidateTopic(topic); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	// Check connection state
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)

	if qos == 0 {
		select {
		case <-token.Done():
			if err := token.Error(); err != nil {
				return fmt.Errorf("%w: %w", ErrPublishFailed, err)
			}
		default:
		}
		return nil
	}

	if err := waitToken(ctx, token, defaultPublishTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}
