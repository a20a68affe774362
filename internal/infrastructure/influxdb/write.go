package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/tidwall/gjson"
)

// Measurement names.
const (
	MeasurementMessage = "mqtt_message"
	MeasurementCommand = "mqtt_command"
)

// maxPayloadFields caps how many payload fields become point fields.
const maxPayloadFields = 32

// Reserved point fields; payload keys with these names are prefixed.
var reservedFields = map[string]bool{"size_bytes": true, "qos": true, "retained": true}

// WriteMessage records one received MQTT message.
//
// The point is tagged with the topic. Numeric and boolean top-level fields
// of a JSON object payload are copied as fields; anything else only
// contributes its size.
//
// Parameters:
//   - topic: Concrete topic the message arrived on
//   - payload: Message payload as received
//   - qos: Delivery QoS
//   - retained: Broker retain flag
//   - at: Receive time
func (c *Client) WriteMessage(topic, payload string, qos byte, retained bool, at time.Time) {
	fields := payloadFields(payload)
	fields["size_bytes"] = len(payload)
	fields["qos"] = int(qos)
	fields["retained"] = retained

	c.WritePoint(MeasurementMessage, map[string]string{"topic": topic}, fields, at)
}

// WriteCommand records one device command dispatch attempt.
//
// Parameters:
//   - name: Command name (set_power, set_temperature)
//   - topic: Command topic
//   - outcome: published, rejected or failed
//   - value: Requested value; only numbers and booleans are kept
//   - at: Dispatch time
func (c *Client) WriteCommand(name, topic, outcome string, value any, at time.Time) {
	fields := map[string]any{"count": 1}
	switch v := value.(type) {
	case float64, int, bool:
		fields["value"] = v
	}

	c.WritePoint(MeasurementCommand, map[string]string{
		"command": name,
		"topic":   topic,
		"outcome": outcome,
	}, fields, at)
}

// WritePoint writes a point with full control over tags, fields and time.
// A zero timestamp means now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any, at time.Time) {
	if !c.IsConnected() {
		return
	}
	if at.IsZero() {
		at = time.Now()
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, at))
}

// payloadFields extracts numeric and boolean top-level fields from a JSON
// object payload.
func payloadFields(payload string) map[string]any {
	fields := make(map[string]any)
	if !gjson.Valid(payload) {
		return fields
	}
	doc := gjson.Parse(payload)
	if !doc.IsObject() {
		return fields
	}

	doc.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if reservedFields[name] {
			name = "payload_" + name
		}
		switch value.Type {
		case gjson.Number:
			fields[name] = value.Float()
		case gjson.True, gjson.False:
			fields[name] = value.Bool()
		default:
			return true
		}
		return len(fields) < maxPayloadFields
	})
	return fields
}
