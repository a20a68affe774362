package query

import (
	"time"

	"github.com/tidwall/gjson"

	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/history"
)

// Status classifies the outcome of a field lookup.
type Status int

// Lookup outcomes.
const (
	StatusOK Status = iota
	StatusNoData
	StatusMalformed
	StatusFieldMissing
)

// String returns the snake_case status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoData:
		return "no_data"
	case StatusMalformed:
		return "malformed"
	case StatusFieldMissing:
		return "field_missing"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Value is the result of extracting one field from the latest message on a topic.
type Value struct {
	Topic string `json:"topic"`

	// Field is the field name that matched, or the first one tried.
	Field string `json:"field"`

	// Value holds the decoded field: float64, string, bool, map[string]any or []any.
	Value any  `json:"value"`
	Found bool `json:"found"`

	Status Status `json:"status"`

	// ReceivedAt is set whenever a record exists.
	ReceivedAt *time.Time `json:"timestamp,omitempty"`

	// Raw is the payload, set when the field could not be extracted.
	Raw string `json:"raw_data,omitempty"`

	// Error carries the document's own "error" field, which devices use
	// to report sensor faults.
	Error string `json:"error,omitempty"`

	record history.Record
	doc    gjson.Result
}

// Record returns the history record the value was read from.
// It is the zero Record when Status is StatusNoData.
func (v Value) Record() history.Record {
	return v.record
}

// Lookup returns another field of the same normalised document, such as
// the unit or device ID sent alongside a reading.
func (v Value) Lookup(field string) (any, bool) {
	if !v.doc.Exists() {
		return nil, false
	}
	res, ok := lookup(v.doc, field)
	if !ok {
		return nil, false
	}
	return res.Value(), true
}

// String returns a field of the same document as a string, or def when absent.
func (v Value) String(field, def string) string {
	if !v.doc.Exists() {
		return def
	}
	res, ok := lookup(v.doc, field)
	if !ok {
		return def
	}
	return res.String()
}

// extract runs the two-step decode on rec and looks up the first present field.
func extract(rec history.Record, fields []string) Value {
	received := rec.ReceivedAt
	v := Value{
		Topic:      rec.Topic,
		ReceivedAt: &received,
		record:     rec,
	}
	if len(fields) > 0 {
		v.Field = fields[0]
	}

	if !gjson.Valid(rec.Payload) {
		v.Status = StatusMalformed
		v.Raw = rec.Payload
		return v
	}

	doc := gjson.Parse(rec.Payload)
	if doc.IsArray() {
		doc = doc.Get("0")
	}
	v.doc = doc

	if e := doc.Get("error"); doc.IsObject() && e.Exists() && e.Type != gjson.Null {
		v.Error = e.String()
	}

	if doc.IsObject() {
		for _, field := range fields {
			if res, ok := lookup(doc, field); ok {
				v.Field = field
				v.Value = res.Value()
				v.Found = true
				v.Status = StatusOK
				return v
			}
		}
	}

	v.Status = StatusFieldMissing
	v.Raw = rec.Payload
	return v
}

// lookup finds field in doc as a literal key first, so keys containing
// '.', '*' or '?' match as sent, then as a gjson path for nested values.
func lookup(doc gjson.Result, field string) (gjson.Result, bool) {
	if res := doc.Get(gjson.Escape(field)); res.Exists() && res.Type != gjson.Null {
		return res, true
	}
	if res := doc.Get(field); res.Exists() && res.Type != gjson.Null {
		return res, true
	}
	return gjson.Result{}, false
}
