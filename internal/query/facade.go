package query

import (
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/history"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/session"
)

// Reader is the read side of the history store. *history.Store implements it.
type Reader interface {
	Latest(topic string) (history.Record, bool)
	History(filter history.Filter) []history.Record
	TopicCount() int
}

// StateSource reports the session state. *session.Controller implements it.
type StateSource interface {
	State() session.State
}

// Logger is the logging surface the facade needs.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// StatusSource names one field of a device status document.
type StatusSource struct {
	// Name is the key in DeviceStatus.Fields.
	Name  string
	Topic string

	// Fields are tried in order; the first present one wins.
	Fields []string
}

// DeviceStatus reconciles several status topics into one document.
// Missing topics are reported per field; the document is never all-or-nothing.
type DeviceStatus struct {
	Fields       map[string]Value `json:"fields"`
	Available    []string         `json:"available"`
	Missing      []string         `json:"missing"`
	SessionState session.State    `json:"session_state"`
}

// Complete reports whether every source produced a value.
func (d DeviceStatus) Complete() bool {
	return len(d.Missing) == 0
}

// Snapshot is a labelled slice of history.
type Snapshot struct {
	SessionState session.State    `json:"session_state"`
	Count        int              `json:"count"`
	Records      []history.Record `json:"messages"`

	// TotalTopics is the number of topics with any history.
	TotalTopics int `json:"total_topics"`
}

// Facade presents derived views over the history store.
//
// Thread Safety:
//   - All methods are safe for concurrent use; the facade holds no state
//     of its own.
type Facade struct {
	store   Reader
	session StateSource
	logger  Logger
}

// New creates a Facade. sess may be nil, in which case views report
// session.Disconnected.
func New(store Reader, sess StateSource) *Facade {
	return &Facade{store: store, session: sess, logger: noopLogger{}}
}

// SetLogger sets the logger used to report malformed payloads.
func (f *Facade) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	f.logger = logger
}

// SessionState returns the current session state.
func (f *Facade) SessionState() session.State {
	if f.session == nil {
		return session.Disconnected
	}
	return f.session.State()
}

// LatestValue extracts field from the latest message on topic. field is
// matched as a literal key first and then as a gjson path.
func (f *Facade) LatestValue(topic, field string) Value {
	return f.LatestValueOf(topic, field)
}

// LatestValueOf extracts the first present field of fields from the latest
// message on topic.
func (f *Facade) LatestValueOf(topic string, fields ...string) Value {
	rec, ok := f.store.Latest(topic)
	if !ok {
		v := Value{Topic: topic, Status: StatusNoData}
		if len(fields) > 0 {
			v.Field = fields[0]
		}
		return v
	}

	v := extract(rec, fields)
	if v.Status == StatusMalformed {
		f.logger.Warn("malformed payload", "topic", topic, "received_at", rec.ReceivedAt)
	}
	return v
}

// DeviceStatus looks up every source and reports availability per field.
func (f *Facade) DeviceStatus(sources []StatusSource) DeviceStatus {
	ds := DeviceStatus{
		Fields:       make(map[string]Value, len(sources)),
		Available:    []string{},
		Missing:      []string{},
		SessionState: f.SessionState(),
	}

	for _, src := range sources {
		v := f.LatestValueOf(src.Topic, src.Fields...)
		ds.Fields[src.Name] = v
		if v.Found {
			ds.Available = append(ds.Available, src.Name)
		} else {
			ds.Missing = append(ds.Missing, src.Name)
		}
	}
	return ds
}

// History returns filtered history, newest first, labelled with the session state.
func (f *Facade) History(filter history.Filter) Snapshot {
	records := f.store.History(filter)
	if records == nil {
		records = []history.Record{}
	}
	return Snapshot{
		SessionState: f.SessionState(),
		Count:        len(records),
		Records:      records,
		TotalTopics:  f.store.TopicCount(),
	}
}

// Latest returns the latest record on topic, if any, labelled with the session state.
func (f *Facade) Latest(topic string) Snapshot {
	snap := Snapshot{
		SessionState: f.SessionState(),
		Records:      []history.Record{},
		TotalTopics:  f.store.TopicCount(),
	}
	if rec, ok := f.store.Latest(topic); ok {
		snap.Records = append(snap.Records, rec)
		snap.Count = 1
	}
	return snap
}
