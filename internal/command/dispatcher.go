package command

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Command names used on the wire.
const (
	SetPower       = "set_power"
	SetTemperature = "set_temperature"
)

// commandQoS is the delivery level for every command.
const commandQoS = 1

// Publisher sends a message to the broker. *session.Controller implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error
}

// Auditor receives one Entry per dispatch attempt, including rejected ones.
type Auditor interface {
	RecordCommand(ctx context.Context, entry Entry) error
}

// Logger is the logging surface the dispatcher needs.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Command is a control intent before validation.
type Command struct {
	Name  string
	Value any
	Unit  string
}

// Document is the command record published to the device.
// Field names are fixed; devices parse them.
type Document struct {
	Command   string `json:"command"`
	Value     any    `json:"value"`
	Unit      string `json:"unit,omitempty"`
	Timestamp string `json:"timestamp"`
	Device    string `json:"device"`
}

// Result describes a published command.
type Result struct {
	ID       string   `json:"id"`
	Topic    string   `json:"topic"`
	QoS      byte     `json:"qos"`
	Document Document `json:"command"`
}

// Outcome of a dispatch attempt, as recorded in the audit trail.
const (
	OutcomePublished = "published"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Entry is one audited dispatch attempt.
type Entry struct {
	ID      string
	Command string
	Value   any
	Topic   string
	Payload string
	Outcome string
	Error   string
	At      time.Time
}

// Config configures a Dispatcher.
type Config struct {
	// Topic is the device command topic.
	Topic string

	// DeviceID is placed in every command document.
	DeviceID string

	// TempMin and TempMax bound SetTargetTemperature, inclusive.
	TempMin float64
	TempMax float64

	// RateLimit is commands per second; zero disables limiting.
	RateLimit float64
	Burst     int
}

// Dispatcher validates control intents and publishes them as command documents.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Dispatcher struct {
	pub     Publisher
	cfg     Config
	limiter *rate.Limiter
	auditor Auditor
	logger  Logger
	now     func() time.Time
}

// New creates a Dispatcher publishing through pub.
func New(pub Publisher, cfg Config) *Dispatcher {
	d := &Dispatcher{
		pub:    pub,
		cfg:    cfg,
		logger: noopLogger{},
		now:    time.Now,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return d
}

// SetLogger sets the logger. Call before first use.
func (d *Dispatcher) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	d.logger = logger
}

// SetAuditor enables the audit trail. Call before first use.
func (d *Dispatcher) SetAuditor(auditor Auditor) {
	d.auditor = auditor
}

// Range returns the accepted target temperature range.
func (d *Dispatcher) Range() (lo, hi float64) {
	return d.cfg.TempMin, d.cfg.TempMax
}

// SetPower switches the device on or off.
func (d *Dispatcher) SetPower(ctx context.Context, on bool) (*Result, error) {
	return d.Dispatch(ctx, Command{Name: SetPower, Value: on})
}

// SetTargetTemperature sets the device's target temperature in °C.
//
// Returns ErrOutOfRange, without publishing, when value is outside
// [TempMin, TempMax].
func (d *Dispatcher) SetTargetTemperature(ctx context.Context, value float64) (*Result, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		err := fmt.Errorf("%w: temperature must be a finite number", ErrInvalidParameter)
		d.reject(ctx, Command{Name: SetTemperature, Value: value}, err)
		return nil, err
	}
	if value < d.cfg.TempMin || value > d.cfg.TempMax {
		err := fmt.Errorf("%w: temperature %g°C outside %g-%g°C", ErrOutOfRange, value, d.cfg.TempMin, d.cfg.TempMax)
		d.reject(ctx, Command{Name: SetTemperature, Value: value}, err)
		return nil, err
	}
	return d.Dispatch(ctx, Command{Name: SetTemperature, Value: value, Unit: "°C"})
}

// Dispatch builds the command document for cmd and publishes it at QoS 1
// on the device command topic.
//
// Errors:
//   - ErrInvalidParameter: missing name or value (not retryable)
//   - ErrRateLimited: too many commands (retryable)
//   - ErrNotConnected: session not connected (retryable)
//   - anything else from the publisher
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Name == "" {
		err := fmt.Errorf("%w: command name is required", ErrInvalidParameter)
		d.reject(ctx, cmd, err)
		return nil, err
	}
	if cmd.Value == nil {
		err := fmt.Errorf("%w: %s requires a value", ErrInvalidParameter, cmd.Name)
		d.reject(ctx, cmd, err)
		return nil, err
	}
	if d.limiter != nil && !d.limiter.Allow() {
		err := fmt.Errorf("%w: %s", ErrRateLimited, cmd.Name)
		d.reject(ctx, cmd, err)
		return nil, err
	}

	doc := Document{
		Command:   cmd.Name,
		Value:     cmd.Value,
		Unit:      cmd.Unit,
		Timestamp: d.now().UTC().Format(time.RFC3339),
		Device:    d.cfg.DeviceID,
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		err = fmt.Errorf("%w: encoding %s: %w", ErrInvalidParameter, cmd.Name, err)
		d.reject(ctx, cmd, err)
		return nil, err
	}

	res := &Result{
		ID:       uuid.NewString(),
		Topic:    d.cfg.Topic,
		QoS:      commandQoS,
		Document: doc,
	}

	if err := d.pub.Publish(ctx, d.cfg.Topic, payload, commandQoS, false); err != nil {
		d.logger.Warn("command publish failed",
			"command", cmd.Name,
			"topic", d.cfg.Topic,
			"retryable", IsRetryable(err),
			"error", err,
		)
		d.audit(ctx, Entry{
			ID: res.ID, Command: cmd.Name, Value: cmd.Value, Topic: d.cfg.Topic,
			Payload: string(payload), Outcome: OutcomeFailed, Error: err.Error(),
		})
		return nil, err
	}

	d.logger.Info("command published", "command", cmd.Name, "value", cmd.Value, "topic", d.cfg.Topic)
	d.audit(ctx, Entry{
		ID: res.ID, Command: cmd.Name, Value: cmd.Value, Topic: d.cfg.Topic,
		Payload: string(payload), Outcome: OutcomePublished,
	})
	return res, nil
}

// reject audits a command refused before publishing.
func (d *Dispatcher) reject(ctx context.Context, cmd Command, err error) {
	d.audit(ctx, Entry{
		ID:      uuid.NewString(),
		Command: cmd.Name,
		Value:   cmd.Value,
		Topic:   d.cfg.Topic,
		Outcome: OutcomeRejected,
		Error:   err.Error(),
	})
}

// audit records entry, best effort. Audit failures never fail a command.
func (d *Dispatcher) audit(ctx context.Context, entry Entry) {
	if d.auditor == nil {
		return
	}
	entry.At = d.now().UTC()
	if err := d.auditor.RecordCommand(ctx, entry); err != nil {
		d.logger.Warn("command audit failed", "command", entry.Command, "error", err)
	}
}
