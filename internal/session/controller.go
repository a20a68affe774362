package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/history"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/infrastructure/mqtt"
)

// maxQoS is the maximum QoS level supported.
const maxQoS = 2

// Dialer opens broker connections. mqtt.Dialer is the production implementation.
type Dialer interface {
	Dial(ctx context.Context, handlers mqtt.Handlers) (mqtt.Conn, error)
	Broker() string
}

// Recorder receives every inbound message. *history.Store implements it.
type Recorder interface {
	Record(topic string, payload []byte, qos byte, retained bool) history.Record
}

// Logger is the logging surface the controller needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Subscription is one entry of the subscription set, keyed by Filter.
type Subscription struct {
	Filter       string    `json:"topic"`
	QoS          byte      `json:"qos"`
	SubscribedAt time.Time `json:"subscribed_at"`
}

// StateChangeFunc is called after every state transition, outside the
// controller lock. err is the cause for Failed and Disconnected transitions.
type StateChangeFunc func(from, to State, err error)

// Status is a point-in-time view of the session.
type Status struct {
	State          State      `json:"state"`
	Broker         string     `json:"broker"`
	ConnectedSince *time.Time `json:"connected_since,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	FailedAttempts int        `json:"failed_attempts"`
	Subscriptions  int        `json:"subscriptions"`
}

// Controller owns the single broker connection.
//
// It connects asynchronously, records every inbound message into the
// history store, keeps the subscription set and replays it after every
// (re)connect before reporting Connected.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - State, connection and subscription set share one mutex; no network
//     call is made while holding it.
type Controller struct {
	dialer Dialer
	store  Recorder
	opts   Options
	logger Logger

	mu          sync.Mutex
	state       State
	conn        mqtt.Conn
	subs        map[string]Subscription
	lastErr     error
	failures    int
	connectedAt time.Time

	// run loop bookkeeping
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	onStateChange StateChangeFunc

	now func() time.Time
}

// New creates a Controller in the Disconnected state.
//
// Parameters:
//   - dialer: Opens broker connections (address, credentials and TLS live there)
//   - store: Receives every inbound message
//   - opts: Retry policy and connect timeout; zero fields take defaults
func New(dialer Dialer, store Recorder, opts Options) *Controller {
	return &Controller{
		dialer: dialer,
		store:  store,
		opts:   opts.withDefaults(),
		logger: noopLogger{},
		subs:   make(map[string]Subscription),
		now:    time.Now,
	}
}

// SetLogger sets the logger. Passing nil restores the no-op logger.
// Call before Start.
func (c *Controller) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

// SetOnStateChange registers a callback for state transitions.
func (c *Controller) SetOnStateChange(fn StateChangeFunc) {
	c.mu.Lock()
	c.onStateChange = fn
	c.mu.Unlock()
}

// Start begins connecting in the background and returns immediately.
//
// It is idempotent: while the controller is running (Connecting, Connected,
// or waiting to retry) it returns the current state and does nothing.
// Otherwise it moves to Connecting and launches the connection loop, which
// lives until Stop, ctx cancellation, or retry exhaustion.
func (c *Controller) Start(ctx context.Context) State {
	c.mu.Lock()
	if c.running {
		state := c.state
		c.mu.Unlock()
		return state
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.running = true
	c.cancel = cancel
	c.done = done
	c.failures = 0
	notify := c.setStateLocked(Connecting, nil)
	c.mu.Unlock()

	notify()
	go c.run(runCtx, done)
	return Connecting
}

// Stop disconnects gracefully and leaves the controller Disconnected.
//
// It cancels any in-flight connection attempt or retry wait and returns once
// the connection loop has exited. Stop is idempotent; the subscription set is
// kept so a later Start replays it.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if !c.running {
		notify := func() {}
		if c.state != Disconnected {
			notify = c.setStateLocked(Disconnected, nil)
		}
		c.mu.Unlock()
		notify()
		return nil
	}
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done

	// The loop leaves Failed in place on its own exit; an explicit Stop
	// always ends Disconnected, unless a new Start has already taken over.
	c.mu.Lock()
	notify := func() {}
	if c.done == done && !c.running {
		notify = c.setStateLocked(Disconnected, nil)
	}
	c.mu.Unlock()
	notify()

	c.logger.Info("MQTT session stopped")
	return nil
}

// run is the connection loop. It owns every connect, retry and reconnect.
func (c *Controller) run(ctx context.Context, done chan struct{}) {
	defer c.exit(done)

	for {
		conn, lost, err := c.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			failures := c.connectFailed(err)
			if c.opts.Retry.exhausted(failures) {
				c.giveUp(failures)
				return
			}

			delay := c.opts.Retry.Delay(failures)
			c.logger.Warn("MQTT connect failed, retrying",
				"broker", c.dialer.Broker(),
				"attempt", failures,
				"retry_in", delay,
				"error", err,
			)
			if !sleepCtx(ctx, delay) {
				return
			}
			c.transition(Connecting, nil)
			continue
		}

		select {
		case <-ctx.Done():
			if err := conn.Close(); err != nil {
				c.logger.Warn("MQTT close failed", "error", err)
			}
			return

		case err := <-lost:
			c.connectionLost(err)
			// Connecting covers the wait so Start reports the reconnect in progress.
			c.transition(Connecting, nil)
			if !sleepCtx(ctx, c.opts.Retry.InitialDelay) {
				return
			}
		}
	}
}

// connect dials once and replays the subscription set. On success the
// controller is Connected and the returned channel reports connection loss.
func (c *Controller) connect(ctx context.Context) (mqtt.Conn, <-chan error, error) {
	lost := make(chan error, 1)
	handlers := mqtt.Handlers{
		OnMessage: c.handleMessage,
		OnConnectionLost: func(err error) {
			select {
			case lost <- err:
			default:
			}
		},
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	conn, err := c.dialer.Dial(dialCtx, handlers)
	cancel()
	if err != nil {
		return nil, nil, err
	}

	if err := c.replay(ctx, conn); err != nil {
		if cerr := conn.Close(); cerr != nil {
			c.logger.Debug("MQTT close after failed replay", "error", cerr)
		}
		return nil, nil, err
	}

	return conn, lost, nil
}

// replay issues every current subscription on conn, then commits the
// Connected state. Subscribe/Unsubscribe calls made during replay are picked
// up by re-diffing until the set is stable under the lock.
func (c *Controller) replay(ctx context.Context, conn mqtt.Conn) error {
	issued := make(map[string]byte)

	for {
		c.mu.Lock()
		if err := ctx.Err(); err != nil {
			c.mu.Unlock()
			return err
		}

		var pending []Subscription
		for filter, sub := range c.subs {
			if qos, ok := issued[filter]; !ok || qos != sub.QoS {
				pending = append(pending, sub)
			}
		}
		var removed []string
		for filter := range issued {
			if _, ok := c.subs[filter]; !ok {
				removed = append(removed, filter)
			}
		}

		if len(pending) == 0 && len(removed) == 0 {
			c.conn = conn
			c.connectedAt = c.now()
			c.failures = 0
			c.lastErr = nil
			notify := c.setStateLocked(Connected, nil)
			c.mu.Unlock()

			notify()
			c.logger.Info("MQTT session connected",
				"broker", c.dialer.Broker(),
				"subscriptions", len(issued),
			)
			return nil
		}
		c.mu.Unlock()

		sort.Slice(pending, func(i, j int) bool { return pending[i].Filter < pending[j].Filter })
		for _, sub := range pending {
			if err := conn.Subscribe(ctx, sub.Filter, sub.QoS); err != nil {
				if ctx.Err() != nil || errors.Is(err, mqtt.ErrNotConnected) {
					return err
				}
				c.logger.Warn("MQTT resubscribe failed", "topic", sub.Filter, "error", err)
			}
			issued[sub.Filter] = sub.QoS
		}
		for _, filter := range removed {
			if err := conn.Unsubscribe(ctx, filter); err != nil {
				if ctx.Err() != nil || errors.Is(err, mqtt.ErrNotConnected) {
					return err
				}
				c.logger.Warn("MQTT unsubscribe during replay failed", "topic", filter, "error", err)
			}
			delete(issued, filter)
		}
	}
}

// connectFailed records a failed attempt and returns the consecutive count.
func (c *Controller) connectFailed(err error) int {
	c.mu.Lock()
	c.failures++
	failures := c.failures
	c.lastErr = err
	notify := c.setStateLocked(Failed, err)
	c.mu.Unlock()

	notify()
	return failures
}

// giveUp records retry exhaustion. The loop then exits leaving Failed.
func (c *Controller) giveUp(failures int) {
	c.mu.Lock()
	c.lastErr = fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, failures, c.lastErr)
	c.mu.Unlock()

	c.logger.Error("MQTT connect retries exhausted",
		"broker", c.dialer.Broker(),
		"attempts", failures,
	)
}

// exit clears the run loop bookkeeping. A loop ended by cancellation leaves
// the session Disconnected; one ended by retry exhaustion leaves it Failed.
func (c *Controller) exit(done chan struct{}) {
	c.mu.Lock()
	notify := func() {}
	if c.done == done {
		c.running = false
		c.cancel()
		c.conn = nil
		c.connectedAt = time.Time{}
		if c.state != Failed {
			notify = c.setStateLocked(Disconnected, nil)
		}
	}
	c.mu.Unlock()

	notify()
	close(done)
}

// connectionLost handles a broker-initiated close.
func (c *Controller) connectionLost(err error) {
	c.mu.Lock()
	c.conn = nil
	c.connectedAt = time.Time{}
	c.lastErr = err
	notify := c.setStateLocked(Disconnected, err)
	c.mu.Unlock()

	notify()
	c.logger.Warn("MQTT connection lost, reconnecting", "error", err)
}

func (c *Controller) transition(to State, err error) {
	c.mu.Lock()
	notify := c.setStateLocked(to, err)
	c.mu.Unlock()
	notify()
}

// setStateLocked changes state and returns the notification to run after
// the lock is released. Callers hold c.mu.
func (c *Controller) setStateLocked(to State, err error) func() {
	from := c.state
	c.state = to
	fn := c.onStateChange
	if fn == nil || from == to {
		return func() {}
	}
	return func() { fn(from, to, err) }
}

// handleMessage routes one inbound message into the store. It runs on the
// transport's delivery goroutine and returns only after the record is stored.
func (c *Controller) handleMessage(msg mqtt.Message) {
	c.store.Record(msg.Topic, msg.Payload, msg.QoS, msg.Retained)
}

// Subscribe adds or replaces the entry for filter.
//
// When Connected the subscribe is issued immediately; if the broker rejects
// it the previous entry is restored and ErrSubscribeFailed returned.
// Otherwise the entry is kept and issued on the next successful connect.
func (c *Controller) Subscribe(ctx context.Context, filter string, qos byte) error {
	if err := mqtt.ValidateFilter(filter); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTopic, err)
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}

	entry := Subscription{Filter: filter, QoS: qos, SubscribedAt: c.now()}

	c.mu.Lock()
	prev, had := c.subs[filter]
	c.subs[filter] = entry
	conn := c.liveConnLocked()
	c.mu.Unlock()

	if conn == nil {
		c.logger.Debug("MQTT subscription queued", "topic", filter, "qos", qos)
		return nil
	}

	if err := conn.Subscribe(ctx, filter, qos); err != nil {
		if errors.Is(err, mqtt.ErrNotConnected) {
			// Connection dropped under us; the replay after reconnect issues it.
			return nil
		}

		c.mu.Lock()
		if current, ok := c.subs[filter]; ok && current == entry {
			if had {
				c.subs[filter] = prev
			} else {
				delete(c.subs, filter)
			}
		}
		c.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	c.logger.Debug("MQTT subscribed", "topic", filter, "qos", qos)
	return nil
}

// Unsubscribe removes the entry for filter.
//
// It returns ErrNotSubscribed if the filter was never subscribed. When
// Connected the unsubscribe is issued; a wire failure is reported as
// ErrUnsubscribeFailed but the entry stays removed.
func (c *Controller) Unsubscribe(ctx context.Context, filter string) error {
	c.mu.Lock()
	if _, ok := c.subs[filter]; !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotSubscribed, filter)
	}
	delete(c.subs, filter)
	conn := c.liveConnLocked()
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.Unsubscribe(ctx, filter); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}

	c.logger.Debug("MQTT unsubscribed", "topic", filter)
	return nil
}

// Publish sends a message through the live connection.
//
// It fails with ErrNotConnected unless the state is Connected; nothing is
// queued. For QoS 0 it returns once the transport has accepted the message;
// for QoS 1 and 2 once the broker acknowledged it.
func (c *Controller) Publish(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error {
	if err := mqtt.ValidateTopic(topic); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTopic, err)
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}

	c.mu.Lock()
	state := c.state
	conn := c.liveConnLocked()
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("%w (state %s)", ErrNotConnected, state)
	}

	if err := conn.Publish(ctx, topic, payload, qos, retained); err != nil {
		if errors.Is(err, mqtt.ErrNotConnected) {
			return fmt.Errorf("%w: %w", ErrNotConnected, err)
		}
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// liveConnLocked returns the connection when Connected, nil otherwise.
func (c *Controller) liveConnLocked() mqtt.Conn {
	if c.state != Connected {
		return nil
	}
	return c.conn
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscriptions returns a snapshot of the subscription set sorted by filter.
func (c *Controller) Subscriptions() []Subscription {
	c.mu.Lock()
	out := make([]Subscription, 0, len(c.subs))
	for _, sub := range c.subs {
		out = append(out, sub)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Filter < out[j].Filter })
	return out
}

// SubscriptionCount returns the number of distinct filters.
func (c *Controller) SubscriptionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// HasSubscription reports whether filter is in the subscription set.
func (c *Controller) HasSubscription(filter string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[filter]
	return ok
}

// Status returns a point-in-time view of the session.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		State:          c.state,
		Broker:         c.dialer.Broker(),
		FailedAttempts: c.failures,
		Subscriptions:  len(c.subs),
	}
	if c.state == Connected {
		since := c.connectedAt
		st.ConnectedSince = &since
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

// HealthCheck reports whether the session is Connected.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - error: nil if healthy, ErrNotConnected otherwise
func (c *Controller) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("session health check: %w", ctx.Err())
	default:
	}

	if state := c.State(); state != Connected {
		return fmt.Errorf("%w (state %s)", ErrNotConnected, state)
	}
	return nil
}

// sleepCtx waits for d or ctx cancellation. It reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
