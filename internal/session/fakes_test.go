package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/infrastructure/mqtt"
)

var errDial = errors.New("dial refused")

// fakeDialer hands out fakeConns and can be told to fail or hang.
type fakeDialer struct {
	mu       sync.Mutex
	failNext int  // fail this many dials
	failAll  bool // fail every dial
	block    bool // wait for ctx instead of connecting
	dials    int
	conns    []*fakeConn

	// subscribeErr is copied into every new conn.
	subscribeErr map[string]error
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{subscribeErr: make(map[string]error)}
}

func (d *fakeDialer) Broker() string { return "tcp://fake:1883" }

func (d *fakeDialer) Dial(ctx context.Context, h mqtt.Handlers) (mqtt.Conn, error) {
	d.mu.Lock()
	d.dials++
	if d.block {
		d.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if d.failAll || d.failNext > 0 {
		if d.failNext > 0 {
			d.failNext--
		}
		d.mu.Unlock()
		return nil, errDial
	}

	conn := &fakeConn{handlers: h, connected: true, subscribeErr: make(map[string]error)}
	for k, v := range d.subscribeErr {
		conn.subscribeErr[k] = v
	}
	d.conns = append(d.conns, conn)
	d.mu.Unlock()
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

func (d *fakeDialer) setSubscribeErr(filter string, err error) {
	d.mu.Lock()
	d.subscribeErr[filter] = err
	for _, c := range d.conns {
		c.mu.Lock()
		c.subscribeErr[filter] = err
		c.mu.Unlock()
	}
	d.mu.Unlock()
}

type published struct {
	topic    string
	payload  string
	qos      byte
	retained bool
}

// fakeConn records wire calls and can simulate delivery and loss.
type fakeConn struct {
	mu           sync.Mutex
	handlers     mqtt.Handlers
	connected    bool
	closed       bool
	subscribed   []string
	unsubscribed []string
	published    []published
	subscribeErr map[string]error
}

func (c *fakeConn) Subscribe(_ context.Context, filter string, _ byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return mqtt.ErrNotConnected
	}
	if err := c.subscribeErr[filter]; err != nil {
		return err
	}
	c.subscribed = append(c.subscribed, filter)
	return nil
}

func (c *fakeConn) Unsubscribe(_ context.Context, filter string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return mqtt.ErrNotConnected
	}
	c.unsubscribed = append(c.unsubscribed, filter)
	return nil
}

func (c *fakeConn) Publish(_ context.Context, topic string, payload []byte, qos byte, retained bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return mqtt.ErrNotConnected
	}
	c.published = append(c.published, published{topic, string(payload), qos, retained})
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.closed = true
	return nil
}

// drop simulates a broker-initiated close.
func (c *fakeConn) drop(err error) {
	c.mu.Lock()
	c.connected = false
	lost := c.handlers.OnConnectionLost
	c.mu.Unlock()
	if lost != nil {
		lost(err)
	}
}

// deliver simulates an inbound message.
func (c *fakeConn) deliver(topic, payload string, qos byte, retained bool) {
	c.handlers.OnMessage(mqtt.Message{Topic: topic, Payload: []byte(payload), QoS: qos, Retained: retained})
}

func (c *fakeConn) subscribedFilters() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.subscribed...)
}

func (c *fakeConn) publishedMessages() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.published...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fastOptions keeps retries quick in tests.
func fastOptions() Options {
	return Options{
		Retry:          RetryPolicy{InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
		ConnectTimeout: time.Second,
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitForState(t *testing.T, c *Controller, want State) {
	t.Helper()
	waitFor(t, "state "+want.String(), func() bool { return c.State() == want })
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (c *Controller) isRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
