package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/infrastructure/config"
)

// Message is an inbound message as delivered by the broker.
//
// Payload is owned by the transport; handlers that keep it must copy it.
type Message struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// Handlers receives the events of one connection.
//
// OnMessage is called from the transport's delivery goroutine, one message
// at a time in arrival order. It must not block for extended periods.
// OnConnectionLost is called at most once, when the broker connection drops
// without Close having been called.
type Handlers struct {
	OnMessage        func(Message)
	OnConnectionLost func(err error)
}

// Conn is one live broker connection.
//
// A Conn never reconnects on its own. Once it is lost or closed every
// operation returns ErrNotConnected; the owner dials a new one.
type Conn interface {
	Subscribe(ctx context.Context, filter string, qos byte) error
	Unsubscribe(ctx context.Context, filter string) error
	Publish(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error
	Close() error
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Dialer opens paho-backed broker connections.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Dialer struct {
	cfg       config.MQTTConfig
	tlsConfig *tls.Config

	// logger for error/panic logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// NewDialer creates a Dialer for the configured broker.
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//   - tlsConfig: Secure channel settings from NewTLSConfig, nil for plain TCP
//
// Returns:
//   - *Dialer: Dialer ready for use; no connection is made until Dial
func NewDialer(cfg config.MQTTConfig, tlsConfig *tls.Config) *Dialer {
	return &Dialer{cfg: cfg, tlsConfig: tlsConfig}
}

// Broker returns the broker URL this Dialer connects to.
func (d *Dialer) Broker() string {
	return BrokerURL(d.cfg)
}

// SetLogger sets a logger for error and panic logging.
// If not set, errors in handlers are silently ignored.
func (d *Dialer) SetLogger(logger Logger) {
	d.loggerMu.Lock()
	d.logger = logger
	d.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (d *Dialer) getLogger() Logger {
	d.loggerMu.RLock()
	defer d.loggerMu.RUnlock()
	return d.logger
}

// Dial establishes one connection to the MQTT broker.
//
// It performs the following setup:
//  1. Generates a fresh client ID from the configured prefix
//  2. Builds connection options from config (broker URL, auth, TLS)
//  3. Configures Last Will and Testament (LWT) for offline detection
//  4. Attempts the connection, bounded by ctx and the connect timeout
//  5. Publishes online status to the status topic
//
// Parameters:
//   - ctx: Bounds the handshake; cancellation aborts the attempt
//   - handlers: Inbound message and connection-lost callbacks
//
// Returns:
//   - Conn: Connected client ready for use
//   - error: Wraps ErrConnectionFailed (and ErrTimeout when the window elapsed)
func (d *Dialer) Dial(ctx context.Context, handlers Handlers) (Conn, error) {
	clientID := NewClientID(d.cfg.Broker.ClientIDPrefix)
	opts := buildClientOptions(d.cfg, clientID, d.tlsConfig)
	configureLWT(opts, d.cfg.StatusTopic, clientID)

	c := &client{
		clientID:    clientID,
		statusTopic: d.cfg.StatusTopic,
		logger:      d.getLogger(),
	}

	// Subscriptions are issued with a nil callback, so every message for
	// any filter arrives through the default handler.
	opts.SetDefaultPublishHandler(c.wrapHandler(handlers.OnMessage))

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		if !c.markDown() {
			return
		}
		if handlers.OnConnectionLost != nil {
			handlers.OnConnectionLost(err)
		}
	})

	connectTimeout := d.cfg.ConnectTimeout()
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}

	c.client = pahomqtt.NewClient(opts)
	if err := waitToken(ctx, c.client.Connect(), connectTimeout); err != nil {
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, BrokerURL(d.cfg), err)
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	c.publishStatus(buildOnlinePayload(clientID))

	return c, nil
}

// client is the paho-backed Conn.
type client struct {
	client      pahomqtt.Client
	clientID    string
	statusTopic string
	logger      Logger

	// connected tracks current connection state.
	connected bool
	mu        sync.RWMutex
}

// ClientID returns the MQTT client ID used for this connection.
func (c *client) ClientID() string {
	return c.clientID
}

// IsConnected returns the current connection state.
func (c *client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// markDown records the connection as gone. It reports whether this call
// made the transition, so loss and Close are each handled once.
func (c *client) markDown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return false
	}
	c.connected = false
	return true
}

// Close gracefully disconnects from the MQTT broker.
//
// It performs:
//  1. Publishes graceful offline status (different from LWT crash status)
//  2. Waits for pending publish operations
//  3. Disconnects from broker
//
// Calling Close on a lost or closed connection is not an error.
func (c *client) Close() error {
	if c.client == nil {
		return nil
	}
	if !c.IsConnected() {
		c.markDown()
		return nil
	}

	c.publishStatus(buildOfflinePayload(c.clientID))
	c.markDown()

	// Disconnect with quiesce period for pending operations
	c.client.Disconnect(defaultDisconnectQuiesce)
	return nil
}

// publishStatus publishes a retained status document, best effort.
func (c *client) publishStatus(payload string) {
	if c.statusTopic == "" {
		return
	}
	token := c.client.Publish(c.statusTopic, 1, true, payload)
	if !token.WaitTimeout(defaultPublishTimeout) || token.Error() != nil {
		if c.logger != nil {
			c.logger.Warn("MQTT status publish failed",
				"topic", c.statusTopic,
				"error", token.Error(),
			)
		}
	}
}

// wrapHandler adapts an OnMessage callback with panic recovery and optional logging.
func (c *client) wrapHandler(handler func(Message)) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		if handler == nil {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				if c.logger != nil {
					c.logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		handler(Message{
			Topic:    msg.Topic(),
			Payload:  msg.Payload(),
			QoS:      msg.Qos(),
			Retained: msg.Retained(),
		})
	}
}

// waitToken waits for a paho token, bounded by ctx and, when ctx carries no
// deadline, by fallback.
func waitToken(ctx context.Context, token pahomqtt.Token, fallback time.Duration) error {
	if _, ok := ctx.Deadline(); !ok && fallback > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, fallback)
		defer cancel()
	}

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
}
