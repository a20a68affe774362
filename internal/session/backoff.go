package session

import (
	"math/rand/v2"
	"time"

	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/infrastructure/config"
)

// Default retry settings, used for zero fields of RetryPolicy.
const (
	defaultInitialDelay   = time.Second
	defaultMaxDelay       = 60 * time.Second
	defaultConnectTimeout = 10 * time.Second
	defaultJitter         = 0.2
)

// RetryPolicy controls reconnection after a failed attempt.
type RetryPolicy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// MaxAttempts is the number of consecutive failed attempts after which
	// the controller stays Failed. Zero retries forever.
	MaxAttempts int

	// Jitter spreads each delay by up to ±Jitter of its value (0.2 = ±20%).
	Jitter float64
}

// Options configures a Controller.
type Options struct {
	Retry RetryPolicy

	// ConnectTimeout bounds each connection attempt. An attempt that neither
	// succeeds nor fails within it counts as failed.
	ConnectTimeout time.Duration
}

// OptionsFromConfig builds controller options from the MQTT configuration.
func OptionsFromConfig(cfg config.MQTTConfig) Options {
	return Options{
		Retry: RetryPolicy{
			InitialDelay: time.Duration(cfg.Reconnect.InitialDelay) * time.Second,
			MaxDelay:     time.Duration(cfg.Reconnect.MaxDelay) * time.Second,
			MaxAttempts:  cfg.Reconnect.MaxAttempts,
			Jitter:       defaultJitter,
		},
		ConnectTimeout: cfg.ConnectTimeout(),
	}
}

func (o Options) withDefaults() Options {
	if o.Retry.InitialDelay <= 0 {
		o.Retry.InitialDelay = defaultInitialDelay
	}
	if o.Retry.MaxDelay <= 0 {
		o.Retry.MaxDelay = defaultMaxDelay
	}
	if o.Retry.MaxDelay < o.Retry.InitialDelay {
		o.Retry.MaxDelay = o.Retry.InitialDelay
	}
	if o.Retry.Jitter < 0 || o.Retry.Jitter >= 1 {
		o.Retry.Jitter = 0
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
	return o
}

// Delay returns the wait before the next attempt after failures consecutive
// failures (failures >= 1): InitialDelay doubled per failure, capped at
// MaxDelay, then jittered.
func (p RetryPolicy) Delay(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}

	delay := p.InitialDelay
	for i := 1; i < failures && delay < p.MaxDelay; i++ {
		delay *= 2
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	if p.Jitter > 0 {
		spread := (rand.Float64()*2 - 1) * p.Jitter //nolint:gosec // jitter needs no crypto randomness
		delay += time.Duration(float64(delay) * spread)
	}
	return delay
}

// exhausted reports whether failures has reached the attempt limit.
func (p RetryPolicy) exhausted(failures int) bool {
	return p.MaxAttempts > 0 && failures >= p.MaxAttempts
}
