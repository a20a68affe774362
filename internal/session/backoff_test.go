package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/infrastructure/config"
)

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{InitialDelay: time.Second, MaxDelay: 10 * time.Second}

	tests := []struct {
		failures int
		want     time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{50, 10 * time.Second},
	}

	for _, tt := range tests {
		if got := p.Delay(tt.failures); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.failures, got, tt.want)
		}
	}
}

func TestRetryPolicy_DelayJitter(t *testing.T) {
	p := RetryPolicy{InitialDelay: time.Second, MaxDelay: time.Minute, Jitter: 0.2}

	for i := 0; i < 100; i++ {
		got := p.Delay(3)
		if got < 3200*time.Millisecond || got > 4800*time.Millisecond {
			t.Fatalf("Delay(3) = %v, want within 4s ±20%%", got)
		}
	}
}

func TestRetryPolicy_Exhausted(t *testing.T) {
	if (RetryPolicy{}).exhausted(1000) {
		t.Error("exhausted() with MaxAttempts 0 = true, want false (retry forever)")
	}
	p := RetryPolicy{MaxAttempts: 3}
	if p.exhausted(2) || !p.exhausted(3) {
		t.Error("exhausted() boundary wrong for MaxAttempts 3")
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.MQTTConfig{
		Reconnect: config.MQTTReconnectConfig{InitialDelay: 2, MaxDelay: 30, MaxAttempts: 5, ConnectTimeout: 7},
	}
	opts := OptionsFromConfig(cfg)

	if opts.Retry.InitialDelay != 2*time.Second || opts.Retry.MaxDelay != 30*time.Second {
		t.Errorf("Retry delays = %v/%v, want 2s/30s", opts.Retry.InitialDelay, opts.Retry.MaxDelay)
	}
	if opts.Retry.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", opts.Retry.MaxAttempts)
	}
	if opts.ConnectTimeout != 7*time.Second {
		t.Errorf("ConnectTimeout = %v, want 7s", opts.ConnectTimeout)
	}
}

func TestOptions_WithDefaults(t *testing.T) {
	got := Options{Retry: RetryPolicy{InitialDelay: 5 * time.Second, MaxDelay: time.Second, Jitter: 3}}.withDefaults()

	if got.Retry.MaxDelay != 5*time.Second {
		t.Errorf("MaxDelay = %v, want raised to InitialDelay", got.Retry.MaxDelay)
	}
	if got.Retry.Jitter != 0 {
		t.Errorf("Jitter = %v, want 0 for out-of-range input", got.Retry.Jitter)
	}
	if got.ConnectTimeout != defaultConnectTimeout {
		t.Errorf("ConnectTimeout = %v, want %v", got.ConnectTimeout, defaultConnectTimeout)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Disconnected, "disconnected"},
		{Connecting, "connecting"},
		{Connected, "connected"},
		{Failed, "failed"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}

	data, err := json.Marshal(map[string]State{"state": Connected})
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if string(data) != `{"state":"connected"}` {
		t.Errorf("json = %s, want {\"state\":\"connected\"}", data)
	}
}

func TestState_UnmarshalText(t *testing.T) {
	for _, want := range []State{Disconnected, Connecting, Connected, Failed} {
		data, err := json.Marshal(map[string]State{"state": want})
		if err != nil {
			t.Fatalf("json.Marshal() error = %v", err)
		}
		var got map[string]State
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("json.Unmarshal(%s) error = %v", data, err)
		}
		if got["state"] != want {
			t.Errorf("round trip of %v = %v", want, got["state"])
		}
	}

	var s State
	if err := s.UnmarshalText([]byte("exploded")); err == nil {
		t.Error("UnmarshalText(exploded) error = nil, want error")
	}
}
