package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/infrastructure/influxdb"
)

// fakeInflux answers /ping and collects line-protocol bodies sent to /api/v2/write.
type fakeInflux struct {
	mu        sync.Mutex
	lines     []string
	query     string
	writeCode int
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ping":
		w.WriteHeader(http.StatusNoContent)
	case "/api/v2/write":
		body, _ := io.ReadAll(r.Body) //nolint:errcheck // Test server
		f.mu.Lock()
		f.query = r.URL.RawQuery
		f.lines = append(f.lines, strings.Split(strings.TrimSpace(string(body)), "\n")...)
		code := f.writeCode
		f.mu.Unlock()
		if code == 0 {
			code = http.StatusNoContent
		}
		if code != http.StatusNoContent {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{"code":"invalid","message":"bad line"}`)) //nolint:errcheck // Test server
			return
		}
		w.WriteHeader(code)
	default:
		http.NotFound(w, r)
	}
}

// waitForLines polls until n lines arrived or the deadline passes.
func (f *fakeInflux) waitForLines(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		f.mu.Lock()
		got := append([]string(nil), f.lines...)
		f.mu.Unlock()
		if len(got) >= n || time.Now().After(deadline) {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func startFake(t *testing.T) (*fakeInflux, config.InfluxDBConfig) {
	t.Helper()
	fake := &fakeInflux{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	return fake, config.InfluxDBConfig{
		Enabled:       true,
		URL:           srv.URL,
		Token:         "test-token",
		Org:           "mqtt",
		Bucket:        "telemetry",
		BatchSize:     100,
		FlushInterval: 60,
	}
}

func connect(t *testing.T, cfg config.InfluxDBConfig) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client
}

func TestConnect(t *testing.T) {
	_, cfg := startFake(t)
	client := connect(t, cfg)

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestConnect_Disabled(t *testing.T) {
	_, cfg := startFake(t)
	cfg.Enabled = false

	if _, err := influxdb.Connect(context.Background(), cfg); !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := config.InfluxDBConfig{Enabled: true, URL: "http://127.0.0.1:1", Token: "t"}

	_, err := influxdb.Connect(context.Background(), cfg)
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	_, cfg := startFake(t)
	cfg.BatchSize = -5
	cfg.FlushInterval = 0

	if client := connect(t, cfg); !client.IsConnected() {
		t.Error("IsConnected() = false with default batch settings")
	}
}

func TestHealthCheck_Cancelled(t *testing.T) {
	_, cfg := startFake(t)
	client := connect(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() with cancelled context error = nil, want error")
	}
}

func TestWriteMessage(t *testing.T) {
	fake, cfg := startFake(t)
	client := connect(t, cfg)

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	client.WriteMessage("classroom/temperature", `{"temperature": 24.5, "unit": "°C", "online": true}`, 1, true, at)
	client.Flush()

	lines := fake.waitForLines(t, 1)
	if len(lines) != 1 {
		t.Fatalf("received %d lines, want 1", len(lines))
	}
	line := lines[0]
	for _, want := range []string{
		"mqtt_message,topic=classroom/temperature ",
		"temperature=24.5",
		"online=true",
		"qos=1i",
		"retained=true",
		"size_bytes=",
		" 1772355600000000000",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
	if strings.Contains(line, "unit=") {
		t.Errorf("line %q carries a string payload field", line)
	}

	fake.mu.Lock()
	query := fake.query
	fake.mu.Unlock()
	if !strings.Contains(query, "bucket=telemetry") || !strings.Contains(query, "org=mqtt") {
		t.Errorf("write query = %q, want org and bucket", query)
	}
}

func TestWriteCommand(t *testing.T) {
	fake, cfg := startFake(t)
	client := connect(t, cfg)

	client.WriteCommand("set_temperature", "classroom/control/ac", "rejected", 35.0, time.Time{})
	client.Flush()

	lines := fake.waitForLines(t, 1)
	if len(lines) != 1 {
		t.Fatalf("received %d lines, want 1", len(lines))
	}
	for _, want := range []string{"mqtt_command,", "command=set_temperature", "outcome=rejected", "value=35", "count=1i"} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("line %q missing %q", lines[0], want)
		}
	}
}

func TestWriteErrorsReachCallback(t *testing.T) {
	fake, cfg := startFake(t)
	fake.writeCode = http.StatusBadRequest
	client := connect(t, cfg)

	errCh := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case errCh <- err:
		default:
		}
	})

	client.WriteMessage("t", "1", 0, false, time.Now())
	client.Flush()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("callback error = nil")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("write error never reached the callback")
	}
}

func TestClose(t *testing.T) {
	fake, cfg := startFake(t)
	client, err := influxdb.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	client.WriteMessage("t", "1", 0, false, time.Now())
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := fake.waitForLines(t, 1); len(got) != 1 {
		t.Errorf("lines after Close() = %d, want 1", len(got))
	}

	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}

	// Writes after close are dropped.
	client.WriteMessage("t", "2", 0, false, time.Now())
	client.Flush()
}
