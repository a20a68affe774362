package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/session"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	Session       SessionMetrics   `json:"session"`
	History       HistoryMetrics   `json:"history"`
	Database      *DatabaseMetrics `json:"audit_database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// SessionMetrics contains broker session statistics.
type SessionMetrics struct {
	State          session.State `json:"state"`
	Connected      bool          `json:"connected"`
	FailedAttempts int           `json:"failed_attempts"`
	Subscriptions  int           `json:"subscriptions"`
}

// HistoryMetrics contains history store statistics.
type HistoryMetrics struct {
	Topics   int `json:"topics"`
	Capacity int `json:"capacity_per_topic"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	st := s.session.Status()
	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Session: SessionMetrics{
			State:          st.State,
			Connected:      st.State == session.Connected,
			FailedAttempts: st.FailedAttempts,
			Subscriptions:  st.Subscriptions,
		},
	}

	if s.history != nil {
		metrics.History = HistoryMetrics{
			Topics:   s.history.TopicCount(),
			Capacity: s.history.Capacity(),
		}
	}

	if s.auditDB != nil {
		dbStats := s.auditDB.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
