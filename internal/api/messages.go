package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/history"
)

const (
	defaultMessageLimit = 10
	maxMessageLimit     = 1000
	maxQueryParamLen    = 1024
)

// handleSession returns the session status document.
func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Status())
}

// handleSubscriptions lists the subscription set.
func (s *Server) handleSubscriptions(w http.ResponseWriter, _ *http.Request) {
	subs := s.session.Subscriptions()
	writeJSON(w, http.StatusOK, map[string]any{
		"subscriptions": subs,
		"count":         len(subs),
	})
}

// handleMessages returns received messages, newest first.
//
// Query parameters:
//   - topic: only topics containing this text
//   - limit: maximum number of messages (default 10, max 1000)
//   - since_minutes: only messages from the last N minutes
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	topic := q.Get("topic")
	if len(topic) > maxQueryParamLen {
		writeBadRequest(w, "topic exceeds maximum length")
		return
	}

	limit, err := parseMessageLimit(q.Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	since, err := parseSinceMinutes(q.Get("since_minutes"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.query.History(history.Filter{
		Topic: topic,
		Limit: limit,
		Since: since,
	}))
}

// handleLatest returns the latest message on one exact topic.
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		writeBadRequest(w, "topic is required")
		return
	}
	if len(topic) > maxQueryParamLen {
		writeBadRequest(w, "topic exceeds maximum length")
		return
	}

	// field, when given, returns the decoded value instead of the raw record.
	if field := strings.TrimSpace(r.URL.Query().Get("field")); field != "" {
		writeJSON(w, http.StatusOK, s.query.LatestValue(topic, field))
		return
	}

	snap := s.query.Latest(topic)
	if snap.Count == 0 {
		writeNotFound(w, "no messages on topic")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// parseMessageLimit parses the limit parameter with default and bounds.
func parseMessageLimit(raw string) (int, error) {
	if raw == "" {
		return defaultMessageLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if limit > maxMessageLimit {
		return 0, fmt.Errorf("limit exceeds maximum")
	}

	return limit, nil
}

// parseSinceMinutes parses since_minutes; empty means no time filter.
func parseSinceMinutes(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}

	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		return 0, fmt.Errorf("invalid since_minutes")
	}

	return time.Duration(minutes) * time.Minute, nil
}
