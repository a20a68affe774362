package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/audit"
)

// handleListAudit returns recorded device commands with optional filters.
//
// Query parameters:
//   - command: set_power or set_temperature
//   - outcome: published, rejected or failed
//   - since_minutes: only commands from the last N minutes
//   - limit: page size (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := audit.Filter{
		Command: q.Get("command"),
		Outcome: q.Get("outcome"),
	}
	if len(filter.Command) > maxQueryParamLen || len(filter.Outcome) > maxQueryParamLen {
		writeBadRequest(w, "filter exceeds maximum length")
		return
	}

	since, err := parseSinceMinutes(q.Get("since_minutes"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if since > 0 {
		filter.Since = time.Now().Add(-since)
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "invalid limit")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "invalid offset")
			return
		}
		filter.Offset = n
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list command audit", "error", err)
		writeInternalError(w, "failed to list command audit")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
