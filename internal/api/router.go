package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	// MCP streamable HTTP (GET, POST and DELETE on one path)
	if s.mcp != nil && s.cfg.MCPPath != "" {
		r.With(s.authMiddleware, s.requirePermission(auth.PermMCPAccess)).Handle(s.cfg.MCPPath, s.mcp)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Public
		r.Get("/health", s.handleHealth)

		// Protected when api.auth.jwt_secret is set
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Use(s.requirePermission(auth.PermViewRead))

			r.Get("/metrics", s.handleMetrics)
			r.Get("/session", s.handleSession)
			r.Get("/subscriptions", s.handleSubscriptions)

			r.Route("/messages", func(r chi.Router) {
				r.Get("/", s.handleMessages)
				r.Get("/latest", s.handleLatest)
			})

			if s.audit != nil {
				r.With(s.requirePermission(auth.PermAuditRead)).Get("/audit", s.handleListAudit)
			}
		})
	})

	return r
}

// handleHealth reports "ok" when the session is connected and "degraded"
// otherwise. It always answers 200 so probes do not restart a server that
// is waiting for its broker.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	body := map[string]any{"version": s.version}
	if err := s.session.HealthCheck(r.Context()); err != nil {
		status = "degraded"
		body["reason"] = err.Error()
	}
	body["status"] = status
	body["session_state"] = s.query.SessionState()
	writeJSON(w, http.StatusOK, body)
}
