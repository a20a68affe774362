package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/audit"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/query"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/session"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// SessionView is the read side of the session controller.
// *session.Controller implements it.
type SessionView interface {
	Status() session.Status
	Subscriptions() []session.Subscription
	HealthCheck(ctx context.Context) error
}

// HistoryStats reports history store sizes. *history.Store implements it.
type HistoryStats interface {
	Capacity() int
	TopicCount() int
}

// DBStats reports connection pool statistics. *database.DB implements it.
type DBStats interface {
	Stats() sql.DBStats
}

// AuditLog lists recorded commands. *audit.SQLiteRepository implements it.
type AuditLog interface {
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Session SessionView
	Query   *query.Facade
	History HistoryStats

	// MCP is mounted at Config.MCPPath when set.
	MCP http.Handler

	// AuditDB is optional; its pool statistics appear in /metrics.
	AuditDB DBStats

	// Audit is optional; when set, /api/v1/audit lists recorded commands.
	Audit AuditLog

	Version string
}

// Server is the HTTP server for the MCP endpoint and the REST views.
//
// It is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	session   SessionView
	query     *query.Facade
	history   HistoryStats
	mcp       http.Handler
	auditDB   DBStats
	audit     AuditLog
	version   string
	startTime time.Time
	server    *http.Server
	listener  net.Listener
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, session, query)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Session == nil {
		return nil, fmt.Errorf("session is required")
	}
	if deps.Query == nil {
		return nil, fmt.Errorf("query facade is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		session:   deps.Session,
		query:     deps.Query,
		history:   deps.History,
		mcp:       deps.MCP,
		auditDB:   deps.AuditDB,
		audit:     deps.Audit,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Handler returns the router. Used by Start and by tests.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// The listener is bound synchronously so a port conflict is reported here;
// serving continues in a background goroutine until Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server starting",
		"address", ln.Addr().String(),
		"mcp_path", s.cfg.MCPPath,
		"auth_enabled", s.cfg.Auth.Enabled(),
	)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
