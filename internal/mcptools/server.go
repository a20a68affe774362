package mcptools

import (
	"context"
	"errors"
	"io"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/classroom"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/command"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/management"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/query"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/session"
)

// Session is the part of the session controller the tools use.
// *session.Controller implements it.
type Session interface {
	Subscribe(ctx context.Context, filter string, qos byte) error
	Unsubscribe(ctx context.Context, filter string) error
	Publish(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error
	Subscriptions() []session.Subscription
	Status() session.Status
	State() session.State
}

// Commander sends device commands. *command.Dispatcher implements it.
type Commander interface {
	SetPower(ctx context.Context, on bool) (*command.Result, error)
	SetTargetTemperature(ctx context.Context, value float64) (*command.Result, error)
	Range() (lo, hi float64)
}

// Management is the broker management API. *management.Client implements it.
type Management interface {
	ListClients(ctx context.Context, params management.ListClientsParams) (management.Document, error)
	GetClient(ctx context.Context, clientID string) (management.Document, error)
	KickClient(ctx context.Context, clientID string) (management.Document, error)
	Publish(ctx context.Context, req management.PublishRequest) (management.Document, error)
}

// Logger is the logging surface the tools need.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Deps are the collaborators behind the tools.
type Deps struct {
	Session  Session
	Query    *query.Facade
	Commands Commander
	Profile  classroom.Profile

	// Management is optional; without it the management tools report that
	// the API is not configured and publish_mqtt_message goes through the
	// session instead.
	Management Management
}

// Server is the MCP server with every tool registered.
type Server struct {
	deps   Deps
	mcp    *mcpserver.MCPServer
	logger Logger
}

// New creates a Server and registers the tools.
//
// Parameters:
//   - name: Server name announced to MCP clients
//   - version: Server version announced to MCP clients
//   - deps: Collaborators; Session, Query and Commands are required
//
// Returns:
//   - *Server: Server ready to serve
func New(name, version string, deps Deps) *Server {
	s := &Server{deps: deps, logger: noopLogger{}}
	s.mcp = mcpserver.NewMCPServer(
		name,
		version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
		mcpserver.WithInstructions("Tools for an MQTT broker session: subscribe to topics, read received messages, "+
			"read classroom sensors, control the classroom air conditioner and manage broker clients."),
	)
	s.registerTools()
	return s
}

// SetLogger sets the logger. Call before serving.
func (s *Server) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// ServeStdio serves MCP over in/out (normally stdin/stdout) until ctx is
// cancelled or in reaches EOF. Both count as a clean exit.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	err := mcpserver.NewStdioServer(s.mcp).Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// HTTPHandler returns a streamable HTTP handler serving MCP at path.
func (s *Server) HTTPHandler(path string) http.Handler {
	return mcpserver.NewStreamableHTTPServer(s.mcp, mcpserver.WithEndpointPath(path))
}

func (s *Server) registerTools() {
	s.registerSessionTools()
	s.registerManagementTools()
	s.registerClassroomTools()
}
