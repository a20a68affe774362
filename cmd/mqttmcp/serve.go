package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/api"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/audit"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/classroom"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/command"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/history"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/management"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/mcptools"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/query"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/session"
	"github.com/nerrad567/gray-logic-mqtt-mcp/migrations"
)

// Transports accepted by --transport and mcp.transport.
const (
	transportStdio = "stdio"
	transportHTTP  = "http"
)

// serveOptions carries the serve flags and the stdio streams.
type serveOptions struct {
	configPath string
	transport  string
	envFile    string

	stdin  io.Reader
	stdout io.Writer
}

// run is the actual application logic, separated from main for testability.
//
// Startup order: config, logger, audit database, telemetry, history,
// session (started in the background), query and command layers, management
// client, MCP server. It then serves until ctx is cancelled or, on stdio, the
// client closes stdin. Deferred cleanup runs in reverse order.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - opts: Flags and stdio streams
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts serveOptions) error {
	// Default logger until config is loaded
	log := logging.Default()
	log.Debug("loading configuration", "path", opts.configPath, "env_file", opts.envFile)

	if err := config.LoadEnvFile(opts.envFile); err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if opts.transport != "" {
		cfg.MCP.Transport = opts.transport
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("validating config: %w", err)
		}
	}

	// stdout carries the protocol on stdio.
	if cfg.MCP.Transport == transportStdio && strings.EqualFold(cfg.Logging.Output, "stdout") {
		cfg.Logging.Output = "stderr"
	}
	log = logging.New(cfg.Logging, version)
	log.Info("starting MQTT MCP server",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", opts.configPath,
		"transport", cfg.MCP.Transport,
	)

	// Command audit trail (optional)
	var auditors commandAuditors
	var auditDB *database.DB
	var auditRepo *audit.SQLiteRepository
	if cfg.Audit.Enabled {
		auditDB, err = openAuditDB(ctx, cfg.Audit)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing audit database")
			if closeErr := auditDB.Close(); closeErr != nil {
				log.Error("error closing audit database", "error", closeErr)
			}
		}()
		auditRepo = audit.NewSQLiteRepository(auditDB.DB)
		auditors = append(auditors, auditRepo)
		log.Info("command audit enabled", "path", cfg.Audit.Path)
	}

	// Telemetry export (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		auditors = append(auditors, telemetryAuditor{client: influxClient})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	// Message history
	store := history.New(cfg.History.Size)
	if influxClient != nil {
		store.SetObserver(func(rec history.Record) {
			influxClient.WriteMessage(rec.Topic, rec.Payload, rec.QoS, rec.Retained, rec.ReceivedAt)
		})
	}

	// Broker session
	tlsConfig, err := mqtt.NewTLSConfig(cfg.MQTT.TLS)
	if err != nil {
		return fmt.Errorf("building TLS config: %w", err)
	}
	if tlsConfig != nil && tlsConfig.InsecureSkipVerify {
		log.Warn("broker certificate verification disabled (tls.verify_certs=false)")
	}

	dialer := mqtt.NewDialer(cfg.MQTT, tlsConfig)
	dialer.SetLogger(log.Component("mqtt"))

	sess := session.New(dialer, store, session.OptionsFromConfig(cfg.MQTT))
	sess.SetLogger(log.Component("session"))
	sess.SetOnStateChange(stateChangeHook(log, influxClient))

	sess.Start(ctx)
	defer func() {
		log.Info("stopping MQTT session")
		if stopErr := sess.Stop(); stopErr != nil {
			log.Error("error stopping MQTT session", "error", stopErr)
		}
	}()
	log.Info("MQTT session started", "broker", dialer.Broker())

	profile := classroom.NewProfile(cfg.Classroom)
	if subErr := profile.AutoSubscribe(ctx, sess); subErr != nil {
		log.Warn("auto-subscribe incomplete", "error", subErr)
	}

	// Query and command layers
	facade := query.New(store, sess)
	facade.SetLogger(log.Component("query"))

	dispatcher := command.New(sess, profile.CommandConfig(cfg.Commands))
	dispatcher.SetLogger(log.Component("command"))
	if len(auditors) > 0 {
		dispatcher.SetAuditor(auditors)
	}

	// MCP server
	deps := mcptools.Deps{
		Session:  sess,
		Query:    facade,
		Commands: dispatcher,
		Profile:  profile,
	}
	if cfg.Management.URL != "" {
		mgmt, mgmtErr := management.New(cfg.Management)
		if mgmtErr != nil {
			return fmt.Errorf("creating management client: %w", mgmtErr)
		}
		mgmt.SetLogger(log.Component("management"))
		deps.Management = mgmt
		log.Info("EMQX management API configured", "url", cfg.Management.URL)
	} else {
		log.Info("EMQX management API not configured; client tools disabled")
	}

	tools := mcptools.New(cfg.MCP.Name, version, deps)
	tools.SetLogger(log.Component("mcp"))

	switch cfg.MCP.Transport {
	case transportHTTP:
		err = serveHTTP(ctx, cfg, log, tools, sess, facade, store, auditDB, auditRepo)
	default:
		log.Info("serving MCP over stdio")
		err = tools.ServeStdio(ctx, opts.stdin, opts.stdout)
	}
	if err != nil {
		return err
	}

	log.Info("shutting down")
	return nil
}

// serveHTTP runs the API server with the MCP endpoint mounted until ctx ends.
func serveHTTP(
	ctx context.Context,
	cfg *config.Config,
	log *logging.Logger,
	tools *mcptools.Server,
	sess *session.Controller,
	facade *query.Facade,
	store *history.Store,
	auditDB *database.DB,
	auditRepo *audit.SQLiteRepository,
) error {
	deps := api.Deps{
		Config:  cfg.API,
		Logger:  log.Component("api"),
		Session: sess,
		Query:   facade,
		History: store,
		MCP:     tools.HTTPHandler(cfg.API.MCPPath),
		Version: version,
	}
	// Typed nils must not reach the optional interfaces.
	if auditDB != nil {
		deps.AuditDB = auditDB
	}
	if auditRepo != nil {
		deps.Audit = auditRepo
	}

	srv, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	log.Info("serving MCP over HTTP", "addr", srv.Addr(), "path", cfg.API.MCPPath)

	<-ctx.Done()

	log.Info("stopping API server")
	if err := srv.Close(); err != nil {
		return fmt.Errorf("stopping API server: %w", err)
	}
	return nil
}

// openAuditDB opens the audit database and applies the embedded migrations.
func openAuditDB(ctx context.Context, cfg config.AuditConfig) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running audit migrations: %w", err)
	}
	return db, nil
}

// stateChangeHook logs session transitions and, with telemetry enabled,
// exports them as mqtt_session points.
func stateChangeHook(log *logging.Logger, influxClient *influxdb.Client) session.StateChangeFunc {
	return func(from, to session.State, err error) {
		args := []any{"from", from.String(), "to", to.String()}
		if err != nil {
			args = append(args, "error", err)
		}
		log.Debug("session state changed", args...)

		if influxClient != nil {
			influxClient.WritePoint("mqtt_session",
				map[string]string{"state": to.String()},
				map[string]any{"from": from.String()},
				time.Now(),
			)
		}
	}
}

// commandAuditors fans one audit entry out to several recorders.
type commandAuditors []command.Auditor

// RecordCommand implements command.Auditor.
func (a commandAuditors) RecordCommand(ctx context.Context, entry command.Entry) error {
	var errs []error
	for _, auditor := range a {
		if err := auditor.RecordCommand(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// telemetryAuditor exports command outcomes to InfluxDB.
type telemetryAuditor struct {
	client *influxdb.Client
}

// RecordCommand implements command.Auditor.
func (t telemetryAuditor) RecordCommand(_ context.Context, entry command.Entry) error {
	t.client.WriteCommand(entry.Command, entry.Topic, entry.Outcome, entry.Value, entry.At)
	return nil
}
