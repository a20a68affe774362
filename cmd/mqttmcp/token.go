package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/auth"
	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/infrastructure/config"
)

// errAuthDisabled is returned by the token command when no secret is configured.
var errAuthDisabled = errors.New("api.auth.jwt_secret is not set; HTTP authentication is disabled")

// tokenOptions carries the token flags.
type tokenOptions struct {
	configPath string
	envFile    string
	subject    string
	role       string
	ttl        time.Duration
}

func newTokenCommand() *cobra.Command {
	var opts tokenOptions

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the HTTP transport",
		Long: "Signs a bearer token with api.auth.jwt_secret. Roles: viewer (REST views), " +
			"operator (adds the MCP endpoint) and admin (adds the command audit trail).",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return mintToken(cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", os.Getenv("MQTTMCP_CONFIG"), "Path to config file")
	cmd.Flags().StringVar(&opts.envFile, "env-file", ".env", "Optional .env file loaded before the config")
	cmd.Flags().StringVar(&opts.subject, "subject", "", "Client name recorded in the token (required)")
	cmd.Flags().StringVar(&opts.role, "role", string(auth.RoleOperator), "Token role: viewer, operator or admin")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", auth.DefaultTokenTTL, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

// mintToken loads the configuration and writes one signed token to out.
func mintToken(out io.Writer, opts tokenOptions) error {
	if err := config.LoadEnvFile(opts.envFile); err != nil {
		return err
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.API.Auth.Enabled() {
		return errAuthDisabled
	}

	token, err := auth.GenerateToken(opts.subject, auth.Role(opts.role), cfg.API.Auth.JWTSecret, opts.ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	fmt.Fprintln(out, token)
	return nil
}
