// MQTT MCP server.
//
// mqttmcp keeps one managed MQTT broker session, records every received
// message in a bounded per-topic history and exposes the session, the
// history, the classroom device profile and the EMQX management API as MCP
// tools over stdio or streamable HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

func main() {
	// Cancel on Ctrl+C and SIGTERM for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "mqttmcp",
		Short:         "MCP server for an MQTT broker session",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand())
	root.AddCommand(newTokenCommand())
	root.AddCommand(newVersionCommand())
	return root
}

func newServeCommand() *cobra.Command {
	opts := serveOptions{
		stdin:  os.Stdin,
		stdout: os.Stdout,
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to the broker and serve MCP tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", os.Getenv("MQTTMCP_CONFIG"),
		"Path to config file (defaults and environment only when empty)")
	cmd.Flags().StringVar(&opts.transport, "transport", "", "MCP transport: stdio or http (overrides config)")
	cmd.Flags().StringVar(&opts.envFile, "env-file", ".env", "Optional .env file loaded before the config")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mqttmcp %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
