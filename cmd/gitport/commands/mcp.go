package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/gitport/internal/config"
	"github.com/Sumatoshi-tech/gitport/internal/mcp"
	"github.com/Sumatoshi-tech/gitport/internal/observability"
)

// NewMCPCommand starts the read-only status server on stdio transport.
// The server reads only the artifact tree, so no forge credentials are
// required.
func NewMCPCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start an MCP server exposing migration status tools",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The server exposes read-only tools over the artifact tree:
  - migration_status: pipeline, export, apply, and verify status per project
  - plan_summary: action counts, phases, and required operator inputs
  - conversion_gaps: source constructs without a destination equivalent

It never contacts either forge and holds no credentials.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loaded, loadErr := config.LoadUnvalidated(flags.ConfigPath)
			if loadErr != nil {
				return fmt.Errorf("%w: %v", ErrBadInput, loadErr)
			}

			cfg := *loaded
			applyOverrides(&cfg, flags)

			if cfg.Artifacts.Root == "" {
				return fmt.Errorf("%w: %v", ErrBadInput, config.ErrMissingArtifactRoot)
			}

			obsCfg := observability.DefaultConfig()
			if flags.Verbose {
				obsCfg.LogLevel = slog.LevelDebug
			}

			obsCfg.LogJSON = flags.JSONLogs

			// Stdout carries the MCP protocol; logs go to stderr.
			logger := observability.NewLogger(os.Stderr, obsCfg)

			srv := mcp.NewServer(mcp.ServerDeps{
				Root:   cfg.Artifacts.Root,
				Logger: logger,
			})

			logger.Info("mcp server starting",
				"root", cfg.Artifacts.Root,
				"tools", srv.ListToolNames())

			if runErr := srv.Run(cmd.Context()); runErr != nil {
				return fmt.Errorf("%w: %v", ErrFailed, runErr)
			}

			return nil
		},
	}
}
