// Package cmd defines the CLI commands: serve, migrate and version.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var (
	flagLogJSON  bool
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "complidocs",
	Short: "Document ingestion and retrieval service for compliance teams",
	Long: `complidocs ingests regulatory documents, chunks and embeds them,
and serves tenant-scoped similarity search over HTTP.

Run 'complidocs serve' to start the API server.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "log in JSON format")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

// logLevel maps the --log-level flag onto slog levels.
func logLevel() slog.Level {
	switch flagLogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
