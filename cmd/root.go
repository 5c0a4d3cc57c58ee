// Package cmd provides the CLI commands for megatable using Cobra.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Zerofisher/megatable/internal/app"
	"github.com/Zerofisher/megatable/internal/config"
	"github.com/Zerofisher/megatable/internal/logging"
	"github.com/Zerofisher/megatable/internal/tracing"
	"github.com/Zerofisher/megatable/pkg/store"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Global flags
var (
	cfgFile       string
	flagURL       string
	flagToken     string
	flagLogFormat string
	flagLogLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "megatable",
	Short: "Bulk loader and paginated search API for a remote SQL row store",
	Long: `Megatable loads a large records dataset into a remote SQL engine reached over
stateless HTTP, and serves it back through a cursor-paginated search API.

Connection settings are resolved from, in order: --url/--token flags, the
--config HCL file, TURSO_DATABASE_URL/TURSO_AUTH_TOKEN, and a local .env file.

Examples:
  megatable generate -n 1000000 -o public/data.json      # Synthesize a dataset
  megatable seed public/data.json                        # Load it (150 rows x 15 lanes)
  megatable serve --addr :8080                           # GET /data, GET /data/{id}
  megatable search ali --limit 20                        # Query from the terminal
  megatable store serve --db local.db --token dev        # Local engine for development`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return tracing.Init(cmd.Context(), Version)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return tracing.Shutdown(context.WithoutCancel(cmd.Context()))
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var cfgErr *store.ConfigurationError
		if errors.As(err, &cfgErr) {
			fmt.Fprintf(os.Stderr, "Set --url/--token, a config file, or %s and %s.\n", config.EnvURL, config.EnvToken)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "HCL config file (default $"+config.EnvConfig+")")
	rootCmd.PersistentFlags().StringVar(&flagURL, "url", "", "Store endpoint URL (libsql://, https://, ws(s)://)")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "Store bearer token")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format: text, json")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")

	// Define command groups for organized help output
	rootCmd.AddGroup(
		&cobra.Group{ID: "data", Title: "Data Commands:"},
		&cobra.Group{ID: "query", Title: "Query Commands:"},
		&cobra.Group{ID: "dev", Title: "Development Commands:"},
	)

	// Add subcommands
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(storeCmd)
}

// loadSettings resolves settings with the global flags, plus whatever the
// calling command sets in flags, at the highest priority.
func loadSettings(flags config.Settings) (*config.Settings, error) {
	flags.URL = flagURL
	flags.Token = flagToken
	flags.Log = config.LogSettings{Format: flagLogFormat, Level: flagLogLevel}

	path := cfgFile
	if path == "" {
		path = os.Getenv(config.EnvConfig)
	}
	return config.Default(flags, path).Resolve()
}

// setup resolves settings and builds the stderr logger.
func setup(flags config.Settings) (*config.Settings, *logging.Logger, error) {
	settings, err := loadSettings(flags)
	if err != nil {
		return nil, nil, err
	}
	logger, err := app.NewLogger(os.Stderr, settings)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range settings.Warnings {
		logger.Warn("config provider ignored", "error", w, "connection", settings.Source)
	}
	return settings, logger, nil
}
