// Package main is the entry point for the CrewCrew web front end.
//
// The main package stays minimal. Its job is to:
//  1. Read configuration (file, env vars, flags)
//  2. Create the logger
//  3. Build and start the server
//
// All actual logic lives in the internal packages.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/crewcrew/internal/config"
	"github.com/sakif/crewcrew/internal/server"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "crewcrew",
		Short:         "CrewCrew web front end",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Run the HTTP server.

Settings come from built-in defaults, then the YAML file given with
--config, then environment variables (PORT, API_BASE_URL, STORAGE, DB_PATH,
REDIS_ADDR, SESSION_SECRET, GOOGLE_CLIENT_ID, GITHUB_CLIENT_ID, ...),
then the flags below.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if verbose {
				cfg.LogLevel = "debug"
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			level, err := config.ParseLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			// slog.NewTextHandler outputs human-readable key=value logs.
			logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)

			if !cfg.Google.Enabled() && !cfg.GitHub.Enabled() {
				logger.Warn("no OAuth provider configured; social sign-in is disabled")
			}

			srv, err := server.New(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}

			// Start() blocks until the server is shut down (Ctrl+C or SIGTERM).
			return srv.Start()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	cmd.Flags().StringVarP(&port, "port", "p", "", "port to listen on (overrides config)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	return cmd
}
