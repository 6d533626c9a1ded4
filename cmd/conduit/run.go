package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/conduit/pkg/cli"
	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/server"
)

var runFlags struct {
	listenAddress string
	dryRun        bool
	watch         bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Conduit HTTP API",
	Long: `Start the Conduit HTTP API with the specified configuration.

The server exposes provider selection, outcome reporting, health, rate limit
and analytics endpoints, plus metrics and readiness probes.

Examples:
  # Start with default config
  conduit run

  # Start with a config file and reload it when it changes
  conduit run --config /etc/conduit/config.yaml --watch

  # Override listen address
  conduit run --listen 0.0.0.0:8090

  # Validate config without starting server
  conduit run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
	runCmd.Flags().BoolVar(&runFlags.watch, "watch", false, "reload the config file when it changes")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}

	if runFlags.watch && cfgFile == "" {
		return cli.NewConfigError("config", "--watch requires --config")
	}

	out := cmd.OutOrStdout()
	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	logger, err := newLogger(cfg, os.Stdout)
	if err != nil {
		return err
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	a, err := newApp(cfg, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.close(shutdownCtx); err != nil {
			logger.Error("shutdown incomplete", "error", err)
		}
	}()

	if err := a.start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	if runFlags.watch {
		watcher, err := config.NewWatcher(cfgFile, 0, logger)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		defer watcher.Stop()
		go func() {
			if err := watcher.Watch(ctx, a.reload); err != nil {
				logger.Error("config watcher stopped", "error", err)
			}
		}()
	}

	printBanner(out, cfg)

	srv := server.New(cfg.Server, a.handler, logger)
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

func printBanner(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "Conduit v%s\n", Version)
	if cfgFile != "" {
		fmt.Fprintf(w, "✓ Configuration loaded from %s\n", cfgFile)
	} else {
		fmt.Fprintln(w, "✓ Using default configuration")
	}
	fmt.Fprintf(w, "✓ %d providers, strategy %s\n", len(cfg.Providers), cfg.Routing.Strategy)
	if cfg.Usage.Backend != "" && cfg.Usage.Backend != "none" {
		fmt.Fprintf(w, "✓ Usage store: %s\n", cfg.Usage.Backend)
	}
	fmt.Fprintf(w, "✓ Listening on %s\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.IsEnabled() {
		fmt.Fprintf(w, "✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintf(w, "✓ Readiness endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Health.ReadinessPath)
	fmt.Fprintln(w, "\nPress Ctrl+C to stop")
}
