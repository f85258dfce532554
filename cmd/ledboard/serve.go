package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/ledboard"
	"github.com/jpalmerr/ledboard/config"
	"github.com/jpalmerr/ledboard/internal/logging"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
)

// serveCmd starts the LEDBoard dashboard server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	Long: `Start the LEDBoard dashboard server.

The server will:
  - Load configuration from the specified YAML file
  - Start polling the configured board
  - Serve the dashboard UI on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  ledboard serve -c config.yaml
  LEDBOARD_LOG_LEVEL=debug ledboard serve --config /etc/ledboard/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, sync, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = sync() }()

	logger.Info("config loaded",
		"device", cfg.Device.URL,
		"status_interval", cfg.Poll.Status.Duration().String(),
		"info_interval", cfg.Poll.Info.Duration().String(),
		"ping", cfg.Ping.Enabled,
	)

	opts := append(config.BuildOptions(cfg), ledboard.WithLogger(logger))
	lb, err := ledboard.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create LEDBoard: %w", err)
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- lb.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}

// signalContext is the context the long-running tool commands run under.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
