// Package cmd defines and implements the CLI commands for the harvester
// executable.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/avask/harvester/internal/config"
	"github.com/avask/harvester/internal/logging"
	"github.com/avask/harvester/internal/metrics"
)

// Exit codes returned by the executable.
const (
	exitOK          = 0
	exitRunError    = 1
	exitConfigError = 2
	exitNoItems     = 3
)

var (
	cfgFile     string
	metricsAddr string
	devLogging  bool
)

// exitError wraps an error with the process exit code it should produce.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func configErr(err error) error {
	return &exitError{code: exitConfigError, err: err}
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "A fan-out pipeline for harvesting remote content.",
		Long: `harvester pulls a bounded list of work items through a pool of
workers, fetching remote content for each item sequentially or as a burst of
concurrent requests, and persisting every successful result to a per-item
file.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "address serving /metrics; disabled when empty")
	cmd.PersistentFlags().BoolVar(&devLogging, "dev-logging", false, "use the human-readable development logger")

	cmd.AddCommand(newImagesCmd(), newTickersCmd())
	return cmd
}

// Execute is the main entry point. It maps command errors onto the
// documented exit codes.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		var xe *exitError
		if errors.As(err, &xe) {
			os.Exit(xe.code)
		}
		os.Exit(exitRunError)
	}
	os.Exit(exitOK)
}

// setup loads configuration and builds the run's logger and optional metrics
// listener. Callers own the returned cleanup.
func setup() (config.Config, *zap.Logger, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, nil, configErr(err)
	}

	logger, err := logging.New(devLogging || cfg.Logging.Development, zap.String("app", "harvester"))
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("build logger: %w", err)
	}

	addr := metricsAddr
	if addr == "" {
		addr = cfg.Metrics.Addr
	}
	srv := metrics.Serve(addr, logger)

	cleanup := func() {
		if srv != nil {
			_ = srv.Close()
		}
		_ = logger.Sync()
	}
	return cfg, logger, cleanup, nil
}
