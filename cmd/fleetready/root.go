package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/fleetready/internal/config"
	"github.com/okian/fleetready/pkg/logger"
	"github.com/okian/fleetready/pkg/metrics"
)

// rootOptions carries persistent flags and the loaded configuration to
// every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log logger.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "fleetready",
		Short:         "Fleet maintenance readiness service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (defaults to $FLEETREADY_CONFIG)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override: debug, info, warn, error")

	root.AddCommand(
		newServeCmd(opts),
		newIngestCmd(opts),
		newMigrateCmd(opts),
		newScoreCmd(opts),
		newGenerateCmd(opts),
	)
	return root
}

// load reads configuration (defaults -> file -> env) and sets up logging.
func (o *rootOptions) load(ctx context.Context) error {
	if o.configPath != "" {
		if err := os.Setenv(config.EnvPrefix+"CONFIG", o.configPath); err != nil {
			return fmt.Errorf("set config path: %w", err)
		}
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}

	if err := logger.InitWithOptions(logger.Options{Format: cfg.LogFormat, Writer: os.Stderr}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	log := logger.Get()
	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.Configure(
		metrics.WithEnabled(cfg.MetricsEnabled),
		metrics.WithRefreshInterval(time.Duration(cfg.MetricsRefreshSeconds)*time.Second),
		metrics.WithConstLabels(cfg.MetricsLabels),
	)

	o.cfg = cfg
	o.log = log
	return nil
}
