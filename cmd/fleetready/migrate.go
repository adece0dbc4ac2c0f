package main

import (
	"github.com/spf13/cobra"

	"github.com/okian/fleetready/internal/adapters/repository"
	"github.com/okian/fleetready/pkg/logger"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := repository.Open(opts.cfg.DatabaseDriver, opts.cfg.DatabaseDSN)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer func() { _ = sqlDB.Close() }()
			}
			if err := repository.Migrate(ctx, db, opts.cfg.DatabaseDriver); err != nil {
				return err
			}
			opts.log.Info(ctx, "migrations applied", logger.String("driver", opts.cfg.DatabaseDriver))
			return nil
		},
	}
}
