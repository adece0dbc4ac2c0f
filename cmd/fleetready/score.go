package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/okian/fleetready/internal/config"
	"github.com/okian/fleetready/pkg/logger"
)

func newScoreCmd(opts *rootOptions) *cobra.Command {
	var ship string
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Recompute the compliance score of one ship, or of the fleet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScore(cmd.Context(), opts.cfg, opts.log, cmd.OutOrStdout(), ship)
		},
	}
	cmd.Flags().StringVar(&ship, "ship", "", "ship ID; empty recomputes every ship")
	return cmd
}

type scoreOutput struct {
	ShipID  string `json:"ship_id,omitempty"`
	Changed int    `json:"changed"`
	Score   any    `json:"score,omitempty"`
}

func runScore(ctx context.Context, cfg *config.Config, log logger.Logger, out io.Writer, ship string) error {
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	svc, closeDedupe, err := newService(ctx, cfg, store, log)
	if err != nil {
		return err
	}
	defer func() { _ = closeDedupe() }()
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer func() { _ = svc.Stop(context.WithoutCancel(ctx)) }()

	if ship == "" {
		n, err := svc.RecomputeAll(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, scoreOutput{Changed: n})
	}

	sc, inserted, err := svc.Recompute(ctx, ship)
	if err != nil {
		return err
	}
	res := scoreOutput{ShipID: ship, Score: sc}
	if inserted {
		res.Changed = 1
	}
	return printJSON(out, res)
}
