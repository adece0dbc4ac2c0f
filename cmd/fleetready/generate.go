package main

import (
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/fleetready/internal/feedgen"
)

func newGenerateCmd(_ *rootOptions) *cobra.Command {
	cfg := feedgen.Config{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write synthetic vendor feeds, one file per vendor format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Now = time.Now()
			stats, err := feedgen.Generate(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return printGenerated(cmd.OutOrStdout(), stats)
		},
	}
	cmd.Flags().IntVar(&cfg.Ships, "ships", 20, "number of ships")
	cmd.Flags().IntVar(&cfg.EventsPerShip, "events", 25, "maintenance events per ship")
	cmd.Flags().StringVar(&cfg.OutDir, "out", "feeds", "output directory")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", 1, "random seed")
	cmd.Flags().Float64Var(&cfg.Overlap, "overlap", 0.3, "share of events reported by a second vendor")
	return cmd
}

type generated struct {
	Ships   int      `json:"ships"`
	Events  int      `json:"events"`
	Records int      `json:"records"`
	Files   []string `json:"files"`
}

func printGenerated(out io.Writer, stats feedgen.Stats) error {
	files := make([]string, 0, len(stats.Files))
	for _, p := range stats.Files {
		files = append(files, p)
	}
	sort.Strings(files)
	return printJSON(out, generated{Ships: stats.Ships, Events: stats.Events, Records: stats.Records, Files: files})
}
