package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/fleetready/internal/adapters/inbox"
	"github.com/okian/fleetready/internal/config"
	"github.com/okian/fleetready/internal/domain/model"
	"github.com/okian/fleetready/pkg/logger"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var source, format string
	cmd := &cobra.Command{
		Use:   "ingest FILE",
		Short: "Ingest one vendor file as a single batch and print its report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), opts.cfg, opts.log, cmd.OutOrStdout(), args[0], source, format)
		},
	}
	cmd.Flags().StringVar(&source, "source", "cli", "vendor feed name recorded on every record")
	cmd.Flags().StringVar(&format, "format", "", "csv, json, xml or yaml (default: from the file extension)")
	return cmd
}

func runIngest(ctx context.Context, cfg *config.Config, log logger.Logger, out io.Writer, path, source, format string) error {
	f := model.Format(strings.ToLower(strings.TrimSpace(format)))
	if f == "" {
		var ok bool
		if f, ok = inbox.FormatFor(path); !ok {
			return fmt.Errorf("cannot infer format of %s; pass --format", path)
		}
	}
	if !f.Valid() {
		return fmt.Errorf("unknown format %q", format)
	}

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

	report, err := inbox.IngestFile(ctx, svc, path, source, f)
	if err != nil {
		return err
	}
	log.Info(ctx, "file ingested",
		logger.String("path", path),
		logger.String("batch_id", report.BatchID),
		logger.Int("accepted", report.Accepted),
		logger.Int("rejected", report.Rejected))
	return printJSON(out, report)
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
