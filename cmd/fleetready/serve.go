package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/fleetready/internal/adapters/http/api"
	"github.com/okian/fleetready/internal/adapters/http/swagger"
	"github.com/okian/fleetready/internal/adapters/inbox"
	"github.com/okian/fleetready/internal/adapters/schedule"
	"github.com/okian/fleetready/internal/adapters/secrets"
	"github.com/okian/fleetready/internal/adapters/vendorapi"
	app "github.com/okian/fleetready/internal/app"
	"github.com/okian/fleetready/internal/config"
	"github.com/okian/fleetready/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second

	defaultVendorSchedule = "@hourly"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the ingestion workers and the schedulers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts.cfg, opts.log)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, log logger.Logger) error {
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
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(stopCtx, "service stop failed", logger.Error(err))
		}
	}()

	secretStore, err := secrets.NewFileStore(cfg.SecretsFile, secrets.WithLogger(log.Named("secrets")))
	if err != nil {
		return err
	}
	defer func() { _ = secretStore.Close() }()
	if err := secretStore.Watch(ctx); err != nil {
		return err
	}

	trigger, err := newTrigger(cfg, svc, secretStore, log)
	if err != nil {
		return err
	}
	trigger.Start(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := trigger.Stop(stopCtx); err != nil {
			log.Error(stopCtx, "scheduler stop failed", logger.Error(err))
		}
	}()

	startMetricsUpdaters(ctx, svc)

	apiOpts := []api.Option{api.WithLogger(log.Named("api"))}
	if cfg.AuthEnabled {
		apiOpts = append(apiOpts, api.WithValidator(newValidator(ctx, cfg, secretStore, log.Named("auth"))))
	}
	router := api.NewServer(svc, svc, apiOpts...).NewRouter(ctx)
	swagger.Register(ctx, router)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.Bool("auth", cfg.AuthEnabled))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	log.Info(shutdownCtx, "server stopped")
	return nil
}

// newTrigger schedules the fleet rescore, the inbox scan and every vendor
// pull. Jobs failing on storage are retried with exponential backoff.
func newTrigger(cfg *config.Config, svc *app.Service, store secrets.Store, log logger.Logger) (*schedule.Cron, error) {
	trigger := schedule.NewCron(
		schedule.WithLogger(log.Named("schedule")),
		schedule.WithRetry(cfg.RetryMaxAttempts, time.Second, retryable),
	)

	if err := trigger.Schedule(cfg.RescoreSchedule, "rescore", func(ctx context.Context) error {
		n, err := svc.RecomputeAll(ctx)
		if err != nil {
			return err
		}
		log.Info(ctx, "fleet rescored", logger.Int("changed", n))
		return nil
	}); err != nil {
		return nil, err
	}

	if cfg.InboxDir != "" {
		box := inbox.New(cfg.InboxDir, svc, inbox.WithLogger(log.Named("inbox")))
		if err := trigger.Schedule(cfg.InboxSchedule, "inbox", func(ctx context.Context) error {
			_, err := box.Scan(ctx)
			return err
		}); err != nil {
			return nil, err
		}
	}

	client := vendorapi.New(store, vendorapi.WithLogger(log.Named("vendorapi")))
	for _, v := range cfg.Vendors {
		ep := vendorapi.Endpoint{
			Name:       v.Name,
			URL:        v.URL,
			AuthScheme: v.AuthScheme,
			SecretKey:  v.SecretKey,
			Fields:     v.Fields,
		}
		spec := v.Schedule
		if spec == "" {
			spec = defaultVendorSchedule
		}
		if err := trigger.Schedule(spec, "vendor:"+v.Name, pullJob(client, ep, svc)); err != nil {
			return nil, err
		}
	}
	return trigger, nil
}

// pullJob fetches one vendor feed and ingests it as a single batch.
func pullJob(client *vendorapi.Client, ep vendorapi.Endpoint, sink inbox.Sink) schedule.Job {
	return func(ctx context.Context) error {
		batch, err := client.Pull(ctx, ep)
		if err != nil {
			return err
		}
		if len(batch.Records) == 0 {
			return nil
		}
		_, err = sink.IngestBatch(ctx, batch)
		return err
	}
}
