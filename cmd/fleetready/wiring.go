package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/fleetready/internal/adapters/auth"
	"github.com/okian/fleetready/internal/adapters/repository"
	"github.com/okian/fleetready/internal/adapters/secrets"
	app "github.com/okian/fleetready/internal/app"
	"github.com/okian/fleetready/internal/config"
	"github.com/okian/fleetready/internal/domain/dedupe"
	"github.com/okian/fleetready/internal/domain/merge"
	"github.com/okian/fleetready/internal/domain/normalize"
	"github.com/okian/fleetready/internal/domain/scoring"
	"github.com/okian/fleetready/pkg/logger"
)

// openStore connects to the configured database and applies migrations.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (*repository.SQLStore, error) {
	db, err := repository.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(ctx, db, cfg.DatabaseDriver); err != nil {
		return nil, err
	}
	return repository.NewSQLStore(db, repository.WithLogger(log.Named("repository"))), nil
}

// newService builds the ingestion service from configuration. The returned
// closer releases the dedupe backend.
func newService(ctx context.Context, cfg *config.Config, store repository.Store, log logger.Logger) (*app.Service, func() error, error) {
	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.BatchQueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithNormalizeParallelism(cfg.NormalizeParallelism),
		app.WithLockStripes(cfg.LockStripes),
		app.WithScoreWindowDays(cfg.ScoreWindowDays),
		app.WithSummaryCacheTTL(time.Duration(cfg.SummaryCacheTTLSeconds) * time.Second),
		app.WithNormalizerOptions(normalize.WithTimeLayouts(cfg.TimeLayouts...)),
		app.WithMergeOptions(merge.WithTolerance(time.Duration(cfg.MergeToleranceHours) * time.Hour)),
		app.WithScoringOptions(
			scoring.WithServiceIntervals(cfg.ServiceIntervalsDays),
			scoring.WithWeightsFromConfig(cfg.OverdueWeights, cfg.DefaultOverdueWeight),
			scoring.WithMTTR(cfg.MTTRTargetHours, cfg.MTTRWeight),
		),
	}

	closer := func() error { return nil }
	if cfg.DedupeBackend == "redis" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		opts = append(opts, app.WithDeduper(dedupe.NewRedis(client)))
		closer = client.Close
		log.Info(ctx, "using redis dedupe backend", logger.String("addr", cfg.RedisAddr))
	}
	return app.New(store, opts...), closer, nil
}

// newValidator builds the bearer-token validator: HS256 tokens signed with
// the configured secret, then static API keys.
func newValidator(ctx context.Context, cfg *config.Config, store secrets.Store, log logger.Logger) auth.Validator {
	jwtOpts := []auth.JWTOption{}
	if cfg.AuthIssuer != "" {
		jwtOpts = append(jwtOpts, auth.WithIssuer(cfg.AuthIssuer))
	}
	chain := auth.Chain{auth.NewJWT(func(ctx context.Context) ([]byte, error) {
		v, err := store.Get(ctx, cfg.AuthSecretKey)
		if err != nil {
			return nil, err
		}
		return []byte(v), nil
	}, jwtOpts...)}

	if len(cfg.APIKeys) > 0 {
		keys := &rotatingKeys{names: cfg.APIKeys, store: store, log: log}
		keys.reload(ctx)
		store.OnRotate(func(key string) {
			for _, name := range cfg.APIKeys {
				if name == key {
					keys.reload(context.Background())
					return
				}
			}
		})
		chain = append(chain, keys)
	}
	return chain
}

// rotatingKeys resolves static API keys from the secret store and rebuilds
// them when one of their secrets rotates.
type rotatingKeys struct {
	names   map[string]string // subject -> secret name
	store   secrets.Store
	log     logger.Logger
	current atomic.Pointer[auth.APIKeys]
}

func (k *rotatingKeys) reload(ctx context.Context) {
	resolved := make(map[string]string, len(k.names))
	for subject, name := range k.names {
		v, err := k.store.Get(ctx, name)
		if err != nil {
			k.log.Warn(ctx, "api key unavailable", logger.String("subject", subject), logger.Error(err))
			continue
		}
		resolved[v] = subject
	}
	k.current.Store(auth.NewAPIKeys(resolved))
}

// Validate implements auth.Validator.
func (k *rotatingKeys) Validate(ctx context.Context, token string) (auth.Principal, error) {
	keys := k.current.Load()
	if keys == nil {
		return auth.Principal{}, fmt.Errorf("%w: no api keys loaded", auth.ErrUnauthorized)
	}
	return keys.Validate(ctx, token)
}

// retryable reports whether a scheduled job failed on storage and may be
// retried.
func retryable(err error) bool {
	return errors.Is(err, repository.ErrPersistence)
}
