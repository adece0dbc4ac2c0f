// Package schedule runs periodic jobs: vendor pulls, inbox scans and fleet
// rescoring.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sethvargo/go-retry"

	"github.com/okian/fleetready/pkg/logger"
	"github.com/okian/fleetready/pkg/metrics"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Trigger schedules jobs.
type Trigger interface {
	Schedule(spec, name string, job Job) error
	Start(ctx context.Context)
	Stop(ctx context.Context) error
}

// Cron is a Trigger backed by robfig/cron. Runs of the same job never
// overlap; a run still in progress skips the next tick.
type Cron struct {
	c         *cron.Cron
	log       logger.Logger
	retries   uint64
	backoff   time.Duration
	retryable func(error) bool

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// NewCron creates a stopped Cron trigger.
func NewCron(opts ...Option) *Cron {
	t := &Cron{
		log:       logger.Nop(),
		retries:   3,
		backoff:   time.Second,
		retryable: func(error) bool { return false },
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(t)
	}
	cl := cronLogger{log: t.log}
	t.c = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return t
}

// Schedule registers job under name. spec accepts five-field cron
// expressions and descriptors such as "@every 5m" or "@daily".
func (t *Cron) Schedule(spec, name string, job Job) error {
	if _, err := t.c.AddFunc(spec, func() { t.run(name, job) }); err != nil {
		return fmt.Errorf("%w: %s %q: %w", ErrInvalidSpec, name, spec, err)
	}
	t.log.Info(context.Background(), "job scheduled", logger.String("job", name), logger.String("spec", spec))
	return nil
}

// Start begins firing jobs. Job contexts derive from ctx.
func (t *Cron) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return
	}
	t.ctx, t.cancel = context.WithCancel(ctx)
	t.started = true
	t.c.Start()
}

// Stop prevents new runs and waits for running jobs or ctx.
func (t *Cron) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = false
	cancel := t.cancel
	t.mu.Unlock()

	done := t.c.Stop()
	select {
	case <-done.Done():
		cancel()
		return nil
	case <-ctx.Done():
		cancel()
		return fmt.Errorf("stop scheduler: %w", ctx.Err())
	}
}

// RunNow executes job once with the trigger's retry policy.
func (t *Cron) RunNow(ctx context.Context, name string, job Job) error {
	return t.execute(ctx, name, job)
}

func (t *Cron) run(name string, job Job) {
	t.mu.Lock()
	ctx := t.ctx
	t.mu.Unlock()
	_ = t.execute(ctx, name, job)
}

func (t *Cron) execute(ctx context.Context, name string, job Job) error {
	start := time.Now()
	attempt := 0
	b := retry.WithMaxRetries(t.retries, retry.NewExponential(t.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := job(ctx)
		if err != nil && t.retryable(err) {
			t.log.Warn(ctx, "job failed; retrying",
				logger.String("job", name), logger.Int("attempt", attempt), logger.Error(err))
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		metrics.RecordTriggerRun(name, "failed")
		t.log.Error(ctx, "job failed",
			logger.String("job", name),
			logger.Int("attempts", attempt),
			logger.Duration("elapsed", time.Since(start)),
			logger.Error(err))
		return err
	}
	metrics.RecordTriggerRun(name, "ok")
	t.log.Debug(ctx, "job finished", logger.String("job", name), logger.Duration("elapsed", time.Since(start)))
	return nil
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(context.Background(), msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(context.Background(), msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(kv []any) []logger.Field {
	out := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
