package trial

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultSweepInterval = time.Hour
	defaultWarnDaysAhead = 3
)

// Runner drives the sweeps on a ticker. The sweeps are idempotent, so the
// runner is safe to restart at any point; it is expected to run as a single
// scheduled instance.
type Runner struct {
	sweeper  *Sweeper
	interval time.Duration
	warnDays int
	dryRun   bool
	logger   *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithInterval sets the sweep interval. Defaults to one hour.
func WithInterval(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithWarnDaysAhead sets how many days before trial_end the warning fires.
func WithWarnDaysAhead(days int) RunnerOption {
	return func(r *Runner) {
		if days > 0 {
			r.warnDays = days
		}
	}
}

// WithDryRun makes the warning sweep log candidates without notifying.
func WithDryRun(dryRun bool) RunnerOption {
	return func(r *Runner) {
		r.dryRun = dryRun
	}
}

// WithRunnerLogger sets the structured logger. Defaults to slog.Default().
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a sweep runner.
// Panics if sweeper is nil to fail fast during initialization.
func NewRunner(sweeper *Sweeper, opts ...RunnerOption) *Runner {
	if sweeper == nil {
		panic("trial: sweeper is required")
	}

	r := &Runner{
		sweeper:  sweeper,
		interval: defaultSweepInterval,
		warnDays: defaultWarnDaysAhead,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Start runs the sweeps immediately and then on every tick until the context
// is cancelled. Returns the context error on shutdown.
func (r *Runner) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "trial sweep runner shutting down")
			return ctx.Err()
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Runner) sweep(ctx context.Context) {
	expired, err := r.sweeper.ExpireTrials(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "trial expiry sweep failed",
			slog.String("error", err.Error()))
	}

	warned, err := r.sweeper.WarnExpiring(ctx, r.warnDays, r.dryRun)
	if err != nil {
		r.logger.ErrorContext(ctx, "trial warning sweep failed",
			slog.String("error", err.Error()))
	}

	r.logger.InfoContext(ctx, "trial sweep completed",
		slog.Int("expired", expired),
		slog.Int("warned", warned))
}
