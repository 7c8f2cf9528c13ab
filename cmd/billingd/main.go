// Command billingd runs the billing engine's background side: it applies
// schema migrations and drives the trial expiry and warning sweeps. The
// entitlement and usage APIs themselves are consumed in-process by the
// request-handling services.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paisakit/paisakit/pkg/config"
	"github.com/paisakit/paisakit/pkg/entitlement"
	"github.com/paisakit/paisakit/pkg/feature"
	"github.com/paisakit/paisakit/pkg/kvcache"
	"github.com/paisakit/paisakit/pkg/logger"
	"github.com/paisakit/paisakit/pkg/pg"
	"github.com/paisakit/paisakit/pkg/redis"
	"github.com/paisakit/paisakit/pkg/trial"
	"github.com/paisakit/paisakit/pkg/usage"
	"github.com/paisakit/paisakit/svc/billing"
)

type appConfig struct {
	Log   logger.Config
	PG    pg.Config
	Redis redis.Config

	CatalogPath   string        `env:"PLAN_CATALOG_PATH" envDefault:"plans.yaml"`
	SweepInterval time.Duration `env:"TRIAL_SWEEP_INTERVAL" envDefault:"1h"`
	WarnDaysAhead int           `env:"TRIAL_WARN_DAYS_AHEAD" envDefault:"3"`
	WarnDryRun    bool          `env:"TRIAL_WARN_DRY_RUN" envDefault:"true"`
}

func main() {
	cfg := config.MustLoad[appConfig](".env")
	log := logger.New(cfg.Log, logger.WithComponent("billingd"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && ctx.Err() == nil {
		log.ErrorContext(ctx, "billingd failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, cfg.PG, log); err != nil {
		return err
	}

	redisClient, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	registry, err := feature.NewRegistry(ctx, feature.NewInMemSource(feature.DefaultDefinitions()))
	if err != nil {
		return err
	}

	catalog, err := entitlement.NewCatalog(ctx, entitlement.NewYAMLCatalogSource(cfg.CatalogPath, registry))
	if err != nil {
		return err
	}

	plans := entitlement.NewPGStore(pool, registry)
	cache := kvcache.NewRedisCache(redisClient, "billing")

	svc := billing.NewService(registry, catalog, plans, usage.NewPGStore(pool),
		billing.WithCache(cache),
		billing.WithLogger(log))

	sweeper := trial.NewSweeper(plans,
		trial.WithLogger(log),
		trial.WithExpiredHook(svc.InvalidateOrganization))

	runner := trial.NewRunner(sweeper,
		trial.WithInterval(cfg.SweepInterval),
		trial.WithWarnDaysAhead(cfg.WarnDaysAhead),
		trial.WithDryRun(cfg.WarnDryRun),
		trial.WithRunnerLogger(log))

	log.InfoContext(ctx, "billingd started",
		slog.String("catalog", cfg.CatalogPath),
		slog.Duration("sweep_interval", cfg.SweepInterval))

	return runner.Start(ctx)
}
