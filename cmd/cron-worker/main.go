package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/playgate/internal/cron"
	"github.com/angelmondragon/playgate/internal/devicesessions"
	"github.com/angelmondragon/playgate/internal/wiring"
	"github.com/angelmondragon/playgate/pkg/config"
	"github.com/angelmondragon/playgate/pkg/db"
	"github.com/angelmondragon/playgate/pkg/instance"
	"github.com/angelmondragon/playgate/pkg/logger"
	"github.com/angelmondragon/playgate/pkg/metrics"
	"github.com/angelmondragon/playgate/pkg/migrate"
	"github.com/angelmondragon/playgate/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	jobs, err := buildJobs(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron", envOrLocal(cfg.App.Env)), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"ledger":      cfg.Playback.Backend(),
		"instance":    instance.GetID("cron-0"),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// buildJobs registers the reaper only for the SQL ledger; Redis sessions
// expire through the sorted-set score and the memory ledger lives in the API
// process.
func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) ([]cron.Job, error) {
	var jobs []cron.Job

	if cfg.Playback.Backend() == config.LedgerBackendSQL {
		ledger, err := wiring.NewLedger(cfg.Playback, dbClient.DB(), redisClient)
		if err != nil {
			return nil, err
		}
		if reaper, ok := ledger.(devicesessions.Reaper); ok {
			job, err := cron.NewDeviceSessionReaperJob(cron.DeviceSessionReaperJobParams{Logger: logg, Reaper: reaper})
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, job)
		}
	}

	coordinator, jobRepo, err := wiring.NewCoordinator(cfg, logg, dbClient.DB(), redisClient, nil)
	if err != nil {
		return nil, err
	}
	reconcile, err := cron.NewCascadeReconcileJob(cron.CascadeReconcileJobParams{Logger: logg, Coordinator: coordinator})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewCascadeJobRetentionJob(cron.CascadeJobRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: jobRepo,
	})
	if err != nil {
		return nil, err
	}
	return append(jobs, reconcile, retention), nil
}

func envOrLocal(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
