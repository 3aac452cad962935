package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/playgate/api/routes"
	"github.com/angelmondragon/playgate/internal/catalog"
	"github.com/angelmondragon/playgate/internal/playback"
	"github.com/angelmondragon/playgate/internal/wiring"
	"github.com/angelmondragon/playgate/pkg/config"
	"github.com/angelmondragon/playgate/pkg/db"
	"github.com/angelmondragon/playgate/pkg/instance"
	"github.com/angelmondragon/playgate/pkg/logger"
	"github.com/angelmondragon/playgate/pkg/metrics"
	"github.com/angelmondragon/playgate/pkg/migrate"
	"github.com/angelmondragon/playgate/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	playbackMetrics := metrics.NewPlaybackMetrics(prometheus.DefaultRegisterer)

	ledger, err := wiring.NewLedger(cfg.Playback, dbClient.DB(), redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create device session ledger", err)
		os.Exit(1)
	}

	reaperService, err := wiring.NewInProcessReaper(cfg, logg, ledger, metrics.NewCronJobMetrics(prometheus.DefaultRegisterer))
	if err != nil {
		logg.Error(context.Background(), "failed to create device session reaper", err)
		os.Exit(1)
	}

	catalogRepo := catalog.NewRepository(dbClient.DB())
	coordinator, jobRepo, err := wiring.NewCoordinator(cfg, logg, dbClient.DB(), redisClient, playbackMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create cascade coordinator", err)
		os.Exit(1)
	}

	playbackService, err := playback.NewService(playback.ServiceParams{
		Logger:  logg,
		Catalog: catalogRepo,
		Ledger:  ledger,
		Metrics: playbackMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create playback service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := instance.GetID("local")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
		"ledger":   cfg.Playback.Backend(),
	})
	logg.Info(ctx, "starting api server")

	if reaperService != nil {
		go func() {
			if err := reaperService.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logg.Error(ctx, "device session reaper stopped", err)
			}
		}()
	}

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			DB:          dbClient,
			Redis:       redisClient,
			Idempotency: redisClient,
			Gatherer:    prometheus.DefaultGatherer,
			Playback:    playbackService,
			Catalog:     catalogRepo,
			Billing:     catalogRepo,
			Cascade:     coordinator,
			CascadeJob:  jobRepo,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shutting down gracefully")
	}
}
