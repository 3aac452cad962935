// Package wiring builds the shared playback components from configuration so
// the API and the cron worker assemble them the same way.
package wiring

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/playgate/internal/cascade"
	"github.com/angelmondragon/playgate/internal/catalog"
	"github.com/angelmondragon/playgate/internal/cron"
	"github.com/angelmondragon/playgate/internal/devicesessions"
	"github.com/angelmondragon/playgate/pkg/config"
	"github.com/angelmondragon/playgate/pkg/logger"
	"github.com/angelmondragon/playgate/pkg/metrics"
	"github.com/angelmondragon/playgate/pkg/redis"
)

const cascadeLockScope = "cascade"

// NewLedger returns the device session ledger selected by PLAYGATE_PLAYBACK_LEDGER_BACKEND.
func NewLedger(cfg config.PlaybackConfig, conn *gorm.DB, redisClient *redis.Client) (devicesessions.Ledger, error) {
	switch cfg.Backend() {
	case config.LedgerBackendRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis ledger requires a redis client")
		}
		return devicesessions.NewRedisLedger(redisClient, cfg.DeviceSessionTTL, nil), nil
	case config.LedgerBackendSQL:
		if conn == nil {
			return nil, fmt.Errorf("sql ledger requires a database")
		}
		return devicesessions.NewSQLLedger(conn, cfg.DeviceSessionTTL, nil), nil
	case config.LedgerBackendMemory:
		return devicesessions.NewMemoryLedger(cfg.DeviceSessionTTL, nil), nil
	}
	return nil, fmt.Errorf("unsupported ledger backend %q", cfg.LedgerBackend)
}

// NewCascadeLock uses Redis so cascades stay exclusive across instances. The
// in-process lock is only used with the memory ledger, which already implies a
// single instance.
func NewCascadeLock(cfg *config.Config, redisClient *redis.Client) (cascade.KeyedLock, error) {
	if cfg.Playback.Backend() == config.LedgerBackendMemory || redisClient == nil {
		return cascade.NewLocalLock(), nil
	}
	return cascade.NewRedisLock(redisClient, cascadeLockScope, cfg.Cascade.LockTTL)
}

// NewCoordinator assembles the tier cascade coordinator over the catalog store.
func NewCoordinator(cfg *config.Config, logg *logger.Logger, conn *gorm.DB, redisClient *redis.Client, m *metrics.PlaybackMetrics) (*cascade.Coordinator, *catalog.JobRepository, error) {
	lock, err := NewCascadeLock(cfg, redisClient)
	if err != nil {
		return nil, nil, fmt.Errorf("cascade lock: %w", err)
	}
	jobs := catalog.NewJobRepository(conn)
	coordinator, err := cascade.NewCoordinator(cascade.CoordinatorParams{
		Logger:        logg,
		Store:         catalog.NewRepository(conn),
		Jobs:          jobs,
		Lock:          lock,
		Metrics:       m,
		StaleAfter:    cfg.Cascade.LockTTL,
		ProgressEvery: cfg.Cascade.ProgressEvery,
	})
	if err != nil {
		return nil, nil, err
	}
	return coordinator, jobs, nil
}

// NewInProcessReaper returns a cron service that reaps the memory ledger on
// the cron interval. Other backends are reaped by the cron worker or expire in
// Redis, so nil is returned for them.
func NewInProcessReaper(cfg *config.Config, logg *logger.Logger, ledger devicesessions.Ledger, m *metrics.CronJobMetrics) (*cron.Service, error) {
	if cfg.Playback.Backend() != config.LedgerBackendMemory {
		return nil, nil
	}
	reaper, ok := ledger.(devicesessions.Reaper)
	if !ok {
		return nil, nil
	}
	job, err := cron.NewDeviceSessionReaperJob(cron.DeviceSessionReaperJobParams{Logger: logg, Reaper: reaper})
	if err != nil {
		return nil, err
	}
	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(job),
		Lock:     &cron.LocalLock{},
		Metrics:  m,
		Interval: cfg.Cron.Interval,
	})
}
