package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/playgate/pkg/logger"
)

const cascadeJobRetentionDays = 30

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cascadeJobPruner interface {
	DeleteFinishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type CascadeJobRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository cascadeJobPruner
	Retention  int
}

// NewCascadeJobRetentionJob deletes completed and superseded cascade jobs past retention.
func NewCascadeJobRetentionJob(params CascadeJobRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("cascade job repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = cascadeJobRetentionDays
	}
	return &cascadeJobRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		retention: retention,
		now:       time.Now,
	}, nil
}

type cascadeJobRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      cascadeJobPruner
	retention int
	now       func() time.Time
}

func (j *cascadeJobRetentionJob) Name() string { return "cascade-job-retention" }

func (j *cascadeJobRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeleteFinishedBefore(ctx, tx, cutoff)
		if err != nil {
			return err
		}
		deleted = rows
		return nil
	})
	if err != nil {
		return fmt.Errorf("cascade job retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "cascade job retention complete")
	return nil
}
