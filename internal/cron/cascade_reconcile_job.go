package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/playgate/pkg/logger"
)

type cascadeResumer interface {
	ResumeIncomplete(ctx context.Context) (int, error)
}

type CascadeReconcileJobParams struct {
	Logger      *logger.Logger
	Coordinator cascadeResumer
}

// NewCascadeReconcileJob finishes tier cascades that stopped part way.
func NewCascadeReconcileJob(params CascadeReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Coordinator == nil {
		return nil, fmt.Errorf("cascade coordinator required")
	}
	return &cascadeReconcileJob{logg: params.Logger, coordinator: params.Coordinator}, nil
}

type cascadeReconcileJob struct {
	logg        *logger.Logger
	coordinator cascadeResumer
}

func (j *cascadeReconcileJob) Name() string { return "cascade-reconcile" }

func (j *cascadeReconcileJob) Run(ctx context.Context) error {
	resumed, err := j.coordinator.ResumeIncomplete(ctx)
	logCtx := j.logg.WithField(ctx, "jobs_resumed", resumed)
	if err != nil {
		return fmt.Errorf("resume cascades: %w", err)
	}
	j.logg.Info(logCtx, "cascade reconcile complete")
	return nil
}
