package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/playgate/internal/devicesessions"
	"github.com/angelmondragon/playgate/pkg/logger"
)

type DeviceSessionReaperJobParams struct {
	Logger *logger.Logger
	Reaper devicesessions.Reaper
}

// NewDeviceSessionReaperJob frees device slots whose sessions expired without a release.
func NewDeviceSessionReaperJob(params DeviceSessionReaperJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reaper == nil {
		return nil, fmt.Errorf("device session reaper required")
	}
	return &deviceSessionReaperJob{logg: params.Logger, reaper: params.Reaper}, nil
}

type deviceSessionReaperJob struct {
	logg   *logger.Logger
	reaper devicesessions.Reaper
}

func (j *deviceSessionReaperJob) Name() string { return "device-session-reaper" }

func (j *deviceSessionReaperJob) Run(ctx context.Context) error {
	reaped, err := j.reaper.ReapExpired(ctx)
	if err != nil {
		return fmt.Errorf("reap expired device sessions: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "sessions_reaped", reaped), "device session reap complete")
	return nil
}
