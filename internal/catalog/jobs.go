package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/playgate/internal/cascade"
	"github.com/angelmondragon/playgate/internal/repo"
	"github.com/angelmondragon/playgate/pkg/db/models"
	"github.com/angelmondragon/playgate/pkg/enums"
	pkgerrors "github.com/angelmondragon/playgate/pkg/errors"
	"github.com/angelmondragon/playgate/pkg/pagination"
)

var unfinishedStatuses = []enums.CascadeStatus{enums.CascadeStatusRunning, enums.CascadeStatusIncomplete}

// JobRepository persists cascade jobs.
type JobRepository struct {
	base repo.Base
}

func NewJobRepository(conn *gorm.DB) *JobRepository {
	return &JobRepository{base: repo.NewBase(conn)}
}

// OpenJob supersedes unfinished jobs for other tiers and reuses or creates the
// job for this tier, marking it running with one more attempt.
func (r *JobRepository) OpenJob(ctx context.Context, seriesID uuid.UUID, tier enums.AccessTier, total int) (*models.CascadeJob, error) {
	var job models.CascadeJob
	err := r.base.Transaction(ctx, func(tx repo.Base) error {
		conn := tx.DB(ctx)
		if err := conn.Model(&models.CascadeJob{}).
			Where("series_id = ? AND status IN ? AND target_tier <> ?", seriesID, unfinishedStatuses, tier).
			Update("status", enums.CascadeStatusSuperseded).Error; err != nil {
			return fmt.Errorf("supersede cascade jobs: %w", err)
		}

		var existing []models.CascadeJob
		if err := conn.Where("series_id = ? AND status IN ? AND target_tier = ?", seriesID, unfinishedStatuses, tier).
			Order("created_at DESC").
			Limit(1).
			Find(&existing).Error; err != nil {
			return fmt.Errorf("find cascade job: %w", err)
		}
		if len(existing) == 0 {
			job = models.CascadeJob{
				SeriesID:   seriesID,
				TargetTier: tier,
				Status:     enums.CascadeStatusRunning,
				TotalCount: total,
				Attempts:   1,
			}
			return conn.Create(&job).Error
		}

		job = existing[0]
		job.Status = enums.CascadeStatusRunning
		job.TotalCount = total
		job.Attempts++
		return conn.Save(&job).Error
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *JobRepository) SaveJob(ctx context.Context, job *models.CascadeJob) error {
	if job == nil {
		return fmt.Errorf("cascade job is required")
	}
	return r.base.DB(ctx).Save(job).Error
}

// ListResumableJobs returns incomplete jobs and running jobs untouched since staleBefore, oldest first.
func (r *JobRepository) ListResumableJobs(ctx context.Context, staleBefore time.Time, limit int) ([]models.CascadeJob, error) {
	var jobs []models.CascadeJob
	if err := r.base.DB(ctx).
		Where("status = ? OR (status = ? AND updated_at < ?)",
			enums.CascadeStatusIncomplete, enums.CascadeStatusRunning, staleBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// FindJob returns a job by id, or nil.
func (r *JobRepository) FindJob(ctx context.Context, id uuid.UUID) (*models.CascadeJob, error) {
	var jobs []models.CascadeJob
	if err := r.base.DB(ctx).Where("id = ?", id).Limit(1).Find(&jobs).Error; err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return &jobs[0], nil
}

// ListJobs pages through a series' cascade jobs, newest first.
func (r *JobRepository) ListJobs(ctx context.Context, seriesID uuid.UUID, params pagination.Params) (pagination.Page[models.CascadeJob], error) {
	limit := pagination.NormalizeLimit(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.CascadeJob]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	query := r.base.DB(ctx).Where("series_id = ?", seriesID)
	if cursor != nil {
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var jobs []models.CascadeJob
	if err := query.Order("created_at DESC").Order("id DESC").Limit(limit + 1).Find(&jobs).Error; err != nil {
		return pagination.Page[models.CascadeJob]{}, err
	}
	return pagination.Build(jobs, limit, func(j models.CascadeJob) pagination.Cursor {
		return pagination.Cursor{CreatedAt: j.CreatedAt, ID: j.ID}
	}), nil
}

// DeleteFinishedBefore removes completed and superseded jobs last touched before cutoff.
func (r *JobRepository) DeleteFinishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	conn := r.base.DB(ctx)
	if tx != nil {
		conn = tx.WithContext(ctx)
	}
	res := conn.Where("status IN ? AND updated_at < ?",
		[]enums.CascadeStatus{enums.CascadeStatusCompleted, enums.CascadeStatusSuperseded}, cutoff).
		Delete(&models.CascadeJob{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

var _ cascade.JobStore = (*JobRepository)(nil)
