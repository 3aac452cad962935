// Package cascade propagates a series tier change to every episode of the series.
//
// A cascade is rolled forward rather than rolled back: every row write is
// conditional on the row not already carrying the target tier, so a cascade
// interrupted halfway is finished by simply running it again.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/playgate/internal/policy"
	"github.com/angelmondragon/playgate/pkg/db/models"
	"github.com/angelmondragon/playgate/pkg/enums"
	pkgerrors "github.com/angelmondragon/playgate/pkg/errors"
	"github.com/angelmondragon/playgate/pkg/logger"
	"github.com/angelmondragon/playgate/pkg/metrics"
)

const (
	defaultResumeLimit   = 50
	defaultProgressEvery = 25
)

// SeriesRecord is the slice of a content row the cascade needs.
type SeriesRecord struct {
	ID     uuid.UUID
	Kind   enums.ContentKind
	Policy policy.ContentPolicy
}

// Store reads and conditionally rewrites tiers. SetSeriesTier and
// SetEpisodeTier report whether a row actually changed. LoadSeries returns a
// NOT_FOUND error when the series does not exist.
type Store interface {
	LoadSeries(ctx context.Context, seriesID uuid.UUID) (SeriesRecord, error)
	ListEpisodeIDs(ctx context.Context, seriesID uuid.UUID) ([]uuid.UUID, error)
	SetSeriesTier(ctx context.Context, seriesID uuid.UUID, tier enums.AccessTier) (bool, error)
	SetEpisodeTier(ctx context.Context, episodeID uuid.UUID, tier enums.AccessTier) (bool, error)
}

// JobStore persists cascade progress.
type JobStore interface {
	// OpenJob returns the running job for the series and tier. An unfinished
	// job with the same target is reused; one with another target is superseded.
	OpenJob(ctx context.Context, seriesID uuid.UUID, tier enums.AccessTier, total int) (*models.CascadeJob, error)
	SaveJob(ctx context.Context, job *models.CascadeJob) error
	// ListResumableJobs returns incomplete jobs and running jobs untouched since staleBefore.
	ListResumableJobs(ctx context.Context, staleBefore time.Time, limit int) ([]models.CascadeJob, error)
}

// Result summarizes one cascade run.
type Result struct {
	JobID           uuid.UUID `json:"job_id"`
	SeriesUpdated   bool      `json:"series_updated"`
	EpisodesUpdated int       `json:"episodes_updated"`
	EpisodesTotal   int       `json:"episodes_total"`
}

type CoordinatorParams struct {
	Logger  *logger.Logger
	Store   Store
	Jobs    JobStore
	Lock    KeyedLock
	Metrics *metrics.PlaybackMetrics
	// StaleAfter is how long a running job may go untouched before it is
	// treated as abandoned. It should not be shorter than the lock TTL.
	StaleAfter  time.Duration
	ResumeLimit int
	// ProgressEvery is how many episodes run between lock extensions and
	// job checkpoints.
	ProgressEvery int
	Now           func() time.Time
}

// Coordinator runs tier cascades under a per-series lock.
type Coordinator struct {
	logg        *logger.Logger
	store       Store
	jobs        JobStore
	lock        KeyedLock
	metrics     *metrics.PlaybackMetrics
	staleAfter    time.Duration
	resumeLimit   int
	progressEvery int
	now           func() time.Time
}

func NewCoordinator(params CoordinatorParams) (*Coordinator, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("cascade store required")
	}
	if params.Jobs == nil {
		return nil, fmt.Errorf("cascade job store required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("cascade lock required")
	}
	if params.StaleAfter <= 0 {
		params.StaleAfter = defaultLockTTL
	}
	if params.ResumeLimit <= 0 {
		params.ResumeLimit = defaultResumeLimit
	}
	if params.ProgressEvery <= 0 {
		params.ProgressEvery = defaultProgressEvery
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &Coordinator{
		logg:          params.Logger,
		store:         params.Store,
		jobs:          params.Jobs,
		lock:          params.Lock,
		metrics:       params.Metrics,
		staleAfter:    params.StaleAfter,
		resumeLimit:   params.ResumeLimit,
		progressEvery: params.ProgressEvery,
		now:           params.Now,
	}, nil
}

// CascadeTierChange sets the series tier and rolls it forward to every episode.
func (c *Coordinator) CascadeTierChange(ctx context.Context, seriesID uuid.UUID, tier enums.AccessTier) (Result, error) {
	if !tier.IsValid() {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid access tier").
			WithDetails(map[string]string{"tier": "must be one of free, rent, vip"})
	}
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"series_id":   seriesID.String(),
		"target_tier": tier.String(),
		"event":       "cascade.tier_change",
	})

	lease, ok, err := c.lock.TryLock(logCtx, seriesID.String())
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeUpstreamUnavailable, err, "acquire cascade lock")
	}
	if !ok {
		c.metrics.ObserveCascade("in_progress", 0)
		return Result{}, pkgerrors.New(pkgerrors.CodeCascadeInProgress, "a tier change is already running for this series")
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(logCtx)); err != nil {
			c.logg.Error(logCtx, "release cascade lock", err)
		}
	}()

	start := c.now()
	result, err := c.run(logCtx, lease, seriesID, tier)
	outcome := "completed"
	if err != nil {
		outcome = string(pkgerrors.CodeOf(err))
	}
	c.metrics.ObserveCascade(outcome, c.now().Sub(start))

	reportCtx := c.logg.WithFields(logCtx, map[string]any{
		"job_id":           result.JobID.String(),
		"series_updated":   result.SeriesUpdated,
		"episodes_updated": result.EpisodesUpdated,
		"episodes_total":   result.EpisodesTotal,
	})
	if err != nil {
		c.logg.Error(reportCtx, "tier cascade failed", err)
		return result, err
	}
	c.logg.Info(reportCtx, "tier cascade completed")
	return result, nil
}

func (c *Coordinator) run(ctx context.Context, lease Lease, seriesID uuid.UUID, tier enums.AccessTier) (Result, error) {
	series, err := c.store.LoadSeries(ctx, seriesID)
	if err != nil {
		return Result{}, storeError(err, "load series")
	}
	if !series.Kind.HasEpisodes() {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "tier cascade requires episodic content").
			WithDetails(map[string]string{"kind": "must be series or anime"})
	}
	next := series.Policy
	next.Tier = tier
	if _, err := policy.PreparePolicy(next); err != nil {
		return Result{}, err
	}

	episodes, err := c.store.ListEpisodeIDs(ctx, seriesID)
	if err != nil {
		return Result{}, storeError(err, "list episodes")
	}
	job, err := c.jobs.OpenJob(ctx, seriesID, tier, len(episodes))
	if err != nil {
		return Result{}, storeError(err, "open cascade job")
	}

	result := Result{JobID: job.ID, EpisodesTotal: len(episodes)}
	priorUpdates := job.UpdatedCount
	changed, err := c.store.SetSeriesTier(ctx, seriesID, tier)
	if err != nil {
		return result, c.fail(ctx, job, priorUpdates, err,
			pkgerrors.Wrap(pkgerrors.CodeUpstreamUnavailable, err, "update series tier"))
	}
	result.SeriesUpdated = changed

	for i, episodeID := range episodes {
		if i > 0 && i%c.progressEvery == 0 {
			if err := c.checkpoint(ctx, lease, job, priorUpdates+result.EpisodesUpdated); err != nil {
				return result, pkgerrors.Wrap(pkgerrors.CodeCascadeIncomplete, err, "tier change lost its series lock").
					WithDetails(map[string]int{"updated": result.EpisodesUpdated, "total": result.EpisodesTotal})
			}
		}
		changed, err := c.store.SetEpisodeTier(ctx, episodeID, tier)
		if err != nil {
			incomplete := pkgerrors.Wrap(pkgerrors.CodeCascadeIncomplete, err, "tier change stopped before every episode was updated").
				WithDetails(map[string]int{"updated": result.EpisodesUpdated, "total": result.EpisodesTotal})
			return result, c.fail(ctx, job, priorUpdates+result.EpisodesUpdated, err, incomplete)
		}
		if changed {
			result.EpisodesUpdated++
		}
	}

	completedAt := c.now()
	job.Status = enums.CascadeStatusCompleted
	job.UpdatedCount = priorUpdates + result.EpisodesUpdated
	job.TotalCount = result.EpisodesTotal
	job.CompletedAt = &completedAt
	job.LastError = nil
	if err := c.jobs.SaveJob(ctx, job); err != nil {
		// Rows are already consistent; the job stays running and the
		// reconciler closes it on its next pass.
		c.logg.Error(ctx, "mark cascade job completed", err)
	}
	return result, nil
}

// checkpoint extends the series lock and saves progress so the job's
// updated_at stays inside the reconciler's stale window. A lost lock stops the
// run; the job row then belongs to whoever holds the lock now.
func (c *Coordinator) checkpoint(ctx context.Context, lease Lease, job *models.CascadeJob, updated int) error {
	if err := lease.Extend(ctx); err != nil {
		return err
	}
	job.UpdatedCount = updated
	if err := c.jobs.SaveJob(ctx, job); err != nil {
		c.logg.Error(ctx, "checkpoint cascade job", err)
	}
	return nil
}

func (c *Coordinator) fail(ctx context.Context, job *models.CascadeJob, updated int, cause, returned error) error {
	msg := cause.Error()
	job.Status = enums.CascadeStatusIncomplete
	job.UpdatedCount = updated
	job.LastError = &msg
	if err := c.jobs.SaveJob(ctx, job); err != nil {
		c.logg.Error(ctx, "mark cascade job incomplete", err)
	}
	return returned
}

// ResumeIncomplete re-runs every resumable job and returns how many completed.
// Jobs whose series is locked by a live cascade are skipped.
func (c *Coordinator) ResumeIncomplete(ctx context.Context) (int, error) {
	staleBefore := c.now().Add(-c.staleAfter)
	jobs, err := c.jobs.ListResumableJobs(ctx, staleBefore, c.resumeLimit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeUpstreamUnavailable, err, "list resumable cascade jobs")
	}
	var errs error
	resumed := 0
	for i := range jobs {
		job := jobs[i]
		if _, err := c.CascadeTierChange(ctx, job.SeriesID, job.TargetTier); err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeCascadeInProgress) {
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("resume cascade job %s: %w", job.ID, err))
			continue
		}
		resumed++
	}
	return resumed, errs
}

func storeError(err error, op string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeUpstreamUnavailable, err, op+" timed out")
	}
	return pkgerrors.Wrap(pkgerrors.CodeUpstreamUnavailable, err, op)
}
