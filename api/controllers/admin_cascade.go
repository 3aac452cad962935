package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/playgate/api/responses"
	"github.com/angelmondragon/playgate/api/validators"
	"github.com/angelmondragon/playgate/internal/cascade"
	"github.com/angelmondragon/playgate/pkg/db/models"
	"github.com/angelmondragon/playgate/pkg/enums"
	pkgerrors "github.com/angelmondragon/playgate/pkg/errors"
	"github.com/angelmondragon/playgate/pkg/logger"
	"github.com/angelmondragon/playgate/pkg/pagination"
)

type TierCascader interface {
	CascadeTierChange(ctx context.Context, seriesID uuid.UUID, tier enums.AccessTier) (cascade.Result, error)
}

type CascadeJobFinder interface {
	FindJob(ctx context.Context, id uuid.UUID) (*models.CascadeJob, error)
	ListJobs(ctx context.Context, seriesID uuid.UUID, params pagination.Params) (pagination.Page[models.CascadeJob], error)
}

type seriesTierRequest struct {
	Tier enums.AccessTier `json:"tier" validate:"required,oneof=free rent vip"`
}

// AdminSeriesTier changes a series tier and rolls it forward to every episode.
// A partial run answers CASCADE_INCOMPLETE with the progress so far.
func AdminSeriesTier(svc TierCascader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("cascade coordinator"))
			return
		}
		seriesID, err := validators.ParseUUIDParam(r, "seriesId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body seriesTierRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.CascadeTierChange(r.Context(), seriesID, body.Tier)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AdminCascadeJob(jobs CascadeJobFinder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jobs == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("cascade jobs"))
			return
		}
		jobID, err := validators.ParseUUIDParam(r, "jobId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		job, err := jobs.FindJob(r.Context(), jobID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUpstreamUnavailable, err, "load cascade job"))
			return
		}
		if job == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "cascade job not found"))
			return
		}
		responses.WriteSuccess(w, job)
	}
}

// AdminSeriesCascadeJobs lists a series' cascade jobs newest first.
func AdminSeriesCascadeJobs(jobs CascadeJobFinder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jobs == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("cascade jobs"))
			return
		}
		seriesID, err := validators.ParseUUIDParam(r, "seriesId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query := r.URL.Query()
		params, err := pagination.ParseParams(query.Get("limit"), query.Get("cursor"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pagination"))
			return
		}
		page, err := jobs.ListJobs(r.Context(), seriesID, params)
		if err != nil {
			if pkgerrors.CodeOf(err) == pkgerrors.CodeValidation {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUpstreamUnavailable, err, "list cascade jobs"))
			return
		}
		responses.WriteSuccess(w, page)
	}
}
