package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/playgate/api/responses"
	"github.com/angelmondragon/playgate/api/validators"
	"github.com/angelmondragon/playgate/internal/catalog"
	"github.com/angelmondragon/playgate/internal/policy"
	"github.com/angelmondragon/playgate/pkg/enums"
	"github.com/angelmondragon/playgate/pkg/logger"
)

const maxTitleLength = 200

// CatalogAdmin is the write surface for content, episodes, policies and sources.
type CatalogAdmin interface {
	CreateContent(ctx context.Context, in catalog.CreateContentInput) (catalog.ContentRecord, error)
	CreateEpisode(ctx context.Context, contentID uuid.UUID, in catalog.CreateEpisodeInput) (catalog.EpisodeRecord, error)
	SavePolicy(ctx context.Context, contentID uuid.UUID, in policy.ContentPolicy) (policy.ContentPolicy, error)
	ReplaceSources(ctx context.Context, owner enums.SourceOwnerType, ownerID uuid.UUID, sources []policy.VideoSource) ([]policy.VideoSource, error)
}

type replaceSourcesRequest struct {
	Sources []policy.VideoSource `json:"sources"`
}

func AdminCreateContent(svc CatalogAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("catalog"))
			return
		}
		var body catalog.CreateContentInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body.Title = validators.SanitizeString(body.Title, maxTitleLength)
		record, err := svc.CreateContent(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, record)
	}
}

func AdminCreateEpisode(svc CatalogAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("catalog"))
			return
		}
		contentID, err := validators.ParseUUIDParam(r, "contentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body catalog.CreateEpisodeInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body.Title = validators.SanitizeString(body.Title, maxTitleLength)
		record, err := svc.CreateEpisode(r.Context(), contentID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, record)
	}
}

// AdminSavePolicy replaces a content item's access policy.
func AdminSavePolicy(svc CatalogAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("catalog"))
			return
		}
		contentID, err := validators.ParseUUIDParam(r, "contentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body policy.ContentPolicy
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		saved, err := svc.SavePolicy(r.Context(), contentID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, saved)
	}
}

func AdminReplaceContentSources(svc CatalogAdmin, logg *logger.Logger) http.HandlerFunc {
	return replaceSources(svc, logg, enums.SourceOwnerContent, "contentId")
}

func AdminReplaceEpisodeSources(svc CatalogAdmin, logg *logger.Logger) http.HandlerFunc {
	return replaceSources(svc, logg, enums.SourceOwnerEpisode, "episodeId")
}

func replaceSources(svc CatalogAdmin, logg *logger.Logger, owner enums.SourceOwnerType, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("catalog"))
			return
		}
		ownerID, err := validators.ParseUUIDParam(r, param)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body replaceSourcesRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		saved, err := svc.ReplaceSources(r.Context(), owner, ownerID, body.Sources)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"sources": saved})
	}
}
