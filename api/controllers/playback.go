package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/playgate/api/middleware"
	"github.com/angelmondragon/playgate/api/responses"
	"github.com/angelmondragon/playgate/api/validators"
	"github.com/angelmondragon/playgate/internal/entitlement"
	"github.com/angelmondragon/playgate/internal/playback"
	"github.com/angelmondragon/playgate/internal/sources"
	"github.com/angelmondragon/playgate/pkg/enums"
	pkgerrors "github.com/angelmondragon/playgate/pkg/errors"
	"github.com/angelmondragon/playgate/pkg/logger"
)

// PlaybackService is the viewer-facing playback surface.
type PlaybackService interface {
	ResolvePlayback(ctx context.Context, in playback.ResolveInput) (sources.PlaybackDescriptor, error)
	ReleasePlayback(ctx context.Context, viewerID, contentID uuid.UUID, sessionID string) error
	CheckEntitlement(ctx context.Context, viewerID, contentID uuid.UUID, episodeID *uuid.UUID) (entitlement.Entitlement, error)
	ListServers(ctx context.Context, viewerID, contentID uuid.UUID, episodeID *uuid.UUID, device enums.DeviceClass) ([]playback.ServerOption, error)
}

type releaseRequest struct {
	ContentID       uuid.UUID `json:"content_id" validate:"required"`
	DeviceSessionID string    `json:"device_session_id" validate:"required,max=128"`
}

func viewerFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.ViewerIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "viewer context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid viewer id")
	}
	return id, nil
}

func serviceUnavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" unavailable")
}

// PlaybackResolve grants playback and returns the descriptor the client should request.
func PlaybackResolve(svc PlaybackService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("playback service"))
			return
		}
		viewerID, err := viewerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body playback.ResolveInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body.ViewerID = viewerID

		descriptor, err := svc.ResolvePlayback(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, descriptor)
	}
}

// PlaybackRelease frees the device slot held by a session.
func PlaybackRelease(svc PlaybackService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("playback service"))
			return
		}
		viewerID, err := viewerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body releaseRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.ReleasePlayback(r.Context(), viewerID, body.ContentID, body.DeviceSessionID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ContentEntitlement reports the viewer's access to a content item or one of its episodes.
func ContentEntitlement(svc PlaybackService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("playback service"))
			return
		}
		viewerID, err := viewerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		contentID, err := validators.ParseUUIDParam(r, "contentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		episodeID, err := validators.ParseQueryUUID(r, "episodeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ent, err := svc.CheckEntitlement(r.Context(), viewerID, contentID, episodeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ent)
	}
}

// ContentServers lists the servers the viewer may pick on the requested device.
func ContentServers(svc PlaybackService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("playback service"))
			return
		}
		viewerID, err := viewerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		contentID, err := validators.ParseUUIDParam(r, "contentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		episodeID, err := validators.ParseQueryUUID(r, "episodeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rawDevice, err := validators.ParseQueryString(r, "device")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		servers, err := svc.ListServers(r.Context(), viewerID, contentID, episodeID, enums.DeviceClass(rawDevice))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, servers)
	}
}
