// Package playback answers "may this viewer play this item on this device, and
// from which source" by composing the catalog, the entitlement rules, the
// device ledger and the source resolver.
package playback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/playgate/internal/catalog"
	"github.com/angelmondragon/playgate/internal/devicesessions"
	"github.com/angelmondragon/playgate/internal/entitlement"
	"github.com/angelmondragon/playgate/internal/policy"
	"github.com/angelmondragon/playgate/internal/sources"
	"github.com/angelmondragon/playgate/pkg/enums"
	pkgerrors "github.com/angelmondragon/playgate/pkg/errors"
	"github.com/angelmondragon/playgate/pkg/logger"
	"github.com/angelmondragon/playgate/pkg/metrics"
)

// Catalog is the read surface the facade depends on.
type Catalog interface {
	LoadContent(ctx context.Context, contentID uuid.UUID) (catalog.ContentRecord, error)
	LoadEpisode(ctx context.Context, episodeID uuid.UUID) (catalog.EpisodeRecord, error)
	ListSources(ctx context.Context, owner enums.SourceOwnerType, ownerID uuid.UUID) ([]policy.VideoSource, error)
	LoadSubscription(ctx context.Context, viewerID uuid.UUID) (policy.SubscriptionState, error)
	LatestRental(ctx context.Context, viewerID, contentID uuid.UUID) (*policy.RentalRecord, error)
}

// ResolveInput identifies a playback request.
type ResolveInput struct {
	ViewerID        uuid.UUID           `json:"-"`
	ContentID       uuid.UUID           `json:"content_id" validate:"required"`
	EpisodeID       *uuid.UUID          `json:"episode_id,omitempty"`
	Device          enums.DeviceClass   `json:"device" validate:"required,oneof=web mobile"`
	QualityHint     *enums.VideoQuality `json:"quality_hint,omitempty" validate:"omitempty,oneof=480p 720p 1080p"`
	DeviceSessionID string              `json:"device_session_id" validate:"required,max=128"`
}

// ServerOption is one source a viewer may pick from the player's server list.
type ServerOption struct {
	ServerLabel string           `json:"server_label"`
	Kind        enums.SourceKind `json:"kind"`
	IsDefault   bool             `json:"is_default"`
}

type ServiceParams struct {
	Logger  *logger.Logger
	Catalog Catalog
	Ledger  devicesessions.Ledger
	Metrics *metrics.PlaybackMetrics
	Now     func() time.Time
}

// Service is the playback resolution facade.
type Service struct {
	logg    *logger.Logger
	catalog Catalog
	ledger  devicesessions.Ledger
	metrics *metrics.PlaybackMetrics
	now     func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("device session ledger required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &Service{
		logg:    params.Logger,
		catalog: params.Catalog,
		ledger:  params.Ledger,
		metrics: params.Metrics,
		now:     params.Now,
	}, nil
}

// target is the item being played and where its rental and sources live.
type target struct {
	policy    policy.ContentPolicy
	contentID uuid.UUID
	owner     enums.SourceOwnerType
	ownerID   uuid.UUID
}

// ResolvePlayback evaluates access, claims a device slot for rentals and picks
// the source to play. A slot newly claimed for a request that then fails is released.
func (s *Service) ResolvePlayback(ctx context.Context, in ResolveInput) (sources.PlaybackDescriptor, error) {
	logCtx := s.logg.WithViewerID(ctx, in.ViewerID.String())
	logCtx = s.logg.WithContentID(logCtx, in.ContentID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{"device": in.Device, "event": "playback.resolve"})

	desc, ent, err := s.resolve(logCtx, in)
	outcome := "ok"
	if err != nil {
		outcome = string(pkgerrors.CodeOf(err))
	}
	s.metrics.IncResolution(outcome, string(ent.Basis))

	reportCtx := s.logg.WithFields(logCtx, map[string]any{"basis": ent.Basis, "outcome": outcome})
	switch {
	case err == nil:
		s.logg.Info(s.logg.WithFields(reportCtx, map[string]any{
			"server_label": desc.ServerLabel,
			"kind":         desc.Kind,
		}), "playback resolved")
	case pkgerrors.MetadataFor(pkgerrors.CodeOf(err)).HTTPStatus >= 500:
		s.logg.Error(reportCtx, "playback resolution failed", err)
	default:
		s.logg.Info(reportCtx, "playback refused")
	}
	return desc, err
}

func (s *Service) resolve(ctx context.Context, in ResolveInput) (sources.PlaybackDescriptor, entitlement.Entitlement, error) {
	denied := entitlement.Denied()
	if err := validateResolveInput(in); err != nil {
		return sources.PlaybackDescriptor{}, denied, err
	}
	now := s.now()

	tgt, err := s.loadTarget(ctx, in.ContentID, in.EpisodeID)
	if err != nil {
		return sources.PlaybackDescriptor{}, denied, err
	}
	ent, rental, err := s.evaluate(ctx, in.ViewerID, tgt, now)
	if err != nil {
		return sources.PlaybackDescriptor{}, denied, err
	}
	if !ent.Granted {
		return sources.PlaybackDescriptor{}, ent, errNotEntitled(tgt.policy)
	}
	list, err := s.catalog.ListSources(ctx, tgt.owner, tgt.ownerID)
	if err != nil {
		return sources.PlaybackDescriptor{}, ent, readError(err, "list sources")
	}

	claimed := false
	if ent.Basis == enums.EntitlementBasisRental {
		claimed, err = s.ledger.Admit(ctx, *rental, in.DeviceSessionID)
		if err != nil {
			s.metrics.IncAdmission(s.ledger.Name(), string(pkgerrors.CodeOf(err)))
			return sources.PlaybackDescriptor{}, ent, err
		}
		s.metrics.IncAdmission(s.ledger.Name(), "admitted")
	}

	desc, err := sources.Resolve(list, ent, in.Device, in.QualityHint)
	if err != nil {
		// A session that already held its slot before this call keeps it.
		if claimed {
			if relErr := s.ledger.Release(context.WithoutCancel(ctx), *rental, in.DeviceSessionID); relErr != nil {
				s.logg.Error(ctx, "release device slot after failed resolution", relErr)
			}
		}
		return sources.PlaybackDescriptor{}, ent, err
	}
	return desc, ent, nil
}

// CheckEntitlement reports the viewer's access to an item without claiming a device slot.
func (s *Service) CheckEntitlement(ctx context.Context, viewerID, contentID uuid.UUID, episodeID *uuid.UUID) (entitlement.Entitlement, error) {
	tgt, err := s.loadTarget(ctx, contentID, episodeID)
	if err != nil {
		return entitlement.Denied(), err
	}
	ent, _, err := s.evaluate(ctx, viewerID, tgt, s.now())
	return ent, err
}

// ListServers returns the sources the viewer may choose from on the device, in
// configured order.
func (s *Service) ListServers(ctx context.Context, viewerID, contentID uuid.UUID, episodeID *uuid.UUID, device enums.DeviceClass) ([]ServerOption, error) {
	if !device.IsValid() {
		return nil, errInvalidDevice()
	}
	tgt, err := s.loadTarget(ctx, contentID, episodeID)
	if err != nil {
		return nil, err
	}
	ent, _, err := s.evaluate(ctx, viewerID, tgt, s.now())
	if err != nil {
		return nil, err
	}
	if !ent.Granted {
		return nil, errNotEntitled(tgt.policy)
	}
	list, err := s.catalog.ListSources(ctx, tgt.owner, tgt.ownerID)
	if err != nil {
		return nil, readError(err, "list sources")
	}
	eligible := sources.Eligible(list, ent, device)
	out := make([]ServerOption, 0, len(eligible))
	for _, src := range eligible {
		out = append(out, ServerOption{ServerLabel: src.ServerLabel, Kind: src.Kind, IsDefault: src.IsDefault})
	}
	return out, nil
}

// ReleasePlayback frees the device slot a session holds on the viewer's rental.
// Releasing a session that holds nothing is not an error.
func (s *Service) ReleasePlayback(ctx context.Context, viewerID, contentID uuid.UUID, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "device session id is required").
			WithDetails(map[string]string{"device_session_id": "is required"})
	}
	logCtx := s.logg.WithViewerID(ctx, viewerID.String())
	logCtx = s.logg.WithContentID(logCtx, contentID.String())
	rental, err := s.catalog.LatestRental(logCtx, viewerID, contentID)
	if err != nil {
		return readError(err, "load rental")
	}
	if rental == nil {
		return nil
	}
	if err := s.ledger.Release(logCtx, *rental, sessionID); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithField(logCtx, "event", "playback.release"), "device session released")
	return nil
}

func (s *Service) loadTarget(ctx context.Context, contentID uuid.UUID, episodeID *uuid.UUID) (target, error) {
	if episodeID != nil {
		ep, err := s.catalog.LoadEpisode(ctx, *episodeID)
		if err != nil {
			return target{}, readError(err, "load episode")
		}
		if contentID != uuid.Nil && ep.ContentID != contentID {
			return target{}, pkgerrors.New(pkgerrors.CodeNotFound, "episode not found")
		}
		return target{
			policy:    ep.Policy,
			contentID: ep.ContentID,
			owner:     enums.SourceOwnerEpisode,
			ownerID:   ep.ID,
		}, nil
	}
	content, err := s.catalog.LoadContent(ctx, contentID)
	if err != nil {
		return target{}, readError(err, "load content")
	}
	return target{
		policy:    content.Policy,
		contentID: content.ID,
		owner:     enums.SourceOwnerContent,
		ownerID:   content.ID,
	}, nil
}

// evaluate also returns the rental the entitlement was judged against.
func (s *Service) evaluate(ctx context.Context, viewerID uuid.UUID, tgt target, now time.Time) (entitlement.Entitlement, *policy.RentalRecord, error) {
	if tgt.policy.Tier == enums.AccessTierFree {
		return entitlement.Evaluate(tgt.policy, policy.SubscriptionState{}, nil, now), nil, nil
	}
	sub, err := s.catalog.LoadSubscription(ctx, viewerID)
	if err != nil {
		return entitlement.Denied(), nil, readError(err, "load subscription")
	}
	rental, err := s.catalog.LatestRental(ctx, viewerID, tgt.contentID)
	if err != nil {
		return entitlement.Denied(), nil, readError(err, "load rental")
	}
	return entitlement.Evaluate(tgt.policy, sub, rental, now), rental, nil
}

func validateResolveInput(in ResolveInput) error {
	details := map[string]string{}
	if in.ViewerID == uuid.Nil {
		details["viewer_id"] = "is required"
	}
	if in.ContentID == uuid.Nil {
		details["content_id"] = "is required"
	}
	if !in.Device.IsValid() {
		details["device"] = "must be web or mobile"
	}
	if in.QualityHint != nil && !in.QualityHint.IsValid() {
		details["quality_hint"] = "must be one of 480p, 720p, 1080p"
	}
	if strings.TrimSpace(in.DeviceSessionID) == "" {
		details["device_session_id"] = "is required"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid playback request").WithDetails(details)
	}
	return nil
}

func errInvalidDevice() error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid device").
		WithDetails(map[string]string{"device": "must be web or mobile"})
}

func errNotEntitled(p policy.ContentPolicy) error {
	return pkgerrors.New(pkgerrors.CodeNotEntitled, "viewer is not entitled to this content").
		WithDetails(map[string]any{
			"required_tier": p.Tier,
			"rentable":      p.OffersRental(),
			"plan_eligible": p.Tier == enums.AccessTierVip && !p.ExcludeFromPlan,
		})
}

// readError keeps NOT_FOUND and other typed errors and reports everything else
// as an unavailable dependency.
func readError(err error, op string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeUpstreamUnavailable, err, op)
}
