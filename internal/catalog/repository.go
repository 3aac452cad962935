// Package catalog persists content, episodes, video sources and the viewer
// state the entitlement checks read.
package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/playgate/internal/cascade"
	"github.com/angelmondragon/playgate/internal/policy"
	"github.com/angelmondragon/playgate/internal/repo"
	"github.com/angelmondragon/playgate/pkg/db"
	"github.com/angelmondragon/playgate/pkg/db/models"
	"github.com/angelmondragon/playgate/pkg/enums"
	pkgerrors "github.com/angelmondragon/playgate/pkg/errors"
)

// Repository handles catalog persistence. Missing rows surface as NOT_FOUND,
// rule violations as VALIDATION_ERROR; database failures are returned as is.
type Repository struct {
	base repo.Base
	now  func() time.Time
}

// NewRepository binds a GORM DB to catalog operations.
func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(conn), now: time.Now}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: r.base.WithTx(tx), now: r.now}
}

func errContentNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "content not found")
}

func errEpisodeNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "episode not found")
}

func (r *Repository) findContent(ctx context.Context, conn *gorm.DB, id uuid.UUID) (models.Content, error) {
	var content models.Content
	if err := conn.WithContext(ctx).Where("id = ?", id).First(&content).Error; err != nil {
		if db.IsNotFound(err) {
			return models.Content{}, errContentNotFound()
		}
		return models.Content{}, err
	}
	return content, nil
}

// LoadContent returns a content item and its policy.
func (r *Repository) LoadContent(ctx context.Context, contentID uuid.UUID) (ContentRecord, error) {
	content, err := r.findContent(ctx, r.base.DB(ctx), contentID)
	if err != nil {
		return ContentRecord{}, err
	}
	return ContentRecord{
		ID:     content.ID,
		Kind:   content.Kind,
		Title:  content.Title,
		Policy: policyFromContent(content),
	}, nil
}

// LoadEpisode returns an episode with its effective policy.
func (r *Repository) LoadEpisode(ctx context.Context, episodeID uuid.UUID) (EpisodeRecord, error) {
	conn := r.base.DB(ctx)
	var episode models.Episode
	if err := conn.Where("id = ?", episodeID).First(&episode).Error; err != nil {
		if db.IsNotFound(err) {
			return EpisodeRecord{}, errEpisodeNotFound()
		}
		return EpisodeRecord{}, err
	}
	var season models.Season
	if err := conn.Where("id = ?", episode.SeasonID).First(&season).Error; err != nil {
		if db.IsNotFound(err) {
			return EpisodeRecord{}, errEpisodeNotFound()
		}
		return EpisodeRecord{}, err
	}
	content, err := r.findContent(ctx, conn, episode.ContentID)
	if err != nil {
		return EpisodeRecord{}, err
	}
	return EpisodeRecord{
		ID:           episode.ID,
		ContentID:    episode.ContentID,
		SeasonNumber: season.Number,
		Number:       episode.Number,
		Title:        episode.Title,
		Policy:       policyFromContent(content).ForEpisode(episode.Tier),
	}, nil
}

// ListSources returns the owner's sources in configured order.
func (r *Repository) ListSources(ctx context.Context, owner enums.SourceOwnerType, ownerID uuid.UUID) ([]policy.VideoSource, error) {
	var rows []models.VideoSource
	if err := r.base.DB(ctx).
		Where("owner_type = ? AND owner_id = ?", owner, ownerID).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]policy.VideoSource, 0, len(rows))
	for _, row := range rows {
		out = append(out, sourceFromModel(row))
	}
	return out, nil
}

// LoadSubscription returns the viewer's plan state; viewers without a row have no plan.
func (r *Repository) LoadSubscription(ctx context.Context, viewerID uuid.UUID) (policy.SubscriptionState, error) {
	var row models.ViewerSubscription
	if err := r.base.DB(ctx).Where("viewer_id = ?", viewerID).First(&row).Error; err != nil {
		if db.IsNotFound(err) {
			return policy.SubscriptionState{}, nil
		}
		return policy.SubscriptionState{}, err
	}
	return policy.SubscriptionState{Active: row.Active, ExpiresAt: row.ExpiresAt}, nil
}

// LatestRental returns the paid rental of the content that ends last, or nil.
func (r *Repository) LatestRental(ctx context.Context, viewerID, contentID uuid.UUID) (*policy.RentalRecord, error) {
	var rows []models.Rental
	if err := r.base.DB(ctx).
		Where("viewer_id = ? AND content_id = ? AND payment_status = ?", viewerID, contentID, enums.RentalPaymentCompleted).
		Order("ends_at DESC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	rec := rentalFromModel(rows[0])
	return &rec, nil
}

// CreateContent inserts a catalog entry after normalizing its policy.
func (r *Repository) CreateContent(ctx context.Context, in CreateContentInput) (ContentRecord, error) {
	details := map[string]string{}
	if !in.Kind.IsValid() {
		details["kind"] = "must be one of movie, series, anime"
	}
	if strings.TrimSpace(in.Title) == "" {
		details["title"] = "is required"
	}
	if len(details) > 0 {
		return ContentRecord{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid content").WithDetails(details)
	}
	p, err := policy.PreparePolicy(in.Policy)
	if err != nil {
		return ContentRecord{}, err
	}
	content := models.Content{Kind: in.Kind, Title: strings.TrimSpace(in.Title)}
	applyPolicy(&content, p)
	if err := r.base.DB(ctx).Create(&content).Error; err != nil {
		return ContentRecord{}, err
	}
	return ContentRecord{ID: content.ID, Kind: content.Kind, Title: content.Title, Policy: p}, nil
}

// CreateEpisode adds an episode to episodic content. The episode starts on the series tier.
func (r *Repository) CreateEpisode(ctx context.Context, contentID uuid.UUID, in CreateEpisodeInput) (EpisodeRecord, error) {
	if in.SeasonNumber < 1 || in.Number < 1 {
		return EpisodeRecord{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid episode").
			WithDetails(map[string]string{"number": "season and episode numbers start at 1"})
	}
	var out EpisodeRecord
	err := r.base.Transaction(ctx, func(tx repo.Base) error {
		conn := tx.DB(ctx)
		content, err := r.findContent(ctx, conn, contentID)
		if err != nil {
			return err
		}
		if !content.Kind.HasEpisodes() {
			return pkgerrors.New(pkgerrors.CodeValidation, "movies have no episodes").
				WithDetails(map[string]string{"kind": "must be series or anime"})
		}
		season := models.Season{ContentID: contentID, Number: in.SeasonNumber}
		if err := conn.Where("content_id = ? AND number = ?", contentID, in.SeasonNumber).
			FirstOrCreate(&season).Error; err != nil {
			return err
		}
		episode := models.Episode{
			ContentID: contentID,
			SeasonID:  season.ID,
			Number:    in.Number,
			Title:     strings.TrimSpace(in.Title),
			Tier:      content.Tier,
		}
		if err := conn.Create(&episode).Error; err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "episode number already exists in this season")
			}
			return err
		}
		out = EpisodeRecord{
			ID:           episode.ID,
			ContentID:    contentID,
			SeasonNumber: season.Number,
			Number:       episode.Number,
			Title:        episode.Title,
			Policy:       policyFromContent(content).ForEpisode(episode.Tier),
		}
		return nil
	})
	return out, err
}

// SavePolicy normalizes, validates and stores a content policy. The tier of
// episodic content only changes through the tier cascade so that episodes
// never drift from their series.
func (r *Repository) SavePolicy(ctx context.Context, contentID uuid.UUID, in policy.ContentPolicy) (policy.ContentPolicy, error) {
	p, err := policy.PreparePolicy(in)
	if err != nil {
		return policy.ContentPolicy{}, err
	}
	err = r.base.Transaction(ctx, func(tx repo.Base) error {
		conn := tx.DB(ctx)
		content, err := r.findContent(ctx, conn, contentID)
		if err != nil {
			return err
		}
		if content.Kind.HasEpisodes() && content.Tier != p.Tier {
			return pkgerrors.New(pkgerrors.CodeValidation, "series tier changes go through the tier cascade").
				WithDetails(map[string]string{"tier": "use the series tier endpoint"})
		}
		applyPolicy(&content, p)
		return conn.Model(&content).Select(
			"tier", "rental_price", "rental_period_days", "rental_max_devices", "exclude_from_plan", "updated_at",
		).Updates(&content).Error
	})
	if err != nil {
		return policy.ContentPolicy{}, err
	}
	return p, nil
}

// ReplaceSources validates the list and swaps it in for the owner's current sources.
func (r *Repository) ReplaceSources(ctx context.Context, owner enums.SourceOwnerType, ownerID uuid.UUID, sources []policy.VideoSource) ([]policy.VideoSource, error) {
	if !owner.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid source owner")
	}
	prepared, err := policy.PrepareSources(sources)
	if err != nil {
		return nil, err
	}
	err = r.base.Transaction(ctx, func(tx repo.Base) error {
		conn := tx.DB(ctx)
		if err := r.ensureOwner(ctx, conn, owner, ownerID); err != nil {
			return err
		}
		if err := conn.Where("owner_type = ? AND owner_id = ?", owner, ownerID).
			Delete(&models.VideoSource{}).Error; err != nil {
			return err
		}
		if len(prepared) == 0 {
			return nil
		}
		rows := make([]models.VideoSource, 0, len(prepared))
		for i, src := range prepared {
			rows = append(rows, sourceToModel(owner, ownerID, i, src))
		}
		return conn.Create(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return prepared, nil
}

func (r *Repository) ensureOwner(ctx context.Context, conn *gorm.DB, owner enums.SourceOwnerType, ownerID uuid.UUID) error {
	if owner == enums.SourceOwnerContent {
		_, err := r.findContent(ctx, conn, ownerID)
		return err
	}
	var count int64
	if err := conn.Model(&models.Episode{}).Where("id = ?", ownerID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return errEpisodeNotFound()
	}
	return nil
}

// SaveSubscription mirrors a viewer's plan state from billing.
func (r *Repository) SaveSubscription(ctx context.Context, viewerID uuid.UUID, state policy.SubscriptionState) error {
	if viewerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "viewer id is required")
	}
	row := models.ViewerSubscription{ViewerID: viewerID, Active: state.Active, ExpiresAt: state.ExpiresAt, UpdatedAt: r.now()}
	return r.base.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "viewer_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"active", "expires_at", "updated_at"}),
	}).Create(&row).Error
}

// RecordRental stores a rental purchase. Price, period and device cap are
// copied from the content policy at purchase time.
func (r *Repository) RecordRental(ctx context.Context, in RecordRentalInput) (RentalReceipt, error) {
	if in.ViewerID == uuid.Nil || in.ContentID == uuid.Nil {
		return RentalReceipt{}, pkgerrors.New(pkgerrors.CodeValidation, "viewer and content are required")
	}
	status := in.PaymentStatus
	if status == "" {
		status = enums.RentalPaymentPending
	}
	if !status.IsValid() {
		return RentalReceipt{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status").
			WithDetails(map[string]string{"payment_status": "must be one of pending, completed, failed"})
	}
	content, err := r.findContent(ctx, r.base.DB(ctx), in.ContentID)
	if err != nil {
		return RentalReceipt{}, err
	}
	p := policyFromContent(content)
	if !p.OffersRental() {
		return RentalReceipt{}, pkgerrors.New(pkgerrors.CodeValidation, "content is not offered for rent")
	}
	startsAt := in.StartsAt
	if startsAt.IsZero() {
		startsAt = r.now()
	}
	row := models.Rental{
		ViewerID:      in.ViewerID,
		ContentID:     in.ContentID,
		StartsAt:      startsAt.UTC(),
		EndsAt:        startsAt.UTC().AddDate(0, 0, p.RentalPeriodDays),
		PaymentStatus: status,
		PricePaid:     p.RentalPrice,
		MaxDevices:    p.RentalMaxDevices,
	}
	if err := r.base.DB(ctx).Create(&row).Error; err != nil {
		return RentalReceipt{}, err
	}
	return RentalReceipt{Rental: rentalFromModel(row), PricePaid: row.PricePaid}, nil
}

// CompleteRentalPayment marks a pending rental paid. The rental period starts
// at payment and the device cap is refreshed from the current policy.
func (r *Repository) CompleteRentalPayment(ctx context.Context, rentalID uuid.UUID) (policy.RentalRecord, error) {
	var out policy.RentalRecord
	err := r.base.Transaction(ctx, func(tx repo.Base) error {
		conn := tx.DB(ctx)
		var rental models.Rental
		if err := conn.Where("id = ?", rentalID).First(&rental).Error; err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "rental not found")
			}
			return err
		}
		if rental.PaymentStatus == enums.RentalPaymentCompleted {
			out = rentalFromModel(rental)
			return nil
		}
		content, err := r.findContent(ctx, conn, rental.ContentID)
		if err != nil {
			return err
		}
		p := policyFromContent(content)
		now := r.now().UTC()
		rental.PaymentStatus = enums.RentalPaymentCompleted
		rental.StartsAt = now
		rental.EndsAt = now.AddDate(0, 0, p.RentalPeriodDays)
		rental.MaxDevices = p.RentalMaxDevices
		if err := conn.Model(&rental).Select("payment_status", "starts_at", "ends_at", "max_devices", "updated_at").
			Updates(&rental).Error; err != nil {
			return err
		}
		out = rentalFromModel(rental)
		return nil
	})
	return out, err
}

// LoadSeries implements cascade.Store.
func (r *Repository) LoadSeries(ctx context.Context, seriesID uuid.UUID) (cascade.SeriesRecord, error) {
	content, err := r.findContent(ctx, r.base.DB(ctx), seriesID)
	if err != nil {
		return cascade.SeriesRecord{}, err
	}
	return cascade.SeriesRecord{ID: content.ID, Kind: content.Kind, Policy: policyFromContent(content)}, nil
}

// ListEpisodeIDs returns episode ids ordered by season then episode number.
func (r *Repository) ListEpisodeIDs(ctx context.Context, seriesID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.base.DB(ctx).Model(&models.Episode{}).
		Joins("JOIN seasons ON seasons.id = episodes.season_id").
		Where("episodes.content_id = ?", seriesID).
		Order("seasons.number ASC, episodes.number ASC").
		Pluck("episodes.id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// SetSeriesTier rewrites the series tier when it differs and reports whether the row changed.
func (r *Repository) SetSeriesTier(ctx context.Context, seriesID uuid.UUID, tier enums.AccessTier) (bool, error) {
	updates := map[string]any{"tier": tier, "updated_at": r.now()}
	if tier == enums.AccessTierFree {
		updates["exclude_from_plan"] = false
	}
	res := r.base.DB(ctx).Model(&models.Content{}).
		Where("id = ? AND tier <> ?", seriesID, tier).
		UpdateColumns(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetEpisodeTier rewrites the episode tier when it differs and reports whether the row changed.
func (r *Repository) SetEpisodeTier(ctx context.Context, episodeID uuid.UUID, tier enums.AccessTier) (bool, error) {
	res := r.base.DB(ctx).Model(&models.Episode{}).
		Where("id = ? AND tier <> ?", episodeID, tier).
		UpdateColumns(map[string]any{"tier": tier, "updated_at": r.now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

var _ cascade.Store = (*Repository)(nil)
