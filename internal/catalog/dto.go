package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/playgate/internal/policy"
	"github.com/angelmondragon/playgate/pkg/enums"
)

// ContentRecord is a catalog entry with its access policy.
type ContentRecord struct {
	ID     uuid.UUID            `json:"id"`
	Kind   enums.ContentKind    `json:"kind"`
	Title  string               `json:"title"`
	Policy policy.ContentPolicy `json:"policy"`
}

// EpisodeRecord carries the effective policy of an episode: the parent's
// commercial terms combined with the episode tier.
type EpisodeRecord struct {
	ID           uuid.UUID            `json:"id"`
	ContentID    uuid.UUID            `json:"content_id"`
	SeasonNumber int                  `json:"season_number"`
	Number       int                  `json:"number"`
	Title        string               `json:"title"`
	Policy       policy.ContentPolicy `json:"policy"`
}

// CreateContentInput describes a new catalog entry.
type CreateContentInput struct {
	Kind   enums.ContentKind    `json:"kind" validate:"required,oneof=movie series anime"`
	Title  string               `json:"title" validate:"required,max=200"`
	Policy policy.ContentPolicy `json:"policy"`
}

// CreateEpisodeInput adds an episode under a season number, creating the season when needed.
// The episode inherits the series tier.
type CreateEpisodeInput struct {
	SeasonNumber int    `json:"season_number" validate:"required,gte=1"`
	Number       int    `json:"number" validate:"required,gte=1"`
	Title        string `json:"title" validate:"max=200"`
}

// RecordRentalInput is a rental purchase reported by billing.
type RecordRentalInput struct {
	ViewerID      uuid.UUID                 `json:"viewer_id" validate:"required"`
	ContentID     uuid.UUID                 `json:"content_id" validate:"required"`
	PaymentStatus enums.RentalPaymentStatus `json:"payment_status" validate:"required,oneof=pending completed failed"`
	StartsAt      time.Time                 `json:"starts_at"`
}

// RentalReceipt is the stored rental with the price charged.
type RentalReceipt struct {
	Rental    policy.RentalRecord `json:"rental"`
	PricePaid decimal.Decimal     `json:"price_paid"`
}
