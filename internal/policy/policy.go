// Package policy defines the access policy model for catalog content and the
// write-time rules that keep it well formed.
package policy

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/playgate/pkg/enums"
)

// ContentPolicy governs who may play a content item and on what commercial terms.
type ContentPolicy struct {
	Tier             enums.AccessTier `json:"tier" validate:"required,oneof=free rent vip"`
	RentalPrice      decimal.Decimal  `json:"rental_price"`
	RentalPeriodDays int              `json:"rental_period_days" validate:"gte=0,lte=365"`
	RentalMaxDevices int              `json:"rental_max_devices" validate:"gte=0,lte=16"`
	ExcludeFromPlan  bool             `json:"exclude_from_plan"`
}

// OffersRental reports whether the policy can be satisfied by a rental purchase.
func (p ContentPolicy) OffersRental() bool {
	switch p.Tier {
	case enums.AccessTierRent:
		return true
	case enums.AccessTierVip:
		return p.ExcludeFromPlan || p.RentalPrice.IsPositive()
	}
	return false
}

// ForEpisode returns the effective policy of an episode: the series terms with
// the episode's own tier.
func (p ContentPolicy) ForEpisode(tier enums.AccessTier) ContentPolicy {
	out := p
	out.Tier = tier
	if tier == enums.AccessTierFree {
		out.ExcludeFromPlan = false
	}
	return out
}

// VideoSource is one server entry a client may play from.
type VideoSource struct {
	ServerLabel    string                        `json:"server_label" validate:"required,max=80"`
	RequiredTier   enums.AccessTier              `json:"required_tier" validate:"required,oneof=free rent vip"`
	Permission     enums.SourcePermission        `json:"permission" validate:"required,oneof=web_and_mobile web_only mobile_only"`
	Kind           enums.SourceKind              `json:"kind" validate:"required,oneof=iframe mp4 hls"`
	URL            string                        `json:"url,omitempty" validate:"omitempty,url"`
	QualityURLs    map[enums.VideoQuality]string `json:"quality_urls,omitempty" validate:"omitempty,dive,keys,oneof=480p 720p 1080p,endkeys,required,url"`
	DefaultQuality enums.VideoQuality            `json:"default_quality,omitempty" validate:"omitempty,oneof=480p 720p 1080p"`
	IsDefault      bool                          `json:"is_default"`
}

// SubscriptionState is the viewer's plan status.
type SubscriptionState struct {
	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ActiveAt reports whether the subscription covers the instant now.
func (s SubscriptionState) ActiveAt(now time.Time) bool {
	return s.Active && s.ExpiresAt != nil && s.ExpiresAt.After(now)
}

// RentalRecord is a viewer's purchase of time-boxed access to one content item.
type RentalRecord struct {
	ID            uuid.UUID                 `json:"id"`
	ViewerID      uuid.UUID                 `json:"viewer_id"`
	ContentID     uuid.UUID                 `json:"content_id"`
	StartsAt      time.Time                 `json:"starts_at"`
	EndsAt        time.Time                 `json:"ends_at"`
	PaymentStatus enums.RentalPaymentStatus `json:"payment_status"`
	MaxDevices    int                       `json:"max_devices"`
}

// ActiveAt reports whether the rental is paid for and not yet expired at now.
func (r RentalRecord) ActiveAt(now time.Time) bool {
	return r.PaymentStatus == enums.RentalPaymentCompleted && now.Before(r.EndsAt)
}
