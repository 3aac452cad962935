// Package entitlement decides whether a viewer may play a content item and on
// which commercial basis.
package entitlement

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/playgate/internal/policy"
	"github.com/angelmondragon/playgate/pkg/enums"
)

const day = 24 * time.Hour

// Entitlement is the computed verdict for one (viewer, content) pair.
type Entitlement struct {
	Granted       bool                   `json:"granted"`
	Basis         enums.EntitlementBasis `json:"basis"`
	GrantedTier   enums.AccessTier       `json:"granted_tier,omitempty"`
	RentalID      *uuid.UUID             `json:"rental_id,omitempty"`
	RemainingDays *int                   `json:"remaining_days,omitempty"`
}

// Denied is the verdict when no rule grants access.
func Denied() Entitlement {
	return Entitlement{Basis: enums.EntitlementBasisNone}
}

// Evaluate applies the access rules in order; the first match wins. now is the
// single clock reading used for every comparison.
func Evaluate(p policy.ContentPolicy, sub policy.SubscriptionState, rental *policy.RentalRecord, now time.Time) Entitlement {
	if p.Tier == enums.AccessTierFree {
		return Entitlement{
			Granted:     true,
			Basis:       enums.EntitlementBasisFree,
			GrantedTier: enums.AccessTierFree,
		}
	}

	// Rent-tier content never consults the subscription.
	if p.Tier == enums.AccessTierVip && !p.ExcludeFromPlan && sub.ActiveAt(now) {
		return Entitlement{
			Granted:     true,
			Basis:       enums.EntitlementBasisSubscription,
			GrantedTier: enums.AccessTierVip,
		}
	}

	if rental != nil && rental.ActiveAt(now) {
		id := rental.ID
		remaining := RemainingDays(rental.EndsAt, now)
		return Entitlement{
			Granted:       true,
			Basis:         enums.EntitlementBasisRental,
			GrantedTier:   enums.AccessTierRent,
			RentalID:      &id,
			RemainingDays: &remaining,
		}
	}

	return Denied()
}

// RemainingDays rounds the time left until endsAt up to whole days.
func RemainingDays(endsAt, now time.Time) int {
	left := endsAt.Sub(now)
	if left <= 0 {
		return 0
	}
	days := int(left / day)
	if left%day != 0 {
		days++
	}
	return days
}
