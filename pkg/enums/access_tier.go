package enums

import "fmt"

// AccessTier is the commercial tier a content item or video source requires.
type AccessTier string

const (
	AccessTierFree AccessTier = "free"
	AccessTierRent AccessTier = "rent"
	AccessTierVip  AccessTier = "vip"
)

var validAccessTiers = []AccessTier{
	AccessTierFree,
	AccessTierRent,
	AccessTierVip,
}

// String implements fmt.Stringer.
func (t AccessTier) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t AccessTier) IsValid() bool {
	for _, candidate := range validAccessTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// Rank orders tiers free < rent < vip. Unknown tiers rank above every known tier
// so they never satisfy a grant.
func (t AccessTier) Rank() int {
	for i, candidate := range validAccessTiers {
		if candidate == t {
			return i
		}
	}
	return len(validAccessTiers)
}

// Covers reports whether a grant at tier t satisfies the required tier.
func (t AccessTier) Covers(required AccessTier) bool {
	if !t.IsValid() || !required.IsValid() {
		return false
	}
	return required.Rank() <= t.Rank()
}

// ParseAccessTier converts raw input into an AccessTier.
func ParseAccessTier(value string) (AccessTier, error) {
	for _, candidate := range validAccessTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid access tier %q", value)
}
