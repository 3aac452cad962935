package catalog

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/playgate/internal/policy"
	"github.com/angelmondragon/playgate/pkg/db/models"
	"github.com/angelmondragon/playgate/pkg/enums"
)

func policyFromContent(c models.Content) policy.ContentPolicy {
	return policy.ContentPolicy{
		Tier:             c.Tier,
		RentalPrice:      c.RentalPrice,
		RentalPeriodDays: c.RentalPeriodDays,
		RentalMaxDevices: c.RentalMaxDevices,
		ExcludeFromPlan:  c.ExcludeFromPlan,
	}
}

func applyPolicy(c *models.Content, p policy.ContentPolicy) {
	c.Tier = p.Tier
	c.RentalPrice = p.RentalPrice
	c.RentalPeriodDays = p.RentalPeriodDays
	c.RentalMaxDevices = p.RentalMaxDevices
	c.ExcludeFromPlan = p.ExcludeFromPlan
}

func sourceFromModel(m models.VideoSource) policy.VideoSource {
	out := policy.VideoSource{
		ServerLabel:  m.ServerLabel,
		RequiredTier: m.RequiredTier,
		Permission:   m.Permission,
		Kind:         m.Kind,
		URL:          m.URL,
		IsDefault:    m.IsDefault,
	}
	if len(m.QualityURLs) > 0 {
		out.QualityURLs = make(map[enums.VideoQuality]string, len(m.QualityURLs))
		for q, url := range m.QualityURLs {
			out.QualityURLs[enums.VideoQuality(q)] = url
		}
	}
	if m.DefaultQuality != nil {
		out.DefaultQuality = enums.VideoQuality(*m.DefaultQuality)
	}
	return out
}

func sourceToModel(owner enums.SourceOwnerType, ownerID uuid.UUID, position int, s policy.VideoSource) models.VideoSource {
	out := models.VideoSource{
		OwnerType:    owner,
		OwnerID:      ownerID,
		Position:     position,
		ServerLabel:  s.ServerLabel,
		RequiredTier: s.RequiredTier,
		Permission:   s.Permission,
		Kind:         s.Kind,
		URL:          s.URL,
		IsDefault:    s.IsDefault,
	}
	if len(s.QualityURLs) > 0 {
		out.QualityURLs = make(map[string]string, len(s.QualityURLs))
		for q, url := range s.QualityURLs {
			out.QualityURLs[q.String()] = url
		}
	}
	if s.DefaultQuality != "" {
		dq := s.DefaultQuality.String()
		out.DefaultQuality = &dq
	}
	return out
}

func rentalFromModel(m models.Rental) policy.RentalRecord {
	return policy.RentalRecord{
		ID:            m.ID,
		ViewerID:      m.ViewerID,
		ContentID:     m.ContentID,
		StartsAt:      m.StartsAt,
		EndsAt:        m.EndsAt,
		PaymentStatus: m.PaymentStatus,
		MaxDevices:    m.MaxDevices,
	}
}
