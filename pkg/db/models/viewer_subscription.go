package models

import (
	"time"

	"github.com/google/uuid"
)

// ViewerSubscription mirrors the billing system's plan state for a viewer.
type ViewerSubscription struct {
	ViewerID  uuid.UUID  `gorm:"column:viewer_id;type:uuid;primaryKey"`
	Active    bool       `gorm:"column:active;not null;default:false"`
	ExpiresAt *time.Time `gorm:"column:expires_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (ViewerSubscription) TableName() string { return "viewer_subscriptions" }
