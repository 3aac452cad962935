package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/playgate/pkg/enums"
)

// CascadeJob records a series tier change and how far it has propagated to episodes.
type CascadeJob struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SeriesID     uuid.UUID           `gorm:"column:series_id;type:uuid;not null;index" json:"series_id"`
	TargetTier   enums.AccessTier    `gorm:"column:target_tier;type:text;not null" json:"target_tier"`
	Status       enums.CascadeStatus `gorm:"column:status;type:text;not null;default:'running';index" json:"status"`
	UpdatedCount int                 `gorm:"column:updated_count;not null;default:0" json:"updated_count"`
	TotalCount   int                 `gorm:"column:total_count;not null;default:0" json:"total_count"`
	Attempts     int                 `gorm:"column:attempts;not null;default:0" json:"attempts"`
	LastError    *string             `gorm:"column:last_error" json:"last_error,omitempty"`
	CompletedAt  *time.Time          `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (CascadeJob) TableName() string { return "cascade_jobs" }

func (j *CascadeJob) BeforeCreate(*gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}
