package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/playgate/pkg/enums"
)

// Episode belongs to a season; its tier is kept in step with the parent series.
type Episode struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	ContentID uuid.UUID        `gorm:"column:content_id;type:uuid;not null;index"`
	SeasonID  uuid.UUID        `gorm:"column:season_id;type:uuid;not null;uniqueIndex:episodes_season_number_key,priority:1"`
	Number    int              `gorm:"column:number;not null;uniqueIndex:episodes_season_number_key,priority:2"`
	Title     string           `gorm:"column:title;not null;default:''"`
	Tier      enums.AccessTier `gorm:"column:tier;type:text;not null;default:'free'"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (Episode) TableName() string { return "episodes" }

func (e *Episode) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
