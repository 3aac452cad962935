package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Season groups episodes of a series or anime.
type Season struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ContentID uuid.UUID `gorm:"column:content_id;type:uuid;not null;uniqueIndex:seasons_content_number_key,priority:1"`
	Number    int       `gorm:"column:number;not null;uniqueIndex:seasons_content_number_key,priority:2"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Season) TableName() string { return "seasons" }

func (s *Season) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
