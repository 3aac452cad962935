package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/playgate/pkg/enums"
)

// VideoSource is one playable server entry attached to a content item or an episode.
type VideoSource struct {
	ID             uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OwnerType      enums.SourceOwnerType  `gorm:"column:owner_type;type:text;not null;index:idx_video_sources_owner,priority:1"`
	OwnerID        uuid.UUID              `gorm:"column:owner_id;type:uuid;not null;index:idx_video_sources_owner,priority:2"`
	Position       int                    `gorm:"column:position;not null"`
	ServerLabel    string                 `gorm:"column:server_label;not null"`
	RequiredTier   enums.AccessTier       `gorm:"column:required_tier;type:text;not null;default:'free'"`
	Permission     enums.SourcePermission `gorm:"column:permission;type:text;not null;default:'web_and_mobile'"`
	Kind           enums.SourceKind       `gorm:"column:kind;type:text;not null"`
	URL            string                 `gorm:"column:url;not null;default:''"`
	QualityURLs    map[string]string      `gorm:"column:quality_urls;type:jsonb;serializer:json"`
	DefaultQuality *string                `gorm:"column:default_quality"`
	IsDefault      bool                   `gorm:"column:is_default;not null;default:false"`
	CreatedAt      time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (VideoSource) TableName() string { return "video_sources" }

func (v *VideoSource) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
