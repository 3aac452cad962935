package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/playgate/pkg/enums"
)

// Content is a catalog entry (movie, series or anime) and carries its access policy.
type Content struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Kind             enums.ContentKind `gorm:"column:kind;type:text;not null"`
	Title            string            `gorm:"column:title;not null"`
	Tier             enums.AccessTier  `gorm:"column:tier;type:text;not null;default:'free'"`
	RentalPrice      decimal.Decimal   `gorm:"column:rental_price;type:numeric(10,2);not null;default:0"`
	RentalPeriodDays int               `gorm:"column:rental_period_days;not null;default:0"`
	RentalMaxDevices int               `gorm:"column:rental_max_devices;not null;default:1"`
	ExcludeFromPlan  bool              `gorm:"column:exclude_from_plan;not null;default:false"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Content) TableName() string { return "contents" }

// BeforeCreate assigns a primary key when the caller did not.
func (c *Content) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
