package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/playgate/pkg/enums"
)

// Rental is a time-boxed purchase of a single content item. Rows are kept after expiry.
type Rental struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	ViewerID      uuid.UUID                 `gorm:"column:viewer_id;type:uuid;not null;index:idx_rentals_viewer_content,priority:1"`
	ContentID     uuid.UUID                 `gorm:"column:content_id;type:uuid;not null;index:idx_rentals_viewer_content,priority:2"`
	StartsAt      time.Time                 `gorm:"column:starts_at;not null"`
	EndsAt        time.Time                 `gorm:"column:ends_at;not null"`
	PaymentStatus enums.RentalPaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	PricePaid     decimal.Decimal           `gorm:"column:price_paid;type:numeric(10,2);not null;default:0"`
	MaxDevices    int                       `gorm:"column:max_devices;not null;default:1"`
	ActiveDevices int                       `gorm:"column:active_devices;not null;default:0"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (Rental) TableName() string { return "rentals" }

func (r *Rental) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
