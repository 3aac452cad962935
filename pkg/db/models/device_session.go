package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeviceSession holds one concurrent-playback slot of a rental.
type DeviceSession struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	RentalID  uuid.UUID `gorm:"column:rental_id;type:uuid;not null;uniqueIndex:device_sessions_rental_session_key,priority:1"`
	SessionID string    `gorm:"column:session_id;not null;uniqueIndex:device_sessions_rental_session_key,priority:2"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (DeviceSession) TableName() string { return "device_sessions" }

func (d *DeviceSession) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
