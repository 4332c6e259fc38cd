package models

import (
	"time"

	"github.com/google/uuid"
)

// FarmAvailability records whether a farm can ship on a given date.
type FarmAvailability struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FarmID    uuid.UUID `gorm:"column:farm_id;type:uuid;not null;uniqueIndex:ux_farm_availability_farm_date"`
	Date      time.Time `gorm:"column:date;type:date;not null;uniqueIndex:ux_farm_availability_farm_date"`
	CanShip   bool      `gorm:"column:can_ship;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
