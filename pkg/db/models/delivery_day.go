package models

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryDay is the business-wide calendar entry for a single date.
// Absence of a row means delivery is not offered that day.
type DeliveryDay struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Date        time.Time `gorm:"column:date;type:date;not null;uniqueIndex"`
	IsAvailable bool      `gorm:"column:is_available;not null;default:true"`
	Note        *string   `gorm:"column:note"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
