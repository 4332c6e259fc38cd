package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Farm represents a producer selling through the marketplace.
type Farm struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string         `gorm:"column:name;not null"`
	Region         string         `gorm:"column:region;not null"`
	Description    *string        `gorm:"column:description"`
	ContactEmail   string         `gorm:"column:contact_email;not null"`
	ContactPhone   *string        `gorm:"column:contact_phone"`
	Certifications pq.StringArray `gorm:"column:certifications;type:text[];not null;default:ARRAY[]::text[]"`
	IsActive       bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
