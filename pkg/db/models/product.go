package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/harvestfield/farmlink-backend/pkg/enums"
)

// Product represents a farm's catalog listing.
type Product struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FarmID       uuid.UUID         `gorm:"column:farm_id;type:uuid;not null"`
	SKU          string            `gorm:"column:sku;not null"`
	Title        string            `gorm:"column:title;not null"`
	Description  *string           `gorm:"column:description"`
	Category     string            `gorm:"column:category;not null"`
	Unit         enums.ProductUnit `gorm:"column:unit;type:product_unit;not null"`
	UnitWeightKG decimal.Decimal   `gorm:"column:unit_weight_kg;type:numeric(8,3);not null;default:0"`
	PriceCents   int               `gorm:"column:price_cents;not null"`
	SeasonTags   pq.StringArray    `gorm:"column:season_tags;type:text[];not null;default:ARRAY[]::text[]"`
	IsActive     bool              `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
