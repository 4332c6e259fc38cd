package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem persists product-level snapshots tied to a CartRecord.
type CartItem struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID            uuid.UUID `gorm:"column:cart_id;type:uuid;not null"`
	ProductID         uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	FarmID            uuid.UUID `gorm:"column:farm_id;type:uuid;not null"`
	ProductTitle      string    `gorm:"column:product_title;not null"`
	FarmName          string    `gorm:"column:farm_name;not null"`
	Quantity          int       `gorm:"column:quantity;not null"`
	UnitPriceCents    int       `gorm:"column:unit_price_cents;not null"`
	LineSubtotalCents int       `gorm:"column:line_subtotal_cents;not null"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
