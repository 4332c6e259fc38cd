package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderLineItem snapshots a purchased cart line at checkout time.
type OrderLineItem struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	ProductID         uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	FarmID            uuid.UUID `gorm:"column:farm_id;type:uuid;not null"`
	ProductTitle      string    `gorm:"column:product_title;not null"`
	FarmName          string    `gorm:"column:farm_name;not null"`
	Quantity          int       `gorm:"column:quantity;not null"`
	UnitPriceCents    int       `gorm:"column:unit_price_cents;not null"`
	LineSubtotalCents int       `gorm:"column:line_subtotal_cents;not null"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
}
