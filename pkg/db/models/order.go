package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/harvestfield/farmlink-backend/pkg/enums"
	"github.com/harvestfield/farmlink-backend/pkg/types"
)

// Order is a confirmed checkout for a single delivery date.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID         uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null"`
	CartID          uuid.UUID         `gorm:"column:cart_id;type:uuid;not null"`
	Status          enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	DeliveryDate    time.Time         `gorm:"column:delivery_date;type:date;not null"`
	DeliveryAddress types.Address     `gorm:"column:delivery_address;type:jsonb;serializer:json"`
	SubtotalCents   int               `gorm:"column:subtotal_cents;not null;default:0"`
	LineItems       []OrderLineItem   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
