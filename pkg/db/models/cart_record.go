package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/harvestfield/farmlink-backend/pkg/enums"
	"github.com/harvestfield/farmlink-backend/pkg/types"
)

// CartRecord captures a buyer-scoped cart snapshot.
type CartRecord struct {
	ID              uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID         uuid.UUID        `gorm:"column:buyer_id;type:uuid;not null"`
	Status          enums.CartStatus `gorm:"column:status;type:cart_status;not null;default:'active'"`
	DeliveryDate    *time.Time       `gorm:"column:delivery_date;type:date"`
	DeliveryAddress *types.Address   `gorm:"column:delivery_address;type:jsonb;serializer:json"`
	SubtotalCents   int              `gorm:"column:subtotal_cents;not null;default:0"`
	ConvertedAt     *time.Time       `gorm:"column:converted_at"`
	Items           []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
