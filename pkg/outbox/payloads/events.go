package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/harvestfield/farmlink-backend/pkg/enums"
)

// OrderCreatedEvent signals that a checkout completed and an order now exists.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID   `json:"order_id"`
	BuyerID       uuid.UUID   `json:"buyer_id"`
	CartID        uuid.UUID   `json:"cart_id"`
	DeliveryDate  string      `json:"delivery_date"`
	FarmIDs       []uuid.UUID `json:"farm_ids"`
	SubtotalCents int         `json:"subtotal_cents"`
	LineItemCount int         `json:"line_item_count"`
}

// OrderStateChangedEvent reports a transition in order status.
type OrderStateChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	BuyerID    uuid.UUID         `json:"buyer_id"`
	FromStatus enums.OrderStatus `json:"from_status"`
	ToStatus   enums.OrderStatus `json:"to_status"`
	ChangedAt  time.Time         `json:"changed_at"`
}

// CartConsolidatedEvent is emitted when lines from one or more farms are
// dropped so the remaining cart fits the chosen delivery date.
type CartConsolidatedEvent struct {
	CartID           uuid.UUID   `json:"cart_id"`
	BuyerID          uuid.UUID   `json:"buyer_id"`
	DeliveryDate     string      `json:"delivery_date"`
	RemovedFarmIDs   []uuid.UUID `json:"removed_farm_ids"`
	RemainingFarms   int         `json:"remaining_farms"`
	NewSubtotalCents int         `json:"new_subtotal_cents"`
}

// DeliveryScheduleUpdatedEvent reports an admin change to a platform delivery day.
type DeliveryScheduleUpdatedEvent struct {
	Date        string `json:"date"`
	IsAvailable bool   `json:"is_available"`
	Note        string `json:"note,omitempty"`
}

// FarmAvailabilityChangedEvent reports a farmer marking a ship date on or off.
type FarmAvailabilityChangedEvent struct {
	FarmID  uuid.UUID `json:"farm_id"`
	Date    string    `json:"date"`
	CanShip bool      `json:"can_ship"`
}
