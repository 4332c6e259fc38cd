package cart

import (
	"time"

	"github.com/google/uuid"

	"github.com/harvestfield/farmlink-backend/internal/delivery"
	"github.com/harvestfield/farmlink-backend/pkg/db/models"
	"github.com/harvestfield/farmlink-backend/pkg/enums"
	"github.com/harvestfield/farmlink-backend/pkg/types"
)

// ItemDTO is one cart line with its price snapshot.
type ItemDTO struct {
	ProductID         uuid.UUID `json:"product_id"`
	FarmID            uuid.UUID `json:"farm_id"`
	ProductTitle      string    `json:"product_title"`
	FarmName          string    `json:"farm_name"`
	Quantity          int       `json:"quantity"`
	UnitPriceCents    int       `json:"unit_price_cents"`
	LineSubtotalCents int       `json:"line_subtotal_cents"`
}

// CartDTO is the API shape of the buyer's cart.
type CartDTO struct {
	ID              uuid.UUID        `json:"id"`
	Status          enums.CartStatus `json:"status"`
	DeliveryDate    string           `json:"delivery_date,omitempty"`
	DeliveryAddress *types.Address   `json:"delivery_address,omitempty"`
	SubtotalCents   int              `json:"subtotal_cents"`
	Items           []ItemDTO        `json:"items"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// ToDTO projects a stored cart into its API shape.
func ToDTO(record *models.CartRecord) CartDTO {
	items := make([]ItemDTO, 0, len(record.Items))
	for _, item := range record.Items {
		items = append(items, ItemDTO{
			ProductID:         item.ProductID,
			FarmID:            item.FarmID,
			ProductTitle:      item.ProductTitle,
			FarmName:          item.FarmName,
			Quantity:          item.Quantity,
			UnitPriceCents:    item.UnitPriceCents,
			LineSubtotalCents: item.LineSubtotalCents,
		})
	}
	dto := CartDTO{
		ID:              record.ID,
		Status:          record.Status,
		DeliveryAddress: record.DeliveryAddress,
		SubtotalCents:   record.SubtotalCents,
		Items:           items,
		UpdatedAt:       record.UpdatedAt,
	}
	if record.DeliveryDate != nil {
		dto.DeliveryDate = delivery.DateKey(*record.DeliveryDate)
	}
	return dto
}
