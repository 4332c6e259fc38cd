package products

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harvestfield/farmlink-backend/pkg/enums"
)

// CreateProductInput is the payload for adding a catalog listing.
type CreateProductInput struct {
	SKU          string   `json:"sku" validate:"required,min=1,max=64"`
	Title        string   `json:"title" validate:"required,min=1,max=200"`
	Description  string   `json:"description,omitempty" validate:"omitempty,max=4000"`
	Category     string   `json:"category" validate:"required,min=1,max=80"`
	Unit         string   `json:"unit" validate:"required"`
	UnitWeightKG string   `json:"unit_weight_kg,omitempty" validate:"omitempty"`
	PriceCents   int      `json:"price_cents" validate:"required,gt=0"`
	SeasonTags   []string `json:"season_tags,omitempty" validate:"omitempty,dive,min=1,max=40"`
}

// UpdateProductInput carries partial updates to a listing.
type UpdateProductInput struct {
	Title        *string   `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description  *string   `json:"description,omitempty" validate:"omitempty,max=4000"`
	Category     *string   `json:"category,omitempty" validate:"omitempty,min=1,max=80"`
	Unit         *string   `json:"unit,omitempty"`
	UnitWeightKG *string   `json:"unit_weight_kg,omitempty"`
	PriceCents   *int      `json:"price_cents,omitempty" validate:"omitempty,gt=0"`
	SeasonTags   *[]string `json:"season_tags,omitempty" validate:"omitempty,dive,min=1,max=40"`
	IsActive     *bool     `json:"is_active,omitempty"`
}

// ProductDTO is the buyer-facing representation of a listing.
type ProductDTO struct {
	ID           uuid.UUID         `json:"id"`
	FarmID       uuid.UUID         `json:"farm_id"`
	FarmName     string            `json:"farm_name,omitempty"`
	SKU          string            `json:"sku"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	Category     string            `json:"category"`
	Unit         enums.ProductUnit `json:"unit"`
	UnitWeightKG decimal.Decimal   `json:"unit_weight_kg"`
	PriceCents   int               `json:"price_cents"`
	SeasonTags   []string          `json:"season_tags"`
	IsActive     bool              `json:"is_active"`
}

// ListFilter narrows product listings.
type ListFilter struct {
	FarmID   *uuid.UUID
	Category string
}
