package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harvestfield/farmlink-backend/internal/delivery"
	"github.com/harvestfield/farmlink-backend/internal/products"
	"github.com/harvestfield/farmlink-backend/pkg/db/models"
	"github.com/harvestfield/farmlink-backend/pkg/enums"
	pkgerrors "github.com/harvestfield/farmlink-backend/pkg/errors"
	"github.com/harvestfield/farmlink-backend/pkg/types"
)

const maxCartLines = 100

// UpsertCartInput replaces the buyer's active cart wholesale.
type UpsertCartInput struct {
	DeliveryAddress *types.Address  `json:"delivery_address,omitempty"`
	Items           []CartItemInput `json:"items" validate:"required,min=1,max=100,dive"`
}

// CartItemInput is one requested line.
type CartItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0,lte=999"`
}

// Service exposes cart operations.
type Service interface {
	Upsert(ctx context.Context, buyerID uuid.UUID, input UpsertCartInput) (*models.CartRecord, error)
	GetActive(ctx context.Context, buyerID uuid.UUID) (*models.CartRecord, error)
	Lines(record *models.CartRecord) []delivery.CartLine
}

type productLoader interface {
	FindActiveWithFarm(ctx context.Context, id uuid.UUID) (*products.ProductWithFarm, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo    *Repository
	catalog productLoader
	tx      txRunner
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo *Repository, catalog productLoader, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, catalog: catalog, tx: tx}, nil
}

// Upsert validates every requested line against the live catalog, snapshots
// prices, and atomically replaces the buyer's active cart.
func (s *service) Upsert(ctx context.Context, buyerID uuid.UUID, input UpsertCartInput) (*models.CartRecord, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart must contain at least one item")
	}
	if len(input.Items) > maxCartLines {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "too many cart lines")
	}
	if input.DeliveryAddress != nil {
		if err := input.DeliveryAddress.Validate(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery address")
		}
	}

	seen := make(map[uuid.UUID]struct{}, len(input.Items))
	items := make([]models.CartItem, 0, len(input.Items))
	subtotal := 0
	for _, line := range input.Items {
		if _, dup := seen[line.ProductID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate product in cart")
		}
		seen[line.ProductID] = struct{}{}

		row, err := s.catalog.FindActiveWithFarm(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not available")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}

		lineSubtotal := row.PriceCents * line.Quantity
		subtotal += lineSubtotal
		items = append(items, models.CartItem{
			ProductID:         row.ID,
			FarmID:            row.FarmID,
			ProductTitle:      row.Title,
			FarmName:          row.FarmName,
			Quantity:          line.Quantity,
			UnitPriceCents:    row.PriceCents,
			LineSubtotalCents: lineSubtotal,
		})
	}

	var result *models.CartRecord
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		record, err := repo.FindActiveByBuyer(ctx, buyerID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			record = &models.CartRecord{BuyerID: buyerID, Status: enums.CartStatusActive}
		}
		record.DeliveryAddress = input.DeliveryAddress
		record.SubtotalCents = subtotal

		result, err = repo.Replace(ctx, record, items)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart")
	}
	return result, nil
}

// GetActive returns the buyer's active cart.
func (s *service) GetActive(ctx context.Context, buyerID uuid.UUID) (*models.CartRecord, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	record, err := s.repo.FindActiveByBuyer(ctx, buyerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active cart")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return record, nil
}

// Lines projects the stored cart into the resolver's view of it.
func (s *service) Lines(record *models.CartRecord) []delivery.CartLine {
	if record == nil {
		return nil
	}
	lines := make([]delivery.CartLine, 0, len(record.Items))
	for _, item := range record.Items {
		lines = append(lines, delivery.CartLine{
			ProductID:    item.ProductID,
			ProductTitle: item.ProductTitle,
			FarmID:       item.FarmID,
			FarmName:     item.FarmName,
			Quantity:     item.Quantity,
		})
	}
	return lines
}
