package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harvestfield/farmlink-backend/internal/delivery"
	"github.com/harvestfield/farmlink-backend/pkg/db/models"
	"github.com/harvestfield/farmlink-backend/pkg/enums"
	pkgerrors "github.com/harvestfield/farmlink-backend/pkg/errors"
	"github.com/harvestfield/farmlink-backend/pkg/outbox"
	"github.com/harvestfield/farmlink-backend/pkg/outbox/payloads"
	"github.com/harvestfield/farmlink-backend/pkg/pagination"
	"github.com/harvestfield/farmlink-backend/pkg/types"
)

// LineItemDTO is one purchased line on an order.
type LineItemDTO struct {
	ProductID         uuid.UUID `json:"product_id"`
	FarmID            uuid.UUID `json:"farm_id"`
	ProductTitle      string    `json:"product_title"`
	FarmName          string    `json:"farm_name"`
	Quantity          int       `json:"quantity"`
	UnitPriceCents    int       `json:"unit_price_cents"`
	LineSubtotalCents int       `json:"line_subtotal_cents"`
}

// OrderDTO is the API shape of an order.
type OrderDTO struct {
	ID              uuid.UUID         `json:"id"`
	BuyerID         uuid.UUID         `json:"buyer_id"`
	Status          enums.OrderStatus `json:"status"`
	DeliveryDate    string            `json:"delivery_date"`
	DeliveryAddress types.Address     `json:"delivery_address"`
	SubtotalCents   int               `json:"subtotal_cents"`
	LineItems       []LineItemDTO     `json:"line_items"`
	CreatedAt       time.Time         `json:"created_at"`
}

// OrderPage is one page of orders plus the next cursor when more exist.
type OrderPage struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// AdminListInput filters the admin order listing.
type AdminListInput struct {
	DeliveryDate string `json:"delivery_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Limit        int    `json:"limit,omitempty"`
	Cursor       string `json:"cursor,omitempty"`
}

// Service exposes order reads and lifecycle transitions. Order creation
// happens in checkout.
type Service interface {
	ListMine(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*OrderPage, error)
	GetMine(ctx context.Context, buyerID, orderID uuid.UUID) (*OrderDTO, error)
	ListAdmin(ctx context.Context, input AdminListInput) (*OrderPage, error)
	// Cancel lets the buyer back out of an order that has not shipped.
	Cancel(ctx context.Context, buyerID, orderID uuid.UUID) (*OrderDTO, error)
	// UpdateStatus applies an admin transition.
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status string) (*OrderDTO, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo   *Repository
	tx     txRunner
	events eventEmitter
}

// NewService builds an orders service.
func NewService(repo *Repository, tx txRunner, events eventEmitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	return &service{repo: repo, tx: tx, events: events}, nil
}

// cancellableStates lists the statuses a buyer may still back out of.
var cancellableStates = []enums.OrderStatus{
	enums.OrderStatusPending,
	enums.OrderStatusConfirmed,
}

// adminTransitions maps a target status to the statuses it may come from.
var adminTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusConfirmed: {enums.OrderStatusPending},
	enums.OrderStatusDelivered: {enums.OrderStatusConfirmed},
	enums.OrderStatusCancelled: {enums.OrderStatusPending, enums.OrderStatusConfirmed},
}

func (s *service) ListMine(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*OrderPage, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	rows, next, err := s.repo.ListByBuyer(ctx, buyerID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return toPage(rows, next), nil
}

func (s *service) GetMine(ctx context.Context, buyerID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.loadOwned(ctx, buyerID, orderID)
	if err != nil {
		return nil, err
	}
	dto := ToDTO(order)
	return &dto, nil
}

func (s *service) ListAdmin(ctx context.Context, input AdminListInput) (*OrderPage, error) {
	var deliveryDate *time.Time
	if input.DeliveryDate != "" {
		parsed, err := time.Parse("2006-01-02", input.DeliveryDate)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery_date must be YYYY-MM-DD")
		}
		deliveryDate = &parsed
	}
	rows, next, err := s.repo.ListAll(ctx, deliveryDate, pagination.Params{Limit: input.Limit, Cursor: input.Cursor})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return toPage(rows, next), nil
}

func (s *service) Cancel(ctx context.Context, buyerID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.loadOwned(ctx, buyerID, orderID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, order, cancellableStates, enums.OrderStatusCancelled)
}

func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status string) (*OrderDTO, error) {
	target, err := enums.ParseOrderStatus(status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
	}
	from, ok := adminTransitions[target]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cannot transition to %s", target))
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return s.transition(ctx, order, from, target)
}

// transition applies a guarded status change and emits the state event in
// the same transaction. A guard miss surfaces as a state conflict so the
// caller can re-read.
func (s *service) transition(ctx context.Context, order *models.Order, from []enums.OrderStatus, to enums.OrderStatus) (*OrderDTO, error) {
	previous := order.Status
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		moved, err := repo.UpdateStatus(ctx, order.ID, from, to)
		if err != nil {
			return err
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order is no longer in a state that allows %s", to))
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStateChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderStateChangedEvent{
				OrderID:    order.ID,
				BuyerID:    order.BuyerID,
				FromStatus: previous,
				ToStatus:   to,
				ChangedAt:  time.Now().UTC(),
			},
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
	}

	order.Status = to
	dto := ToDTO(order)
	return &dto, nil
}

func (s *service) loadOwned(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Order, error) {
	if buyerID == uuid.Nil || orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id and order id are required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func toPage(rows []models.Order, next string) *OrderPage {
	page := &OrderPage{Orders: make([]OrderDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		page.Orders = append(page.Orders, ToDTO(&rows[i]))
	}
	return page
}

func ToDTO(order *models.Order) OrderDTO {
	items := make([]LineItemDTO, 0, len(order.LineItems))
	for _, item := range order.LineItems {
		items = append(items, LineItemDTO{
			ProductID:         item.ProductID,
			FarmID:            item.FarmID,
			ProductTitle:      item.ProductTitle,
			FarmName:          item.FarmName,
			Quantity:          item.Quantity,
			UnitPriceCents:    item.UnitPriceCents,
			LineSubtotalCents: item.LineSubtotalCents,
		})
	}
	return OrderDTO{
		ID:              order.ID,
		BuyerID:         order.BuyerID,
		Status:          order.Status,
		DeliveryDate:    delivery.DateKey(order.DeliveryDate),
		DeliveryAddress: order.DeliveryAddress,
		SubtotalCents:   order.SubtotalCents,
		LineItems:       items,
		CreatedAt:       order.CreatedAt,
	}
}
