package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harvestfield/farmlink-backend/internal/cart"
	"github.com/harvestfield/farmlink-backend/internal/delivery"
	"github.com/harvestfield/farmlink-backend/internal/orders"
	"github.com/harvestfield/farmlink-backend/pkg/config"
	"github.com/harvestfield/farmlink-backend/pkg/db/models"
	"github.com/harvestfield/farmlink-backend/pkg/enums"
	pkgerrors "github.com/harvestfield/farmlink-backend/pkg/errors"
	"github.com/harvestfield/farmlink-backend/pkg/outbox"
	"github.com/harvestfield/farmlink-backend/pkg/outbox/payloads"
	"github.com/harvestfield/farmlink-backend/pkg/types"
)

// SubmitInput is the checkout request. Decision is required only when a
// previous attempt came back needing one.
type SubmitInput struct {
	DeliveryDate    string         `json:"delivery_date" validate:"required,datetime=2006-01-02"`
	Decision        string         `json:"decision,omitempty" validate:"omitempty,oneof=consolidate remove_items"`
	DeliveryAddress *types.Address `json:"delivery_address,omitempty"`
}

// ResolveInput is the dry-run request the storefront calendar uses before
// the buyer commits.
type ResolveInput struct {
	DeliveryDate string `json:"delivery_date" validate:"required,datetime=2006-01-02"`
}

// Resolution is the dry-run response: the outcome for the requested date
// plus the state the calendar should render it with.
type Resolution struct {
	Date     string            `json:"date"`
	DayState delivery.DayState `json:"day_state"`
	Outcome  delivery.Outcome  `json:"outcome"`
}

// ConsolidateInput applies a negotiator decision to the cart ahead of
// checkout. Unlike Submit, no order is created.
type ConsolidateInput struct {
	DeliveryDate string `json:"delivery_date" validate:"required,datetime=2006-01-02"`
	Decision     string `json:"decision" validate:"required,oneof=consolidate remove_items"`
}

// ConsolidationResult describes the cart after a decision was applied.
type ConsolidationResult struct {
	DeliveryDate   string      `json:"delivery_date"`
	RemovedFarmIDs []uuid.UUID `json:"removed_farm_ids"`
	RemainingLines int         `json:"remaining_lines"`
	SubtotalCents  int         `json:"subtotal_cents"`
}

// CalendarView is one month of day states for the buyer's current cart.
type CalendarView struct {
	Month string                       `json:"month"`
	Days  map[string]delivery.DayState `json:"days"`
	// Degraded is set when farm availability could not be loaded and the
	// icons fall back to the conservative none state.
	Degraded bool `json:"degraded,omitempty"`
}

// Service orchestrates checkout submission and the pre-checkout dry run.
type Service interface {
	Submit(ctx context.Context, buyerID uuid.UUID, input SubmitInput) (*orders.OrderDTO, error)
	Resolve(ctx context.Context, buyerID uuid.UUID, input ResolveInput) (*Resolution, error)
	Consolidate(ctx context.Context, buyerID uuid.UUID, input ConsolidateInput) (*ConsolidationResult, error)
	Calendar(ctx context.Context, buyerID uuid.UUID, month string) (*CalendarView, error)
}

type scheduleSource interface {
	ScheduleRange(ctx context.Context, from, to time.Time) (delivery.Schedule, error)
}

type availabilitySource interface {
	Bulk(ctx context.Context, farmIDs []uuid.UUID, from, to time.Time) (delivery.AvailabilityMap, error)
	Snapshot(ctx context.Context, farmIDs []uuid.UUID, date time.Time) (delivery.DayAvailability, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams collects the checkout dependencies.
type ServiceParams struct {
	CartRepo     *cart.Repository
	OrdersRepo   *orders.Repository
	Schedule     scheduleSource
	Availability availabilitySource
	Tx           txRunner
	Events       eventEmitter
	Delivery     config.DeliveryConfig
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

type service struct {
	cartRepo     *cart.Repository
	ordersRepo   *orders.Repository
	schedule     scheduleSource
	availability availabilitySource
	tx           txRunner
	events       eventEmitter
	cfg          config.DeliveryConfig
	now          func() time.Time
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.CartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Schedule == nil {
		return nil, fmt.Errorf("schedule source required")
	}
	if params.Availability == nil {
		return nil, fmt.Errorf("availability source required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		cartRepo:     params.CartRepo,
		ordersRepo:   params.OrdersRepo,
		schedule:     params.Schedule,
		availability: params.Availability,
		tx:           params.Tx,
		events:       params.Events,
		cfg:          params.Delivery,
		now:          now,
	}, nil
}

func (s *service) Resolve(ctx context.Context, buyerID uuid.UUID, input ResolveInput) (*Resolution, error) {
	date, err := s.parseDate(input.DeliveryDate)
	if err != nil {
		return nil, err
	}
	_, lines, err := s.loadCart(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	farmIDs := delivery.FarmIDs(lines)
	schedule, avail, err := s.loadWindow(ctx, date, farmIDs)
	if err != nil {
		return nil, err
	}

	state := delivery.ComputeDayState(date, schedule, avail, farmIDs, s.minDate())
	outcome := delivery.Resolve(date, lines, schedule, avail, s.cfg.HorizonDays)
	return &Resolution{
		Date:     delivery.DateKey(date),
		DayState: state,
		Outcome:  outcome,
	}, nil
}

func (s *service) Submit(ctx context.Context, buyerID uuid.UUID, input SubmitInput) (*orders.OrderDTO, error) {
	date, err := s.parseDate(input.DeliveryDate)
	if err != nil {
		return nil, err
	}
	minDate := s.minDate()
	if date.Before(minDate) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("delivery date must be %s or later", delivery.DateKey(minDate)))
	}

	record, lines, err := s.loadCart(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	address, err := resolveAddress(record, input.DeliveryAddress)
	if err != nil {
		return nil, err
	}

	schedule, avail, err := s.loadWindow(ctx, date, delivery.FarmIDs(lines))
	if err != nil {
		return nil, err
	}
	if open, published := schedule[delivery.DateKey(date)]; !published || !open {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no delivery is offered on the selected date")
	}

	selection := delivery.NewSelection()
	outcome, err := selection.Choose(date, lines, schedule, avail, s.cfg.HorizonDays)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "evaluate delivery date")
	}

	if outcome.NeedsDecision() {
		if input.Decision == "" {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
				"the selected date cannot fulfill the whole cart").
				WithDetails(outcome)
		}
		action, err := delivery.ParseDecisionAction(input.Decision)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid decision")
		}
		if action == delivery.ActionConsolidate && outcome.NextAvailableDate == nil {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
				"no consolidation date exists within the delivery horizon").
				WithDetails(outcome)
		}
		if _, err := selection.Decide(action); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "apply decision")
		}
	}

	resolution, err := selection.Result()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read selection result")
	}
	if len(resolution.Cart) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			"removing the unavailable items would leave the cart empty").
			WithDetails(outcome)
	}

	// The decision must leave every remaining farm shippable on the final
	// date; re-resolving against the same snapshots enforces that.
	recheck := delivery.Resolve(resolution.Date, resolution.Cart, schedule, avail, s.cfg.HorizonDays)
	if recheck.NeedsDecision() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			"the resolved date no longer fits the cart, choose again").
			WithDetails(recheck)
	}

	keptFarms := delivery.FarmIDs(resolution.Cart)
	removedFarms := removedFarmIDs(lines, resolution.Cart)

	var created *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		// Availability is re-read inside the transaction; the pre-tx
		// snapshot may be stale the moment a farmer closes the date.
		current, err := s.availability.Snapshot(ctx, keptFarms, resolution.Date)
		if err != nil {
			return err
		}
		if !current.AllAvailable {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				"farm availability changed while checking out, choose again").
				WithDetails(current)
		}

		subtotal := record.SubtotalCents
		if len(removedFarms) > 0 {
			subtotal, err = cartRepo.RemoveItemsByFarms(ctx, record.ID, removedFarms)
			if err != nil {
				return err
			}
		}
		if err := cartRepo.SetDeliveryDate(ctx, record.ID, resolution.Date); err != nil {
			return err
		}

		order := &models.Order{
			BuyerID:         buyerID,
			CartID:          record.ID,
			Status:          enums.OrderStatusPending,
			DeliveryDate:    resolution.Date,
			DeliveryAddress: *address,
			SubtotalCents:   subtotal,
			LineItems:       orderLines(record.Items, removedFarms),
		}
		created, err = ordersRepo.Create(ctx, order)
		if err != nil {
			return err
		}

		if err := cartRepo.MarkConverted(ctx, record.ID, s.now()); err != nil {
			return err
		}

		if len(removedFarms) > 0 || !resolution.Date.Equal(date) {
			event := outbox.DomainEvent{
				EventType:     enums.EventCartConsolidated,
				AggregateType: enums.AggregateCart,
				AggregateID:   record.ID,
				Version:       1,
				Data: payloads.CartConsolidatedEvent{
					CartID:           record.ID,
					BuyerID:          buyerID,
					DeliveryDate:     delivery.DateKey(resolution.Date),
					RemovedFarmIDs:   removedFarms,
					RemainingFarms:   len(keptFarms),
					NewSubtotalCents: subtotal,
				},
			}
			if err := s.events.Emit(ctx, tx, event); err != nil {
				return err
			}
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   created.ID,
			Version:       1,
			Data: payloads.OrderCreatedEvent{
				OrderID:       created.ID,
				BuyerID:       buyerID,
				CartID:        record.ID,
				DeliveryDate:  delivery.DateKey(resolution.Date),
				FarmIDs:       keptFarms,
				SubtotalCents: subtotal,
				LineItemCount: len(created.LineItems),
			},
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "submit checkout")
	}

	dto := orders.ToDTO(created)
	return &dto, nil
}

// Calendar renders one month of selectable states for the buyer's cart.
// A missing or empty cart still renders, every open day counts as fully
// available then. When the availability read fails the calendar degrades
// to none icons instead of erroring; submission re-checks the truth.
func (s *service) Calendar(ctx context.Context, buyerID uuid.UUID, month string) (*CalendarView, error) {
	first, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "month must be YYYY-MM")
	}
	last := first.AddDate(0, 1, -1)

	var farmIDs []uuid.UUID
	_, lines, err := s.loadCart(ctx, buyerID)
	if err != nil {
		typed := pkgerrors.As(err)
		if typed == nil || (typed.Code() != pkgerrors.CodeNotFound && typed.Code() != pkgerrors.CodeValidation) {
			return nil, err
		}
	} else {
		farmIDs = delivery.FarmIDs(lines)
	}

	schedule, err := s.schedule.ScheduleRange(ctx, first, last)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery schedule")
	}

	avail := delivery.AvailabilityMap{}
	degraded := false
	if len(farmIDs) > 0 {
		avail, err = s.availability.Bulk(ctx, farmIDs, first, last)
		if err != nil {
			avail = delivery.AvailabilityMap{}
			degraded = true
		}
	}

	return &CalendarView{
		Month:    month,
		Days:     delivery.ComputeMonthStates(first.Year(), first.Month(), schedule, avail, farmIDs, s.minDate()),
		Degraded: degraded,
	}, nil
}

// Consolidate persists a negotiator decision on the active cart so the
// buyer can keep shopping before submitting. The same decision logic runs
// again at Submit, so a stale consolidation cannot slip through.
func (s *service) Consolidate(ctx context.Context, buyerID uuid.UUID, input ConsolidateInput) (*ConsolidationResult, error) {
	date, err := s.parseDate(input.DeliveryDate)
	if err != nil {
		return nil, err
	}
	minDate := s.minDate()
	if date.Before(minDate) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("delivery date must be %s or later", delivery.DateKey(minDate)))
	}
	action, err := delivery.ParseDecisionAction(input.Decision)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid decision")
	}

	record, lines, err := s.loadCart(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	schedule, avail, err := s.loadWindow(ctx, date, delivery.FarmIDs(lines))
	if err != nil {
		return nil, err
	}
	if open, published := schedule[delivery.DateKey(date)]; !published || !open {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no delivery is offered on the selected date")
	}

	selection := delivery.NewSelection()
	outcome, err := selection.Choose(date, lines, schedule, avail, s.cfg.HorizonDays)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "evaluate delivery date")
	}
	if !outcome.NeedsDecision() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			"the whole cart already ships on the selected date, nothing to consolidate")
	}
	if action == delivery.ActionConsolidate && outcome.NextAvailableDate == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			"no consolidation date exists within the delivery horizon").
			WithDetails(outcome)
	}
	if _, err := selection.Decide(action); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "apply decision")
	}
	resolution, err := selection.Result()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read selection result")
	}
	if len(resolution.Cart) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			"removing the unavailable items would leave the cart empty").
			WithDetails(outcome)
	}
	recheck := delivery.Resolve(resolution.Date, resolution.Cart, schedule, avail, s.cfg.HorizonDays)
	if recheck.NeedsDecision() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			"the resolved date no longer fits the cart, choose again").
			WithDetails(recheck)
	}

	removedFarms := removedFarmIDs(lines, resolution.Cart)
	subtotal := record.SubtotalCents
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		if len(removedFarms) > 0 {
			subtotal, err = cartRepo.RemoveItemsByFarms(ctx, record.ID, removedFarms)
			if err != nil {
				return err
			}
		}
		if err := cartRepo.SetDeliveryDate(ctx, record.ID, resolution.Date); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCartConsolidated,
			AggregateType: enums.AggregateCart,
			AggregateID:   record.ID,
			Version:       1,
			Data: payloads.CartConsolidatedEvent{
				CartID:           record.ID,
				BuyerID:          buyerID,
				DeliveryDate:     delivery.DateKey(resolution.Date),
				RemovedFarmIDs:   removedFarms,
				RemainingFarms:   len(delivery.FarmIDs(resolution.Cart)),
				NewSubtotalCents: subtotal,
			},
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consolidate cart")
	}

	return &ConsolidationResult{
		DeliveryDate:   delivery.DateKey(resolution.Date),
		RemovedFarmIDs: removedFarms,
		RemainingLines: len(resolution.Cart),
		SubtotalCents:  subtotal,
	}, nil
}

func (s *service) parseDate(value string) (time.Time, error) {
	date, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "delivery_date must be YYYY-MM-DD")
	}
	return date, nil
}

// minDate is the earliest selectable delivery date given the lead time.
func (s *service) minDate() time.Time {
	today := s.now().UTC().Truncate(24 * time.Hour)
	return today.AddDate(0, 0, s.cfg.MinLeadDays)
}

func (s *service) loadCart(ctx context.Context, buyerID uuid.UUID) (*models.CartRecord, []delivery.CartLine, error) {
	if buyerID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	record, err := s.cartRepo.FindActiveByBuyer(ctx, buyerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active cart")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if len(record.Items) == 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
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
	return record, lines, nil
}

// loadWindow fetches the schedule and availability for the resolver's scan
// window, from the selected date through the consolidation horizon.
func (s *service) loadWindow(ctx context.Context, date time.Time, farmIDs []uuid.UUID) (delivery.Schedule, delivery.AvailabilityMap, error) {
	horizon := s.cfg.HorizonDays
	if horizon <= 0 {
		horizon = delivery.DefaultHorizonDays
	}
	to := date.AddDate(0, 0, horizon)

	schedule, err := s.schedule.ScheduleRange(ctx, date, to)
	if err != nil {
		return nil, nil, err
	}

	avail := delivery.AvailabilityMap{}
	if len(farmIDs) > 0 {
		avail, err = s.availability.Bulk(ctx, farmIDs, date, to)
		if err != nil {
			return nil, nil, err
		}
	}
	return schedule, avail, nil
}

func resolveAddress(record *models.CartRecord, override *types.Address) (*types.Address, error) {
	address := override
	if address == nil {
		address = record.DeliveryAddress
	}
	if address == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address is required")
	}
	if err := address.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery address")
	}
	return address, nil
}

func removedFarmIDs(original, kept []delivery.CartLine) []uuid.UUID {
	remaining := make(map[uuid.UUID]struct{}, len(kept))
	for _, line := range kept {
		remaining[line.FarmID] = struct{}{}
	}
	removed := make([]uuid.UUID, 0)
	for _, id := range delivery.FarmIDs(original) {
		if _, ok := remaining[id]; !ok {
			removed = append(removed, id)
		}
	}
	return removed
}

// orderLines snapshots the surviving cart items as order line items.
func orderLines(items []models.CartItem, removedFarms []uuid.UUID) []models.OrderLineItem {
	removed := make(map[uuid.UUID]struct{}, len(removedFarms))
	for _, id := range removedFarms {
		removed[id] = struct{}{}
	}
	lines := make([]models.OrderLineItem, 0, len(items))
	for _, item := range items {
		if _, ok := removed[item.FarmID]; ok {
			continue
		}
		lines = append(lines, models.OrderLineItem{
			ProductID:         item.ProductID,
			FarmID:            item.FarmID,
			ProductTitle:      item.ProductTitle,
			FarmName:          item.FarmName,
			Quantity:          item.Quantity,
			UnitPriceCents:    item.UnitPriceCents,
			LineSubtotalCents: item.LineSubtotalCents,
		})
	}
	return lines
}
