package checkout

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/harvestfield/farmlink-backend/internal/cart"
	"github.com/harvestfield/farmlink-backend/internal/delivery"
	"github.com/harvestfield/farmlink-backend/internal/orders"
	"github.com/harvestfield/farmlink-backend/pkg/config"
	"github.com/harvestfield/farmlink-backend/pkg/db/models"
	"github.com/harvestfield/farmlink-backend/pkg/enums"
	pkgerrors "github.com/harvestfield/farmlink-backend/pkg/errors"
	"github.com/harvestfield/farmlink-backend/pkg/outbox"
	"github.com/harvestfield/farmlink-backend/pkg/types"
)

// Schema is created with raw DDL because the production models declare
// postgres defaults sqlite cannot parse.
const testSchema = `
CREATE TABLE cart_records (
	id TEXT PRIMARY KEY,
	buyer_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	delivery_date DATE,
	delivery_address TEXT,
	subtotal_cents INTEGER NOT NULL DEFAULT 0,
	converted_at DATETIME,
	created_at DATETIME,
	updated_at DATETIME
);
CREATE TABLE cart_items (
	id TEXT PRIMARY KEY,
	cart_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	farm_id TEXT NOT NULL,
	product_title TEXT NOT NULL,
	farm_name TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	unit_price_cents INTEGER NOT NULL,
	line_subtotal_cents INTEGER NOT NULL,
	created_at DATETIME,
	updated_at DATETIME
);
CREATE TABLE orders (
	id TEXT PRIMARY KEY,
	buyer_id TEXT NOT NULL,
	cart_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	delivery_date DATE NOT NULL,
	delivery_address TEXT,
	subtotal_cents INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME,
	updated_at DATETIME
);
CREATE TABLE order_line_items (
	id TEXT PRIMARY KEY,
	order_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	farm_id TEXT NOT NULL,
	product_title TEXT NOT NULL,
	farm_name TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	unit_price_cents INTEGER NOT NULL,
	line_subtotal_cents INTEGER NOT NULL,
	created_at DATETIME
);
`

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := conn.Exec(testSchema).Error; err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, err := conn.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

type recordingEmitter struct {
	events []outbox.DomainEvent
}

func (e *recordingEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	e.events = append(e.events, event)
	return nil
}

func (e *recordingEmitter) types() []enums.OutboxEventType {
	out := make([]enums.OutboxEventType, 0, len(e.events))
	for _, event := range e.events {
		out = append(out, event.EventType)
	}
	return out
}

type stubSchedule struct {
	schedule delivery.Schedule
}

func (s stubSchedule) ScheduleRange(_ context.Context, _, _ time.Time) (delivery.Schedule, error) {
	return s.schedule, nil
}

// stubAvailability serves the pre-transaction bulk map and a possibly
// different in-transaction snapshot, mirroring a stale client view. The
// maps are mutable so tests can stage them after the fixture seeds ids.
type stubAvailability struct {
	bulk     delivery.AvailabilityMap
	snapshot delivery.AvailabilityMap
	bulkErr  error
}

func (s *stubAvailability) Bulk(_ context.Context, _ []uuid.UUID, _, _ time.Time) (delivery.AvailabilityMap, error) {
	if s.bulkErr != nil {
		return nil, s.bulkErr
	}
	return s.bulk, nil
}

func (s *stubAvailability) Snapshot(_ context.Context, farmIDs []uuid.UUID, date time.Time) (delivery.DayAvailability, error) {
	source := s.snapshot
	if source == nil {
		source = s.bulk
	}
	day := source[delivery.DateKey(date)]
	// Recompute the flag against the requested set, the stored map was
	// built for the full cart.
	available := make(map[uuid.UUID]bool, len(day.Available))
	for _, id := range day.Available {
		available[id] = true
	}
	result := delivery.DayAvailability{}
	for _, id := range farmIDs {
		if available[id] {
			result.Available = append(result.Available, id)
		} else {
			result.Unavailable = append(result.Unavailable, id)
		}
	}
	result.AllAvailable = len(result.Unavailable) == 0
	return result, nil
}

type fixture struct {
	svc       Service
	db        *gorm.DB
	cartRepo  *cart.Repository
	orderRepo *orders.Repository
	emitter   *recordingEmitter
	avail     *stubAvailability
	buyerID   uuid.UUID
	cartID    uuid.UUID
	farmA     uuid.UUID
	farmB     uuid.UUID
	productA  uuid.UUID
	productB  uuid.UUID
}

var testNow = time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

func testAddress() *types.Address {
	return &types.Address{
		Line1:      "1-2-3 Shibakoen",
		City:       "Minato",
		Prefecture: "Tokyo",
		PostalCode: "105-0011",
	}
}

// newFixture seeds a two-farm cart: 2x450 from farmA and 1x800 from farmB.
func newFixture(t *testing.T, schedule delivery.Schedule) *fixture {
	t.Helper()
	db := openTestDB(t)
	cartRepo := cart.NewRepository(db)
	orderRepo := orders.NewRepository(db)
	emitter := &recordingEmitter{}
	avail := &stubAvailability{bulk: delivery.AvailabilityMap{}}

	svc, err := NewService(ServiceParams{
		CartRepo:     cartRepo,
		OrdersRepo:   orderRepo,
		Schedule:     stubSchedule{schedule: schedule},
		Availability: avail,
		Tx:           testTxRunner{db: db},
		Events:       emitter,
		Delivery:     config.DeliveryConfig{MinLeadDays: 2, HorizonDays: 60},
		Now:          func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	f := &fixture{
		svc:       svc,
		db:        db,
		cartRepo:  cartRepo,
		orderRepo: orderRepo,
		emitter:   emitter,
		avail:     avail,
		buyerID:   uuid.New(),
		farmA:     uuid.New(),
		farmB:     uuid.New(),
		productA:  uuid.New(),
		productB:  uuid.New(),
	}

	record := &models.CartRecord{
		BuyerID:         f.buyerID,
		Status:          enums.CartStatusActive,
		DeliveryAddress: testAddress(),
		SubtotalCents:   1700,
	}
	items := []models.CartItem{
		{
			ProductID:         f.productA,
			FarmID:            f.farmA,
			ProductTitle:      "Heirloom Tomatoes",
			FarmName:          "Aoyama Farm",
			Quantity:          2,
			UnitPriceCents:    450,
			LineSubtotalCents: 900,
		},
		{
			ProductID:         f.productB,
			FarmID:            f.farmB,
			ProductTitle:      "Shiitake Box",
			FarmName:          "Besshi Gardens",
			Quantity:          1,
			UnitPriceCents:    800,
			LineSubtotalCents: 800,
		},
	}
	created, err := cartRepo.Replace(context.Background(), record, items)
	if err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	f.cartID = created.ID
	return f
}

func openDays(dates ...string) delivery.Schedule {
	schedule := delivery.Schedule{}
	for _, date := range dates {
		schedule[date] = true
	}
	return schedule
}

func dayFor(all bool, available ...uuid.UUID) delivery.DayAvailability {
	return delivery.DayAvailability{AllAvailable: all, Available: available}
}

func TestSubmitProceedsWhenEveryFarmCanShip(t *testing.T) {
	schedule := openDays("2026-09-10")
	f := newFixture(t, schedule)
	f.avail.bulk = delivery.AvailabilityMap{
		"2026-09-10": dayFor(true, f.farmA, f.farmB),
	}

	dto, err := f.svc.Submit(context.Background(), f.buyerID, SubmitInput{DeliveryDate: "2026-09-10"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if dto.DeliveryDate != "2026-09-10" || dto.SubtotalCents != 1700 {
		t.Fatalf("unexpected order %+v", dto)
	}
	if len(dto.LineItems) != 2 {
		t.Fatalf("expected both lines on the order, got %d", len(dto.LineItems))
	}

	if _, err := f.cartRepo.FindActiveByBuyer(context.Background(), f.buyerID); err == nil {
		t.Fatal("cart must be converted after checkout")
	}
	if got := f.emitter.types(); len(got) != 1 || got[0] != enums.EventOrderCreated {
		t.Fatalf("expected only order_created, got %v", got)
	}
}

func TestSubmitWithoutDecisionReturnsConflictPayload(t *testing.T) {
	schedule := openDays("2026-09-10", "2026-09-12")
	f := newFixture(t, schedule)
	f.avail.bulk = delivery.AvailabilityMap{
		"2026-09-10": dayFor(false, f.farmA),
		"2026-09-12": dayFor(true, f.farmA, f.farmB),
	}

	_, err := f.svc.Submit(context.Background(), f.buyerID, SubmitInput{DeliveryDate: "2026-09-10"})
	typed := assertCode(t, err, pkgerrors.CodeStateConflict)

	outcome, ok := typed.Details().(delivery.Outcome)
	if !ok {
		t.Fatalf("expected outcome details, got %T", typed.Details())
	}
	if len(outcome.UnavailableItems) != 1 || outcome.UnavailableItems[0].FarmID != f.farmB {
		t.Fatalf("expected farmB line blocked, got %+v", outcome.UnavailableItems)
	}
	if outcome.NextAvailableDate == nil || delivery.DateKey(outcome.NextAvailableDate.Date) != "2026-09-12" {
		t.Fatalf("expected next available 2026-09-12, got %+v", outcome.NextAvailableDate)
	}
	if len(f.emitter.events) != 0 {
		t.Fatal("no events may be emitted for a blocked submit")
	}
}

func TestSubmitConsolidateMovesWholeCartToNextDate(t *testing.T) {
	schedule := openDays("2026-09-10", "2026-09-12")
	f := newFixture(t, schedule)
	f.avail.bulk = delivery.AvailabilityMap{
		"2026-09-10": dayFor(false, f.farmA),
		"2026-09-12": dayFor(true, f.farmA, f.farmB),
	}

	dto, err := f.svc.Submit(context.Background(), f.buyerID, SubmitInput{
		DeliveryDate: "2026-09-10",
		Decision:     "consolidate",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if dto.DeliveryDate != "2026-09-12" {
		t.Fatalf("expected consolidation onto 2026-09-12, got %s", dto.DeliveryDate)
	}
	if len(dto.LineItems) != 2 || dto.SubtotalCents != 1700 {
		t.Fatalf("consolidation must keep every line, got %+v", dto)
	}
	if got := f.emitter.types(); len(got) != 2 ||
		got[0] != enums.EventCartConsolidated || got[1] != enums.EventOrderCreated {
		t.Fatalf("expected cart_consolidated then order_created, got %v", got)
	}
}

func TestSubmitRemoveItemsKeepsOriginalDate(t *testing.T) {
	schedule := openDays("2026-09-10", "2026-09-12")
	f := newFixture(t, schedule)
	f.avail.bulk = delivery.AvailabilityMap{
		"2026-09-10": dayFor(false, f.farmA),
		"2026-09-12": dayFor(true, f.farmA, f.farmB),
	}

	dto, err := f.svc.Submit(context.Background(), f.buyerID, SubmitInput{
		DeliveryDate: "2026-09-10",
		Decision:     "remove_items",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if dto.DeliveryDate != "2026-09-10" {
		t.Fatalf("remove_items must keep the chosen date, got %s", dto.DeliveryDate)
	}
	if len(dto.LineItems) != 1 || dto.LineItems[0].FarmID != f.farmA {
		t.Fatalf("expected only the farmA line, got %+v", dto.LineItems)
	}
	if dto.SubtotalCents != 900 {
		t.Fatalf("expected recomputed subtotal 900, got %d", dto.SubtotalCents)
	}

	var remaining int64
	if err := f.db.Model(&models.CartItem{}).Where("cart_id = ?", f.cartID).Count(&remaining).Error; err != nil {
		t.Fatalf("count items: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("expected the blocked line removed from the cart, found %d rows", remaining)
	}
}

func TestSubmitStaleDecisionIsRejectedInTransaction(t *testing.T) {
	schedule := openDays("2026-09-10")
	f := newFixture(t, schedule)
	// The client-visible map says both farms ship; by transaction time
	// farmB has closed the date.
	f.avail.bulk = delivery.AvailabilityMap{
		"2026-09-10": dayFor(true, f.farmA, f.farmB),
	}
	f.avail.snapshot = delivery.AvailabilityMap{
		"2026-09-10": dayFor(false, f.farmA),
	}

	_, err := f.svc.Submit(context.Background(), f.buyerID, SubmitInput{DeliveryDate: "2026-09-10"})
	assertCode(t, err, pkgerrors.CodeStateConflict)

	record, err := f.cartRepo.FindActiveByBuyer(context.Background(), f.buyerID)
	if err != nil {
		t.Fatalf("cart must stay active after a rejected submit: %v", err)
	}
	if len(record.Items) != 2 {
		t.Fatalf("cart must be untouched, got %d items", len(record.Items))
	}
	var orderCount int64
	if err := f.db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 0 {
		t.Fatal("no order may exist after the transaction rolled back")
	}
}

func TestSubmitRejectsDatesBeforeLeadTime(t *testing.T) {
	schedule := openDays("2026-09-02")
	f := newFixture(t, schedule)

	_, err := f.svc.Submit(context.Background(), f.buyerID, SubmitInput{DeliveryDate: "2026-09-02"})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestSubmitRejectsClosedDates(t *testing.T) {
	f := newFixture(t, delivery.Schedule{})

	_, err := f.svc.Submit(context.Background(), f.buyerID, SubmitInput{DeliveryDate: "2026-09-10"})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestResolveDryRunDoesNotTouchTheCart(t *testing.T) {
	schedule := openDays("2026-09-10", "2026-09-12")
	f := newFixture(t, schedule)
	f.avail.bulk = delivery.AvailabilityMap{
		"2026-09-10": dayFor(false, f.farmA),
		"2026-09-12": dayFor(true, f.farmA, f.farmB),
	}

	resolution, err := f.svc.Resolve(context.Background(), f.buyerID, ResolveInput{DeliveryDate: "2026-09-10"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolution.Outcome.Proceed {
		t.Fatal("expected a blocked outcome")
	}
	if resolution.DayState.Icon != delivery.IconPartial || !resolution.DayState.Selectable {
		t.Fatalf("expected a selectable partial day, got %+v", resolution.DayState)
	}

	record, err := f.cartRepo.FindActiveByBuyer(context.Background(), f.buyerID)
	if err != nil || len(record.Items) != 2 {
		t.Fatalf("dry run must leave the cart intact: %v", err)
	}
	if len(f.emitter.events) != 0 {
		t.Fatal("dry run must not emit events")
	}
}

func TestCalendarRendersMonthStates(t *testing.T) {
	schedule := openDays("2026-09-10", "2026-09-12")
	f := newFixture(t, schedule)
	f.avail.bulk = delivery.AvailabilityMap{
		"2026-09-10": dayFor(false, f.farmA),
		"2026-09-12": dayFor(true, f.farmA, f.farmB),
	}

	view, err := f.svc.Calendar(context.Background(), f.buyerID, "2026-09")
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	if len(view.Days) != 30 {
		t.Fatalf("expected 30 days for September, got %d", len(view.Days))
	}
	if day := view.Days["2026-09-12"]; !day.Selectable || day.Icon != delivery.IconFull {
		t.Fatalf("expected 2026-09-12 fully available, got %+v", day)
	}
	if day := view.Days["2026-09-10"]; !day.Selectable || day.Icon != delivery.IconPartial {
		t.Fatalf("expected 2026-09-10 partial, got %+v", day)
	}
	if day := view.Days["2026-09-11"]; day.Selectable {
		t.Fatalf("closed day must not be selectable, got %+v", day)
	}

	_, err = f.svc.Calendar(context.Background(), f.buyerID, "september")
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestCalendarDegradesWhenAvailabilityIsDown(t *testing.T) {
	schedule := openDays("2026-09-10")
	f := newFixture(t, schedule)
	f.avail.bulkErr = fmt.Errorf("availability store offline")

	view, err := f.svc.Calendar(context.Background(), f.buyerID, "2026-09")
	if err != nil {
		t.Fatalf("calendar must degrade, not fail: %v", err)
	}
	if !view.Degraded {
		t.Fatal("expected the degraded flag")
	}
	if day := view.Days["2026-09-10"]; !day.Selectable || day.Icon != delivery.IconNone {
		t.Fatalf("open day must stay selectable with a none icon, got %+v", day)
	}
}

func TestConsolidateMovesCartWithoutCreatingAnOrder(t *testing.T) {
	schedule := openDays("2026-09-10", "2026-09-12")
	f := newFixture(t, schedule)
	f.avail.bulk = delivery.AvailabilityMap{
		"2026-09-10": dayFor(false, f.farmA),
		"2026-09-12": dayFor(true, f.farmA, f.farmB),
	}

	result, err := f.svc.Consolidate(context.Background(), f.buyerID, ConsolidateInput{
		DeliveryDate: "2026-09-10",
		Decision:     "consolidate",
	})
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if result.DeliveryDate != "2026-09-12" || result.RemainingLines != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(result.RemovedFarmIDs) != 0 {
		t.Fatalf("consolidation keeps every line, got removed %v", result.RemovedFarmIDs)
	}

	record, err := f.cartRepo.FindActiveByBuyer(context.Background(), f.buyerID)
	if err != nil {
		t.Fatalf("cart must stay active: %v", err)
	}
	if record.DeliveryDate == nil || delivery.DateKey(*record.DeliveryDate) != "2026-09-12" {
		t.Fatalf("expected the cart pinned to 2026-09-12, got %+v", record.DeliveryDate)
	}
	var orderCount int64
	if err := f.db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 0 {
		t.Fatal("consolidation must not create an order")
	}
	if got := f.emitter.types(); len(got) != 1 || got[0] != enums.EventCartConsolidated {
		t.Fatalf("expected one cart_consolidated event, got %v", got)
	}
}

func TestConsolidateRemoveItemsDropsBlockedLines(t *testing.T) {
	schedule := openDays("2026-09-10", "2026-09-12")
	f := newFixture(t, schedule)
	f.avail.bulk = delivery.AvailabilityMap{
		"2026-09-10": dayFor(false, f.farmA),
		"2026-09-12": dayFor(true, f.farmA, f.farmB),
	}

	result, err := f.svc.Consolidate(context.Background(), f.buyerID, ConsolidateInput{
		DeliveryDate: "2026-09-10",
		Decision:     "remove_items",
	})
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if result.DeliveryDate != "2026-09-10" || result.SubtotalCents != 900 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(result.RemovedFarmIDs) != 1 || result.RemovedFarmIDs[0] != f.farmB {
		t.Fatalf("expected farmB removed, got %v", result.RemovedFarmIDs)
	}

	record, err := f.cartRepo.FindActiveByBuyer(context.Background(), f.buyerID)
	if err != nil {
		t.Fatalf("reload cart: %v", err)
	}
	if len(record.Items) != 1 || record.Items[0].FarmID != f.farmA {
		t.Fatalf("expected only the farmA line left, got %+v", record.Items)
	}
}

func TestConsolidateWhenNothingIsBlockedIsAConflict(t *testing.T) {
	schedule := openDays("2026-09-10")
	f := newFixture(t, schedule)
	f.avail.bulk = delivery.AvailabilityMap{
		"2026-09-10": dayFor(true, f.farmA, f.farmB),
	}

	_, err := f.svc.Consolidate(context.Background(), f.buyerID, ConsolidateInput{
		DeliveryDate: "2026-09-10",
		Decision:     "consolidate",
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) *pkgerrors.Error {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	if typed.Code() != code {
		t.Fatalf("expected code %s got %s", code, typed.Code())
	}
	return typed
}
