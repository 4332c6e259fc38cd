package availability

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/harvestfield/farmlink-backend/internal/delivery"
	"github.com/harvestfield/farmlink-backend/pkg/db/models"
	"github.com/harvestfield/farmlink-backend/pkg/enums"
	pkgerrors "github.com/harvestfield/farmlink-backend/pkg/errors"
	"github.com/harvestfield/farmlink-backend/pkg/logger"
	"github.com/harvestfield/farmlink-backend/pkg/outbox"
	"github.com/harvestfield/farmlink-backend/pkg/outbox/payloads"
)

const maxRangeDays = 92

// UpsertEntry is one (date, can_ship) pair from a farmer.
type UpsertEntry struct {
	Date    string `json:"date" validate:"required,datetime=2006-01-02"`
	CanShip bool   `json:"can_ship"`
}

// UpsertInput is the farmer's bulk availability payload.
type UpsertInput struct {
	Entries []UpsertEntry `json:"entries" validate:"required,min=1,max=92,dive"`
}

// Service answers bulk availability queries and records farmer ship dates.
type Service interface {
	// Bulk returns, per ISO date in [from, to], which of the requested farms
	// can ship. Farms with no recorded signal count as unavailable.
	Bulk(ctx context.Context, farmIDs []uuid.UUID, from, to time.Time) (delivery.AvailabilityMap, error)
	// Snapshot is Bulk without the cache, reading straight from storage.
	// Checkout uses it inside the order transaction.
	Snapshot(ctx context.Context, farmIDs []uuid.UUID, date time.Time) (delivery.DayAvailability, error)
	UpsertOwn(ctx context.Context, farmID uuid.UUID, input UpsertInput) error
}

type availabilityCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	AvailabilityKey(scope string) string
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo     *Repository
	cache    availabilityCache
	tx       txRunner
	events   eventEmitter
	cacheTTL time.Duration
	logg     *logger.Logger
}

// NewService builds an availability service. The cache is optional; without
// it every bulk query hits storage.
func NewService(repo *Repository, cache availabilityCache, tx txRunner, events eventEmitter, cacheTTL time.Duration, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("availability repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	return &service{
		repo:     repo,
		cache:    cache,
		tx:       tx,
		events:   events,
		cacheTTL: cacheTTL,
		logg:     logg,
	}, nil
}

func (s *service) Bulk(ctx context.Context, farmIDs []uuid.UUID, from, to time.Time) (delivery.AvailabilityMap, error) {
	canonical, err := canonicalizeIDs(farmIDs)
	if err != nil {
		return nil, err
	}
	if err := validateRange(from, to); err != nil {
		return nil, err
	}

	key := s.cacheKey(ctx, canonical, from, to)
	if key != "" {
		if cached, err := s.cache.Get(ctx, key); err == nil && cached != "" {
			var result delivery.AvailabilityMap
			if err := json.Unmarshal([]byte(cached), &result); err == nil {
				return result, nil
			}
		} else if err != nil && !errors.Is(err, redislib.Nil) && s.logg != nil {
			s.logg.Warn(ctx, "availability cache read failed")
		}
	}

	rows, err := s.repo.ListRange(ctx, canonical, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load availability")
	}
	result := buildMap(canonical, from, to, rows)

	if key != "" {
		if payload, err := json.Marshal(result); err == nil {
			if err := s.cache.Set(ctx, key, string(payload), s.cacheTTL); err != nil && s.logg != nil {
				s.logg.Warn(ctx, "availability cache write failed")
			}
		}
	}
	return result, nil
}

func (s *service) Snapshot(ctx context.Context, farmIDs []uuid.UUID, date time.Time) (delivery.DayAvailability, error) {
	canonical, err := canonicalizeIDs(farmIDs)
	if err != nil {
		return delivery.DayAvailability{}, err
	}
	rows, err := s.repo.ListForDate(ctx, canonical, date)
	if err != nil {
		return delivery.DayAvailability{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load availability")
	}
	result := buildMap(canonical, date, date, rows)
	return result[delivery.DateKey(date)], nil
}

func (s *service) UpsertOwn(ctx context.Context, farmID uuid.UUID, input UpsertInput) error {
	if farmID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "farm id is required")
	}
	if len(input.Entries) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one entry is required")
	}

	rows := make([]models.FarmAvailability, 0, len(input.Entries))
	seen := map[string]struct{}{}
	for _, entry := range input.Entries {
		date, err := time.Parse("2006-01-02", entry.Date)
		if err != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid date %q", entry.Date))
		}
		if _, dup := seen[entry.Date]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("duplicate date %q", entry.Date))
		}
		seen[entry.Date] = struct{}{}
		rows = append(rows, models.FarmAvailability{
			ID:      uuid.New(),
			FarmID:  farmID,
			Date:    date,
			CanShip: entry.CanShip,
		})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for i := range rows {
			if err := repo.Upsert(ctx, &rows[i]); err != nil {
				return err
			}
			event := outbox.DomainEvent{
				EventType:     enums.EventFarmAvailabilityChanged,
				AggregateType: enums.AggregateFarm,
				AggregateID:   farmID,
				Version:       1,
				Data: payloads.FarmAvailabilityChangedEvent{
					FarmID:  farmID,
					Date:    delivery.DateKey(rows[i].Date),
					CanShip: rows[i].CanShip,
				},
			}
			if err := s.events.Emit(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist availability")
	}

	s.invalidate(ctx)
	return nil
}

// invalidate bumps the cache generation so later bulk queries miss.
// Best effort; checkout re-reads storage regardless.
func (s *service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Incr(ctx, s.cache.AvailabilityKey("generation")); err != nil && s.logg != nil {
		s.logg.Warn(ctx, "availability cache invalidation failed")
	}
}

// cacheKey folds the canonical farm set, range, and cache generation into a
// stable key. An empty key disables caching for the call.
func (s *service) cacheKey(ctx context.Context, canonical []uuid.UUID, from, to time.Time) string {
	if s.cache == nil || s.cacheTTL <= 0 {
		return ""
	}
	generation := "0"
	if value, err := s.cache.Get(ctx, s.cache.AvailabilityKey("generation")); err == nil && value != "" {
		generation = value
	}

	parts := make([]string, 0, len(canonical)+3)
	for _, id := range canonical {
		parts = append(parts, id.String())
	}
	parts = append(parts, delivery.DateKey(from), delivery.DateKey(to), generation)
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return s.cache.AvailabilityKey("bulk:" + hex.EncodeToString(sum[:16]))
}

// canonicalizeIDs sorts and deduplicates the requested farm ids so cache
// keys do not churn on incidental ordering.
func canonicalizeIDs(farmIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(farmIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one farm id is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(farmIDs))
	canonical := make([]uuid.UUID, 0, len(farmIDs))
	for _, id := range farmIDs {
		if id == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "farm id must not be empty")
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		canonical = append(canonical, id)
	}
	sort.Slice(canonical, func(i, j int) bool {
		return canonical[i].String() < canonical[j].String()
	})
	return canonical, nil
}

func validateRange(from, to time.Time) error {
	if to.Before(from) {
		return pkgerrors.New(pkgerrors.CodeValidation, "range end before start")
	}
	if int(to.Sub(from).Hours()/24) > maxRangeDays {
		return pkgerrors.New(pkgerrors.CodeValidation, "date range too large")
	}
	return nil
}

// buildMap assembles the per-date response. Requested farms without a
// can_ship row for a date land in the unavailable list.
func buildMap(canonical []uuid.UUID, from, to time.Time, rows []models.FarmAvailability) delivery.AvailabilityMap {
	shippable := make(map[string]map[uuid.UUID]bool)
	for _, row := range rows {
		key := delivery.DateKey(row.Date)
		if shippable[key] == nil {
			shippable[key] = make(map[uuid.UUID]bool)
		}
		shippable[key][row.FarmID] = row.CanShip
	}

	result := make(delivery.AvailabilityMap)
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		key := delivery.DateKey(day)
		entry := delivery.DayAvailability{
			Available:   make([]uuid.UUID, 0, len(canonical)),
			Unavailable: make([]uuid.UUID, 0),
		}
		for _, id := range canonical {
			if shippable[key][id] {
				entry.Available = append(entry.Available, id)
			} else {
				entry.Unavailable = append(entry.Unavailable, id)
			}
		}
		entry.AllAvailable = len(entry.Available) == len(canonical)
		result[key] = entry
	}
	return result
}
