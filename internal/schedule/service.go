package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harvestfield/farmlink-backend/internal/delivery"
	"github.com/harvestfield/farmlink-backend/pkg/db/models"
	"github.com/harvestfield/farmlink-backend/pkg/enums"
	pkgerrors "github.com/harvestfield/farmlink-backend/pkg/errors"
	"github.com/harvestfield/farmlink-backend/pkg/outbox"
	"github.com/harvestfield/farmlink-backend/pkg/outbox/payloads"
)

// DayDTO is one calendar day of the public schedule.
type DayDTO struct {
	Date        string `json:"date"`
	IsAvailable bool   `json:"is_available"`
	Note        string `json:"note,omitempty"`
}

// UpsertDayInput is one admin schedule entry.
type UpsertDayInput struct {
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	IsAvailable bool   `json:"is_available"`
	Note        string `json:"note,omitempty" validate:"omitempty,max=400"`
}

// UpsertScheduleInput is the admin bulk payload.
type UpsertScheduleInput struct {
	Days []UpsertDayInput `json:"days" validate:"required,min=1,max=62,dive"`
}

// Service exposes the delivery calendar.
type Service interface {
	ListMonth(ctx context.Context, month string) ([]DayDTO, error)
	// ScheduleRange loads the open/closed map the resolver consumes.
	ScheduleRange(ctx context.Context, from, to time.Time) (delivery.Schedule, error)
	UpsertDays(ctx context.Context, input UpsertScheduleInput) ([]DayDTO, error)
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

// NewService builds a schedule service.
func NewService(repo *Repository, tx txRunner, events eventEmitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("schedule repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	return &service{repo: repo, tx: tx, events: events}, nil
}

// ListMonth returns the published days of one YYYY-MM month. Days without a
// row are simply absent; absence means closed.
func (s *service) ListMonth(ctx context.Context, month string) ([]DayDTO, error) {
	from, to, err := monthBounds(month)
	if err != nil {
		return nil, err
	}
	days, err := s.repo.ListRange(ctx, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list schedule")
	}
	out := make([]DayDTO, 0, len(days))
	for _, day := range days {
		dto := DayDTO{Date: delivery.DateKey(day.Date), IsAvailable: day.IsAvailable}
		if day.Note != nil {
			dto.Note = *day.Note
		}
		out = append(out, dto)
	}
	return out, nil
}

func (s *service) ScheduleRange(ctx context.Context, from, to time.Time) (delivery.Schedule, error) {
	days, err := s.repo.ListRange(ctx, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load schedule")
	}
	schedule := make(delivery.Schedule, len(days))
	for _, day := range days {
		schedule[delivery.DateKey(day.Date)] = day.IsAvailable
	}
	return schedule, nil
}

// UpsertDays bulk-writes schedule entries and emits one update event per day.
func (s *service) UpsertDays(ctx context.Context, input UpsertScheduleInput) ([]DayDTO, error) {
	if len(input.Days) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one day is required")
	}

	parsed := make([]models.DeliveryDay, 0, len(input.Days))
	seen := map[string]struct{}{}
	for _, entry := range input.Days {
		date, err := time.Parse("2006-01-02", entry.Date)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid date %q", entry.Date))
		}
		if _, dup := seen[entry.Date]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("duplicate date %q", entry.Date))
		}
		seen[entry.Date] = struct{}{}

		day := models.DeliveryDay{ID: uuid.New(), Date: date, IsAvailable: entry.IsAvailable}
		if note := strings.TrimSpace(entry.Note); note != "" {
			day.Note = &note
		}
		parsed = append(parsed, day)
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for i := range parsed {
			if err := repo.Upsert(ctx, &parsed[i]); err != nil {
				return err
			}
			note := ""
			if parsed[i].Note != nil {
				note = *parsed[i].Note
			}
			event := outbox.DomainEvent{
				EventType:     enums.EventDeliveryScheduleUpdated,
				AggregateType: enums.AggregateDeliveryDay,
				AggregateID:   parsed[i].ID,
				Version:       1,
				Data: payloads.DeliveryScheduleUpdatedEvent{
					Date:        delivery.DateKey(parsed[i].Date),
					IsAvailable: parsed[i].IsAvailable,
					Note:        note,
				},
			}
			if err := s.events.Emit(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist schedule")
	}

	out := make([]DayDTO, 0, len(parsed))
	for _, day := range parsed {
		dto := DayDTO{Date: delivery.DateKey(day.Date), IsAvailable: day.IsAvailable}
		if day.Note != nil {
			dto.Note = *day.Note
		}
		out = append(out, dto)
	}
	return out, nil
}

func monthBounds(month string) (time.Time, time.Time, error) {
	parsed, err := time.Parse("2006-01", strings.TrimSpace(month))
	if err != nil {
		return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "month must be YYYY-MM")
	}
	from := time.Date(parsed.Year(), parsed.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)
	return from, to, nil
}
