package schedule

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/harvestfield/farmlink-backend/pkg/db/models"
)

// Repository provides persistence for the business delivery calendar.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// ListRange returns the published delivery days inside [from, to].
func (r *Repository) ListRange(ctx context.Context, from, to time.Time) ([]models.DeliveryDay, error) {
	var days []models.DeliveryDay
	err := r.db.WithContext(ctx).
		Where("date >= ? AND date <= ?", from, to).
		Order("date ASC").
		Find(&days).Error
	return days, err
}

// Upsert writes one delivery day, replacing any existing row for the date.
func (r *Repository) Upsert(ctx context.Context, day *models.DeliveryDay) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_available", "note", "updated_at"}),
		}).
		Create(day).Error
}
