package availability

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/harvestfield/farmlink-backend/pkg/db/models"
)

// Repository provides persistence for per-farm ship dates.
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

// ListRange loads availability rows for the given farms inside [from, to].
func (r *Repository) ListRange(ctx context.Context, farmIDs []uuid.UUID, from, to time.Time) ([]models.FarmAvailability, error) {
	if len(farmIDs) == 0 {
		return nil, nil
	}
	var rows []models.FarmAvailability
	err := r.db.WithContext(ctx).
		Where("farm_id IN ? AND date >= ? AND date <= ?", farmIDs, from, to).
		Order("date ASC").
		Find(&rows).Error
	return rows, err
}

// ListForDate loads availability rows for the given farms on one date.
func (r *Repository) ListForDate(ctx context.Context, farmIDs []uuid.UUID, date time.Time) ([]models.FarmAvailability, error) {
	return r.ListRange(ctx, farmIDs, date, date)
}

// Upsert writes one (farm, date) availability row.
func (r *Repository) Upsert(ctx context.Context, row *models.FarmAvailability) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "farm_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"can_ship", "updated_at"}),
		}).
		Create(row).Error
}
