package farms

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harvestfield/farmlink-backend/pkg/db/models"
	"github.com/harvestfield/farmlink-backend/pkg/pagination"
)

// Repository provides persistence for farm profiles.
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

func (r *Repository) Create(ctx context.Context, farm *models.Farm) (*models.Farm, error) {
	if err := r.db.WithContext(ctx).Create(farm).Error; err != nil {
		return nil, err
	}
	return farm, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Farm, error) {
	var farm models.Farm
	if err := r.db.WithContext(ctx).First(&farm, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &farm, nil
}

func (r *Repository) Save(ctx context.Context, farm *models.Farm) (*models.Farm, error) {
	if err := r.db.WithContext(ctx).Save(farm).Error; err != nil {
		return nil, err
	}
	return farm, nil
}

// ListActive returns a page of active farms, newest first, with the cursor
// for the next page when one exists.
func (r *Repository) ListActive(ctx context.Context, params pagination.Params) ([]models.Farm, string, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Farm{}).Where("is_active = ?", true)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var farms []models.Farm
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&farms).Error; err != nil {
		return nil, "", err
	}

	next := ""
	if len(farms) == limit {
		farms = farms[:limit-1]
		last := farms[len(farms)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return farms, next, nil
}

// ActiveIDs filters the provided farm ids down to the active ones.
func (r *Repository) ActiveIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var active []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Farm{}).
		Where("id IN ? AND is_active = ?", ids, true).
		Pluck("id", &active).Error
	return active, err
}
