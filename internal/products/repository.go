package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harvestfield/farmlink-backend/pkg/db/models"
	"github.com/harvestfield/farmlink-backend/pkg/pagination"
)

// ProductWithFarm joins a listing with its producer's name.
type ProductWithFarm struct {
	models.Product
	FarmName string
}

// Repository provides persistence for catalog listings.
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

func (r *Repository) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindActiveWithFarm loads a listing plus its farm, requiring both active.
func (r *Repository) FindActiveWithFarm(ctx context.Context, id uuid.UUID) (*ProductWithFarm, error) {
	var row ProductWithFarm
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select("products.*, farms.name AS farm_name").
		Joins("JOIN farms ON farms.id = products.farm_id").
		Where("products.id = ? AND products.is_active AND farms.is_active", id).
		Take(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) Save(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Save(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// ListActive returns a page of buyer-visible listings: active products of
// active farms, newest first.
func (r *Repository) ListActive(ctx context.Context, filter ListFilter, params pagination.Params) ([]ProductWithFarm, string, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	query := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select("products.*, farms.name AS farm_name").
		Joins("JOIN farms ON farms.id = products.farm_id").
		Where("products.is_active AND farms.is_active")

	if filter.FarmID != nil {
		query = query.Where("products.farm_id = ?", *filter.FarmID)
	}
	if filter.Category != "" {
		query = query.Where("products.category = ?", filter.Category)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	if cursor != nil {
		query = query.Where("(products.created_at, products.id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []ProductWithFarm
	if err := query.
		Order("products.created_at DESC, products.id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, "", err
	}

	next := ""
	if len(rows) == limit {
		rows = rows[:limit-1]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

// ListByFarm returns every listing of one farm, including inactive ones,
// for the farmer's own management view.
func (r *Repository) ListByFarm(ctx context.Context, farmID uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("farm_id = ?", farmID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}
