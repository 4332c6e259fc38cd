package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harvestfield/farmlink-backend/pkg/db/models"
	"github.com/harvestfield/farmlink-backend/pkg/enums"
	"github.com/harvestfield/farmlink-backend/pkg/pagination"
)

// Repository provides persistence for orders and their line items.
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

// Create writes the order together with its line items. The caller runs
// this inside a transaction.
func (r *Repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range order.LineItems {
		if order.LineItems[i].ID == uuid.Nil {
			order.LineItems[i].ID = uuid.New()
		}
		order.LineItems[i].OrderID = order.ID
	}
	if err := r.db.WithContext(ctx).Omit("LineItems").Create(order).Error; err != nil {
		return nil, err
	}
	if len(order.LineItems) > 0 {
		if err := r.db.WithContext(ctx).Create(&order.LineItems).Error; err != nil {
			return nil, err
		}
	}
	return order, nil
}

// FindByID loads an order with its line items.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("LineItems").
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByBuyer returns a page of the buyer's orders, newest first.
func (r *Repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	return r.list(ctx, params, func(query *gorm.DB) *gorm.DB {
		return query.Where("buyer_id = ?", buyerID)
	})
}

// ListAll returns a page of every order, optionally filtered to one
// delivery date. Admin surface only.
func (r *Repository) ListAll(ctx context.Context, deliveryDate *time.Time, params pagination.Params) ([]models.Order, string, error) {
	return r.list(ctx, params, func(query *gorm.DB) *gorm.DB {
		if deliveryDate != nil {
			query = query.Where("delivery_date = ?", *deliveryDate)
		}
		return query
	})
}

func (r *Repository) list(ctx context.Context, params pagination.Params, scope func(*gorm.DB) *gorm.DB) ([]models.Order, string, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	query := scope(r.db.WithContext(ctx).Model(&models.Order{})).Preload("LineItems")

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	if err := query.
		Order("created_at DESC, id DESC").
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

// UpdateStatus moves an order between states. The from set guards against
// racing transitions; zero affected rows means the order was not in any of
// the expected states.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
