package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harvestfield/farmlink-backend/pkg/db/models"
	"github.com/harvestfield/farmlink-backend/pkg/enums"
)

// Repository provides persistence for cart records and their items.
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

// FindActiveByBuyer loads the buyer's active cart with items.
func (r *Repository) FindActiveByBuyer(ctx context.Context, buyerID uuid.UUID) (*models.CartRecord, error) {
	var record models.CartRecord
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("buyer_id = ? AND status = ?", buyerID, enums.CartStatusActive).
		Order("created_at DESC").
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Replace swaps the active cart's items and totals in one pass. The caller
// runs this inside a transaction.
func (r *Repository) Replace(ctx context.Context, record *models.CartRecord, items []models.CartItem) (*models.CartRecord, error) {
	tx := r.db.WithContext(ctx)
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
		if err := tx.Omit("Items").Create(record).Error; err != nil {
			return nil, err
		}
	} else {
		if err := tx.Omit("Items").Save(record).Error; err != nil {
			return nil, err
		}
		if err := tx.Where("cart_id = ?", record.ID).Delete(&models.CartItem{}).Error; err != nil {
			return nil, err
		}
	}

	for i := range items {
		items[i].ID = uuid.New()
		items[i].CartID = record.ID
	}
	if len(items) > 0 {
		if err := tx.Create(&items).Error; err != nil {
			return nil, err
		}
	}
	record.Items = items
	return record, nil
}

// RemoveItemsByFarms drops all lines produced by the given farms and
// returns the new subtotal.
func (r *Repository) RemoveItemsByFarms(ctx context.Context, cartID uuid.UUID, farmIDs []uuid.UUID) (int, error) {
	tx := r.db.WithContext(ctx)
	if len(farmIDs) > 0 {
		if err := tx.Where("cart_id = ? AND farm_id IN ?", cartID, farmIDs).
			Delete(&models.CartItem{}).Error; err != nil {
			return 0, err
		}
	}

	var subtotal int64
	if err := tx.Model(&models.CartItem{}).
		Where("cart_id = ?", cartID).
		Select("COALESCE(SUM(line_subtotal_cents), 0)").
		Scan(&subtotal).Error; err != nil {
		return 0, err
	}
	if err := tx.Model(&models.CartRecord{}).
		Where("id = ?", cartID).
		Update("subtotal_cents", subtotal).Error; err != nil {
		return 0, err
	}
	return int(subtotal), nil
}

// SetDeliveryDate stamps the cart's chosen delivery date.
func (r *Repository) SetDeliveryDate(ctx context.Context, cartID uuid.UUID, date time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.CartRecord{}).
		Where("id = ?", cartID).
		Update("delivery_date", date).Error
}

// MarkConverted closes the cart after a successful checkout.
func (r *Repository) MarkConverted(ctx context.Context, cartID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.CartRecord{}).
		Where("id = ? AND status = ?", cartID, enums.CartStatusActive).
		Updates(map[string]any{
			"status":       enums.CartStatusConverted,
			"converted_at": at,
		}).Error
}
