package cart

import (
	"context"

	"github.com/exclusivemerch/store-backend/internal/stock"
	"github.com/exclusivemerch/store-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists cart entries, keyed by (user_id, item_id).
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// ListByUser returns the user's entries with their items, oldest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartEntry, error) {
	var entries []models.CartEntry
	err := r.db.WithContext(ctx).
		Preload("Item").
		Where("user_id = ?", userID).
		Order("created_at ASC, item_id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Upsert creates the entry or replaces quantity, variant and price of the existing one.
func (r *Repository) Upsert(ctx context.Context, entry *models.CartEntry) error {
	return r.db.WithContext(ctx).
		Omit("Item").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "color_option", "size_option", "price", "updated_at"}),
		}).
		Create(entry).Error
}

// Delete removes one entry and reports whether it existed.
func (r *Repository) Delete(ctx context.Context, userID uuid.UUID, itemID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND item_id = ?", userID, itemID).
		Delete(&models.CartEntry{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteByUser empties the user's cart.
func (r *Repository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.CartEntry{})
	return res.RowsAffected, res.Error
}

// DeleteVariants removes the user's entries for exactly the given variants.
// Entries added or switched to another variant since they were read survive.
func (r *Repository) DeleteVariants(ctx context.Context, userID uuid.UUID, variants []stock.Variant) (int64, error) {
	if len(variants) == 0 {
		return 0, nil
	}
	match := r.db.Session(&gorm.Session{NewDB: true})
	for i, v := range variants {
		const cond = "item_id = ? AND color_option = ? AND size_option = ?"
		if i == 0 {
			match = match.Where(cond, v.ItemID, v.ColorOption, v.SizeOption)
		} else {
			match = match.Or(cond, v.ItemID, v.ColorOption, v.SizeOption)
		}
	}
	res := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where(match).
		Delete(&models.CartEntry{})
	return res.RowsAffected, res.Error
}
