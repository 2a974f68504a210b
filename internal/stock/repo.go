package stock

import (
	"context"
	"errors"

	"github.com/exclusivemerch/store-backend/pkg/db"
	"github.com/exclusivemerch/store-backend/pkg/db/models"
	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
	"gorm.io/gorm"
)

// ErrInsufficientStock is the cause of every reservation that would drive a count below zero.
var ErrInsufficientStock = errors.New("insufficient stock")

// IsInsufficientStock reports whether err came from a failed reservation.
func IsInsufficientStock(err error) bool {
	return errors.Is(err, ErrInsufficientStock) || pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock)
}

// Repository is the stock ledger. All count changes are single conditional
// statements so concurrent callers linearize on the row.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a ledger bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a ledger bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Reserve decrements the variant count by qty when enough stock remains.
func (r *Repository) Reserve(ctx context.Context, v Variant, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	res := r.db.WithContext(ctx).Exec(`
		UPDATE stock_records
		SET count = count - ?
		WHERE item_id = ? AND color_option = ? AND size_option = ? AND count >= ?
	`, qty, v.ItemID, v.ColorOption, v.SizeOption, qty)
	if res.Error != nil {
		if db.IsCheckViolation(res.Error, models.StockCountConstraint) {
			return insufficient(v, qty, 0)
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "reserve stock")
	}
	if res.RowsAffected == 1 {
		return nil
	}

	rec, err := r.Get(ctx, v)
	if err != nil {
		return err
	}
	return insufficient(v, qty, rec.Count)
}

// Release returns qty units to the variant.
func (r *Repository) Release(ctx context.Context, v Variant, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	res := r.db.WithContext(ctx).Exec(`
		UPDATE stock_records
		SET count = count + ?
		WHERE item_id = ? AND color_option = ? AND size_option = ?
	`, qty, v.ItemID, v.ColorOption, v.SizeOption)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "release stock")
	}
	if res.RowsAffected == 0 {
		return missing(v)
	}
	return nil
}

// Get loads one stock record. A missing record is an internal error: every
// declared variant of an item is seeded when the item is created.
func (r *Repository) Get(ctx context.Context, v Variant) (*models.StockRecord, error) {
	var rec models.StockRecord
	err := r.db.WithContext(ctx).
		Where("item_id = ? AND color_option = ? AND size_option = ?", v.ItemID, v.ColorOption, v.SizeOption).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, missing(v)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load stock record")
	}
	return &rec, nil
}

// Available returns the current count of the variant.
func (r *Repository) Available(ctx context.Context, v Variant) (int, error) {
	rec, err := r.Get(ctx, v)
	if err != nil {
		return 0, err
	}
	return rec.Count, nil
}

// Find returns the records that exist for the requested variants.
func (r *Repository) Find(ctx context.Context, variants []Variant) (map[Variant]models.StockRecord, error) {
	out := make(map[Variant]models.StockRecord, len(variants))
	if len(variants) == 0 {
		return out, nil
	}

	itemIDs := make([]int64, 0, len(variants))
	seen := map[int64]struct{}{}
	for _, v := range variants {
		if _, ok := seen[v.ItemID]; ok {
			continue
		}
		seen[v.ItemID] = struct{}{}
		itemIDs = append(itemIDs, v.ItemID)
	}

	var rows []models.StockRecord
	if err := r.db.WithContext(ctx).Where("item_id IN ?", itemIDs).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load stock records")
	}

	wanted := make(map[Variant]struct{}, len(variants))
	for _, v := range variants {
		wanted[v] = struct{}{}
	}
	for _, row := range rows {
		key := VariantOf(row)
		if _, ok := wanted[key]; ok {
			out[key] = row
		}
	}
	return out, nil
}

// ListByItems returns every record of the given items, ordered by variant.
func (r *Repository) ListByItems(ctx context.Context, itemIDs []int64) ([]models.StockRecord, error) {
	if len(itemIDs) == 0 {
		return []models.StockRecord{}, nil
	}
	var rows []models.StockRecord
	err := r.db.WithContext(ctx).
		Where("item_id IN ?", itemIDs).
		Order("item_id, color_option, size_option").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list stock records")
	}
	return rows, nil
}

// Seed inserts the initial records of an item.
func (r *Repository) Seed(ctx context.Context, records []models.StockRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		if rec.Count < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "stock count cannot be negative")
		}
	}
	if err := r.db.WithContext(ctx).Create(&records).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "stock already seeded")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "seed stock")
	}
	return nil
}

// SetCount overwrites the count of an existing variant.
func (r *Repository) SetCount(ctx context.Context, v Variant, count int) (*models.StockRecord, error) {
	if count < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock count cannot be negative")
	}

	res := r.db.WithContext(ctx).
		Model(&models.StockRecord{}).
		Where("item_id = ? AND color_option = ? AND size_option = ?", v.ItemID, v.ColorOption, v.SizeOption).
		Update("count", count)
	if res.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "set stock count")
	}
	if res.RowsAffected == 0 {
		return nil, missing(v)
	}
	return &models.StockRecord{
		ItemID:      v.ItemID,
		ColorOption: v.ColorOption,
		SizeOption:  v.SizeOption,
		Count:       count,
	}, nil
}

func insufficient(v Variant, requested, available int) error {
	return pkgerrors.Wrap(pkgerrors.CodeInsufficientStock, ErrInsufficientStock, "not enough stock").
		WithDetails(Shortfall{Variant: v, Requested: requested, Available: available})
}

func missing(v Variant) error {
	return pkgerrors.Newf(pkgerrors.CodeInternal, "stock record missing for %s", v)
}
