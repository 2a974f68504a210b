package catalog

import (
	"context"
	"errors"

	"github.com/exclusivemerch/store-backend/pkg/db/models"
	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
	"gorm.io/gorm"
)

// Repository persists catalog items.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts the item and fills its generated id.
func (r *Repository) Create(ctx context.Context, item *models.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// FindByID loads an item, including soft-deleted ones.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindActiveByID loads an item that has not been deleted.
func (r *Repository) FindActiveByID(ctx context.Context, id int64) (*models.Item, error) {
	item, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Deleted {
		return nil, gorm.ErrRecordNotFound
	}
	return item, nil
}

// FindByIDs returns the items keyed by id, deleted ones included.
func (r *Repository) FindByIDs(ctx context.Context, ids []int64) (map[int64]models.Item, error) {
	out := make(map[int64]models.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Item
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// ListActive returns every item that has not been deleted, newest first.
func (r *Repository) ListActive(ctx context.Context) ([]models.Item, error) {
	var rows []models.Item
	err := r.db.WithContext(ctx).
		Where("deleted = ?", false).
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

// SoftDelete flags the item as deleted. Deleting twice is not an error.
func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ?", id).
		Update("deleted", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}
