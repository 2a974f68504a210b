package address

import (
	"context"

	"github.com/exclusivemerch/store-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists the single saved address per user.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByUser returns gorm.ErrRecordNotFound when the user has not saved one yet.
func (r *Repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Address, error) {
	var addr models.Address
	if err := r.db.WithContext(ctx).First(&addr, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &addr, nil
}

// Upsert replaces the saved address.
func (r *Repository) Upsert(ctx context.Context, addr *models.Address) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"house", "area", "city", "state", "zipcode", "updated_at"}),
		}).
		Create(addr).Error
}
