package cart

import (
	"context"

	"github.com/exclusivemerch/store-backend/internal/stock"
	"github.com/exclusivemerch/store-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartEntry, error)
	Upsert(ctx context.Context, entry *models.CartEntry) error
	Delete(ctx context.Context, userID uuid.UUID, itemID int64) (bool, error)
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteVariants(ctx context.Context, userID uuid.UUID, variants []stock.Variant) (int64, error)
}

type itemLoader interface {
	FindActiveByID(ctx context.Context, id int64) (*models.Item, error)
}

type stockReader interface {
	Get(ctx context.Context, v stock.Variant) (*models.StockRecord, error)
}

// PendingOrderLister returns the user's orders still waiting for payment.
type PendingOrderLister interface {
	ListAwaitingPayment(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
}
