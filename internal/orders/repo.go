package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/exclusivemerch/store-backend/pkg/db/models"
	"github.com/exclusivemerch/store-backend/pkg/enums"
	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
	"github.com/exclusivemerch/store-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order together with its lines and charges.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) withDetails(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Charges", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") })
}

func (r *repository) findOne(ctx context.Context, query string, args ...any) (*models.Order, error) {
	var order models.Order
	if err := r.withDetails(ctx).Where(query, args...).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByToken(ctx context.Context, token string) (*models.Order, error) {
	return r.findOne(ctx, "order_token = ?", token)
}

func (r *repository) FindByTokenForUser(ctx context.Context, token string, userID uuid.UUID) (*models.Order, error) {
	return r.findOne(ctx, "order_token = ? AND user_id = ?", token, userID)
}

// FindByTokenAndGatewayID matches on both identifiers so a receipt can't be
// paired with another order's gateway id.
func (r *repository) FindByTokenAndGatewayID(ctx context.Context, token, gatewayOrderID string) (*models.Order, error) {
	return r.findOne(ctx, "order_token = ? AND gateway_order_id = ?", token, gatewayOrderID)
}

func (r *repository) FindByGatewayID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	return r.findOne(ctx, "gateway_order_id = ?", gatewayOrderID)
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	err := r.withDetails(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListAwaitingPayment(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND order_status = ? AND payment_status = ?",
			userID, enums.OrderStatusUnconfirmed, enums.PaymentStatusPending).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// ListPendingBefore returns unpaid, unshipped orders created at or before cutoff, oldest first.
func (r *repository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	q := r.withDetails(ctx).
		Where("payment_status = ? AND shipping_status = ? AND created_at <= ?",
			enums.PaymentStatusPending, enums.ShippingStatusNotShipped, cutoff).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.Order
	err := q.Find(&rows).Error
	return rows, err
}

// ListConfirmed pages through confirmed orders, newest first. The returned
// cursor is empty on the last page.
func (r *repository) ListConfirmed(ctx context.Context, params pagination.Params) ([]models.Order, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	q := r.withDetails(ctx).Where("order_status = ?", enums.OrderStatusConfirmed)
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	if err := q.Order("created_at DESC").Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error; err != nil {
		return nil, "", err
	}

	rows, next := pagination.Trim(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return rows, next, nil
}

// UpdateGuarded applies update only while the row still matches guard and
// reports whether it did. A partial guard is pinned to the row's current
// state first so the resulting state can be validated before it is written.
func (r *repository) UpdateGuarded(ctx context.Context, id uuid.UUID, guard StatusGuard, update StatusUpdate) (bool, error) {
	current, ok := guard.State()
	if !ok {
		var row models.Order
		err := r.db.WithContext(ctx).
			Select("order_status", "payment_status", "shipping_status").
			Where("id = ?", id).
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		current = row.State()
		if !guard.Matches(current) {
			return false, nil
		}
		guard = GuardFor(current)
	}
	next := update.Apply(current)
	if err := next.Validate(); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, fmt.Sprintf("illegal transition %s -> %s", current, next))
	}

	values := map[string]any{"updated_at": time.Now().UTC()}
	if update.Order != "" {
		values["order_status"] = update.Order
	}
	if update.Payment != "" {
		values["payment_status"] = update.Payment
	}
	if update.Shipping != "" {
		values["shipping_status"] = update.Shipping
	}
	if update.TrackingID != nil {
		values["tracking_id"] = *update.TrackingID
	}

	q := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id)
	if guard.Order != "" {
		q = q.Where("order_status = ?", guard.Order)
	}
	if guard.Payment != "" {
		q = q.Where("payment_status = ?", guard.Payment)
	}
	if guard.Shipping != "" {
		q = q.Where("shipping_status = ?", guard.Shipping)
	}

	res := q.Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
