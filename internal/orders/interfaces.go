package orders

import (
	"context"
	"time"

	"github.com/exclusivemerch/store-backend/pkg/db/models"
	"github.com/exclusivemerch/store-backend/pkg/enums"
	"github.com/exclusivemerch/store-backend/pkg/invoice"
	"github.com/exclusivemerch/store-backend/pkg/pagination"
	"github.com/exclusivemerch/store-backend/pkg/razorpay"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for orders, their lines and charges.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByToken(ctx context.Context, token string) (*models.Order, error)
	FindByTokenForUser(ctx context.Context, token string, userID uuid.UUID) (*models.Order, error)
	FindByTokenAndGatewayID(ctx context.Context, token, gatewayOrderID string) (*models.Order, error)
	FindByGatewayID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	ListAwaitingPayment(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	ListConfirmed(ctx context.Context, params pagination.Params) ([]models.Order, string, error)
	UpdateGuarded(ctx context.Context, id uuid.UUID, guard StatusGuard, update StatusUpdate) (bool, error)
}

// StatusGuard restricts an update to rows still in the expected state.
// Empty fields are not checked.
type StatusGuard struct {
	Order    enums.OrderStatus
	Payment  enums.PaymentStatus
	Shipping enums.ShippingStatus
}

// GuardFor pins all three axes to the current state.
func GuardFor(s enums.OrderState) StatusGuard {
	return StatusGuard{Order: s.Order, Payment: s.Payment, Shipping: s.Shipping}
}

// State returns the state the guard pins and whether it pins all three axes.
func (g StatusGuard) State() (enums.OrderState, bool) {
	s := enums.OrderState{Order: g.Order, Payment: g.Payment, Shipping: g.Shipping}
	return s, g.Order != "" && g.Payment != "" && g.Shipping != ""
}

// Matches reports whether s satisfies every axis the guard sets.
func (g StatusGuard) Matches(s enums.OrderState) bool {
	return (g.Order == "" || g.Order == s.Order) &&
		(g.Payment == "" || g.Payment == s.Payment) &&
		(g.Shipping == "" || g.Shipping == s.Shipping)
}

// StatusUpdate lists the columns a transition writes. Empty fields are left unchanged.
type StatusUpdate struct {
	Order      enums.OrderStatus
	Payment    enums.PaymentStatus
	Shipping   enums.ShippingStatus
	TrackingID *string
}

// Apply returns the state an order in s ends up in after the update.
func (u StatusUpdate) Apply(s enums.OrderState) enums.OrderState {
	if u.Order != "" {
		s.Order = u.Order
	}
	if u.Payment != "" {
		s.Payment = u.Payment
	}
	if u.Shipping != "" {
		s.Shipping = u.Shipping
	}
	return s
}

// ApplyTo copies the update onto an already loaded order.
func (u StatusUpdate) ApplyTo(order *models.Order) {
	next := u.Apply(order.State())
	order.OrderStatus = next.Order
	order.PaymentStatus = next.Payment
	order.ShippingStatus = next.Shipping
	if u.TrackingID != nil {
		order.TrackingID = u.TrackingID
	}
}

type gatewayReader interface {
	FetchOrder(ctx context.Context, orderID string) (*razorpay.Order, error)
	FetchOrderPayments(ctx context.Context, orderID string) ([]razorpay.Payment, error)
}

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type itemLookup interface {
	FindByIDs(ctx context.Context, ids []int64) (map[int64]models.Item, error)
}

type invoiceRenderer interface {
	Render(inv invoice.Invoice) ([]byte, error)
}
