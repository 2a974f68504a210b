package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/exclusivemerch/store-backend/internal/cart"
	"github.com/exclusivemerch/store-backend/internal/checkout/helpers"
	"github.com/exclusivemerch/store-backend/internal/orders"
	"github.com/exclusivemerch/store-backend/internal/stock"
	"github.com/exclusivemerch/store-backend/pkg/config"
	"github.com/exclusivemerch/store-backend/pkg/db"
	"github.com/exclusivemerch/store-backend/pkg/db/models"
	"github.com/exclusivemerch/store-backend/pkg/enums"
	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
	"github.com/exclusivemerch/store-backend/pkg/logger"
	"github.com/exclusivemerch/store-backend/pkg/outbox"
	"github.com/exclusivemerch/store-backend/pkg/outbox/payloads"
	"github.com/exclusivemerch/store-backend/pkg/razorpay"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderTokenPrefix marks receipts created by this store.
const OrderTokenPrefix = "exc_"

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type addressLoader interface {
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.Address, error)
}

type stockReader interface {
	Find(ctx context.Context, variants []stock.Variant) (map[stock.Variant]models.StockRecord, error)
}

type orderCreator interface {
	CreateOrder(ctx context.Context, req razorpay.CreateOrderRequest) (*razorpay.Order, error)
}

// Service turns a user's cart into an unconfirmed order backed by a gateway order.
type Service interface {
	Checkout(ctx context.Context, userID uuid.UUID) (*models.Order, error)
}

// ServiceParams wires the checkout service.
type ServiceParams struct {
	Tx                db.TxRunner
	Users             userLoader
	Addresses         addressLoader
	Cart              cart.CartRepository
	Stock             stockReader
	Orders            orders.Repository
	Gateway           orderCreator
	Outbox            outbox.Emitter
	Config            config.CheckoutConfig
	TransferAccountID string
	Logger            *logger.Logger
}

type service struct {
	tx              db.TxRunner
	users           userLoader
	addresses       addressLoader
	cart            cart.CartRepository
	stock           stockReader
	orders          orders.Repository
	gateway         orderCreator
	outbox          outbox.Emitter
	cfg             config.CheckoutConfig
	transferAccount string
	logg            *logger.Logger
	newToken        func() string
}

// NewService builds the checkout service.
func NewService(p ServiceParams) (Service, error) {
	if p.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if p.Users == nil || p.Addresses == nil {
		return nil, fmt.Errorf("user and address loaders required")
	}
	if p.Cart == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if p.Stock == nil {
		return nil, fmt.Errorf("stock reader required")
	}
	if p.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Gateway == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:              p.Tx,
		users:           p.Users,
		addresses:       p.Addresses,
		cart:            p.Cart,
		stock:           p.Stock,
		orders:          p.Orders,
		gateway:         p.Gateway,
		outbox:          p.Outbox,
		cfg:             p.Config,
		transferAccount: p.TransferAccountID,
		logg:            p.Logger,
		newToken:        func() string { return OrderTokenPrefix + uuid.NewString() },
	}, nil
}

func (s *service) Checkout(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	addr, err := s.addresses.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Add address first")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load address")
	}

	entries, err := s.cart.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if err := helpers.ValidateCartItems(entries); err != nil {
		return nil, err
	}

	records, err := s.stock.Find(ctx, helpers.CartVariants(entries))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load stock")
	}
	if err := helpers.ValidateStock(entries, records); err != nil {
		return nil, err
	}

	totals := helpers.ComputeTotals(entries, s.cfg)
	if !totals.ItemsAmount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Order amount cannot be zero")
	}

	token := s.newToken()
	logCtx := s.logg.WithOrderToken(s.logg.WithUserID(ctx, userID.String()), token)

	req := razorpay.CreateOrderRequest{
		Amount:   razorpay.ToPaise(totals.Total),
		Currency: s.cfg.Currency,
		Receipt:  token,
		Notes: map[string]string{
			"order_token": token,
			"user_id":     userID.String(),
			"user_email":  user.Email,
		},
	}
	if s.transferAccount != "" {
		req.Transfers = []razorpay.Transfer{{
			Account:  s.transferAccount,
			Amount:   razorpay.ToPaise(helpers.TransferAmount(totals.Total, s.cfg)),
			Currency: s.cfg.Currency,
		}}
	}

	gwOrder, err := s.gateway.CreateOrder(ctx, req)
	if err != nil {
		s.logg.Error(logCtx, "gateway order creation failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "Error While creating Razorpay Order")
	}

	order := &models.Order{
		OrderToken:     token,
		GatewayOrderID: gwOrder.ID,
		UserID:         userID,
		Address:        addr.Format(),
		TotalAmount:    totals.Total,
		OrderStatus:    enums.OrderStatusUnconfirmed,
		PaymentStatus:  enums.PaymentStatusPending,
		ShippingStatus: enums.ShippingStatusNotShipped,
		Lines:          totals.Lines,
		Charges:        totals.Charges,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}
		if _, err := s.cart.WithTx(tx).DeleteVariants(ctx, userID, helpers.CartVariants(entries)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:   enums.EventOrderCreated,
			AggregateID: order.ID,
			Actor:       &outbox.ActorRef{UserID: userID, Role: user.Role},
			Data: payloads.OrderCreatedEvent{
				OrderEvent: payloads.NewOrderEvent(*order),
				Lines:      payloads.LinesOf(order.Lines),
				Charges:    payloads.ChargesOf(order.Charges),
			},
		})
	})
	if err != nil {
		s.logg.Error(logCtx, "persisting checkout failed", err)
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue order event")
	}

	s.logg.Info(s.logg.WithField(logCtx, "gateway_order_id", gwOrder.ID), "order created")
	return order, nil
}
