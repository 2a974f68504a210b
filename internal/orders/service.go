package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/exclusivemerch/store-backend/pkg/db"
	"github.com/exclusivemerch/store-backend/pkg/db/models"
	"github.com/exclusivemerch/store-backend/pkg/enums"
	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
	"github.com/exclusivemerch/store-backend/pkg/invoice"
	"github.com/exclusivemerch/store-backend/pkg/logger"
	"github.com/exclusivemerch/store-backend/pkg/outbox"
	"github.com/exclusivemerch/store-backend/pkg/outbox/payloads"
	"github.com/exclusivemerch/store-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const cancelRejectedMessage = "Order cannot be cancelled for current order, payment and shipping status"

// Service exposes the user and admin order operations.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error)
	Get(ctx context.Context, userID uuid.UUID, token string) (*DetailDTO, error)
	Cancel(ctx context.Context, userID uuid.UUID, token string) (*OrderDTO, error)
	Invoice(ctx context.Context, userID uuid.UUID, token string) ([]byte, error)
	ListConfirmed(ctx context.Context, params pagination.Params) (*ConfirmedOrderList, error)
	UpdateShipping(ctx context.Context, token string, input UpdateShippingInput) (*OrderDTO, error)
}

// StateConflictDetails is attached to errors for transitions the order is not eligible for.
type StateConflictDetails struct {
	OrderStatus    enums.OrderStatus    `json:"order_status"`
	PaymentStatus  enums.PaymentStatus  `json:"payment_status"`
	ShippingStatus enums.ShippingStatus `json:"shipping_status"`
}

// ServiceParams wires the order service.
type ServiceParams struct {
	Repo     Repository
	Tx       db.TxRunner
	Outbox   outbox.Emitter
	Gateway  gatewayReader
	Users    userLoader
	Items    itemLookup
	Invoices invoiceRenderer
	Currency string
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	tx       db.TxRunner
	outbox   outbox.Emitter
	gateway  gatewayReader
	users    userLoader
	items    itemLookup
	invoices invoiceRenderer
	currency string
	logg     *logger.Logger
}

// NewService builds the order service with the required dependencies.
func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if p.Gateway == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if p.Users == nil || p.Items == nil || p.Invoices == nil {
		return nil, fmt.Errorf("invoice dependencies required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     p.Repo,
		tx:       p.Tx,
		outbox:   p.Outbox,
		gateway:  p.Gateway,
		users:    p.Users,
		items:    p.Items,
		invoices: p.Invoices,
		currency: p.Currency,
		logg:     p.Logger,
	}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return fromModels(rows), nil
}

// Get returns the order with the gateway's order and payments. A gateway
// failure degrades to the local view instead of failing the request.
func (s *service) Get(ctx context.Context, userID uuid.UUID, token string) (*DetailDTO, error) {
	order, err := s.loadForUser(ctx, userID, token)
	if err != nil {
		return nil, err
	}

	detail := &DetailDTO{Order: FromModel(*order)}
	gwOrder, err := s.gateway.FetchOrder(ctx, order.GatewayOrderID)
	if err == nil {
		detail.GatewayOrder = gwOrder
		detail.GatewayPayments, err = s.gateway.FetchOrderPayments(ctx, order.GatewayOrderID)
	}
	if err != nil {
		warnCtx := s.logg.WithOrderToken(ctx, order.OrderToken)
		warnCtx = s.logg.WithField(warnCtx, "error", err.Error())
		s.logg.Warn(warnCtx, "gateway lookup failed, returning local order")
		detail.GatewayOrder = nil
		detail.GatewayPayments = nil
		detail.GatewayUnavailable = true
	}
	return detail, nil
}

// Cancel moves an unpaid order to cancelled_by_user.
func (s *service) Cancel(ctx context.Context, userID uuid.UUID, token string) (*OrderDTO, error) {
	var result *OrderDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadWith(ctx, repo, userID, token)
		if err != nil {
			return err
		}
		if !order.State().IsUserCancellable() {
			return stateConflict(*order, cancelRejectedMessage)
		}

		update := StatusUpdate{Order: enums.OrderStatusCancelledByUser}
		ok, err := repo.UpdateGuarded(ctx, order.ID, GuardFor(order.State()), update)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel order")
		}
		if !ok {
			current, err := repo.FindByToken(ctx, order.OrderToken)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
			}
			return stateConflict(*current, cancelRejectedMessage)
		}
		update.ApplyTo(order)

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:   enums.EventOrderCancelled,
			AggregateID: order.ID,
			Actor:       &outbox.ActorRef{UserID: userID, Role: enums.RoleUser},
			Data: payloads.OrderCancelledEvent{
				OrderEvent:  payloads.NewOrderEvent(*order),
				CancelledAt: time.Now().UTC(),
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue order event")
		}

		dto := FromModel(*order)
		result = &dto
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithOrderToken(ctx, token), "order cancelled by user")
	return result, nil
}

// Invoice renders the PDF invoice of a confirmed order.
func (s *service) Invoice(ctx context.Context, userID uuid.UUID, token string) ([]byte, error) {
	order, err := s.loadForUser(ctx, userID, token)
	if err != nil {
		return nil, err
	}
	if order.OrderStatus != enums.OrderStatusConfirmed {
		return nil, stateConflict(*order, "invoice is only available for confirmed orders")
	}

	user, err := s.users.FindByID(ctx, order.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	ids := make([]int64, 0, len(order.Lines))
	for _, l := range order.Lines {
		ids = append(ids, l.ItemID)
	}
	items, err := s.items.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load items")
	}

	inv := invoice.Invoice{
		Number:        order.OrderToken,
		IssuedAt:      order.UpdatedAt,
		CustomerName:  user.Name,
		CustomerEmail: user.Email,
		Address:       strings.Join(strings.Fields(order.Address), " "),
		Currency:      s.currency,
		Total:         order.TotalAmount,
	}
	for _, l := range order.Lines {
		name := fmt.Sprintf("Item %d", l.ItemID)
		if item, ok := items[l.ItemID]; ok {
			name = item.Name
		}
		inv.Lines = append(inv.Lines, invoice.Line{
			Name:      name,
			Color:     l.ColorOption,
			Size:      l.SizeOption,
			Quantity:  l.Quantity,
			UnitPrice: l.Price,
		})
	}
	for _, c := range order.Charges {
		inv.Charges = append(inv.Charges, invoice.Charge{Label: c.ChargeType.String(), Amount: c.Amount})
	}

	out, err := s.invoices.Render(inv)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render invoice")
	}
	return out, nil
}

func (s *service) ListConfirmed(ctx context.Context, params pagination.Params) (*ConfirmedOrderList, error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListConfirmed(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list confirmed orders")
	}
	return &ConfirmedOrderList{Orders: fromModels(rows), NextCursor: next}, nil
}

// UpdateShipping lets an operator move a paid, confirmed order through fulfilment.
func (s *service) UpdateShipping(ctx context.Context, token string, input UpdateShippingInput) (*OrderDTO, error) {
	target, err := enums.ParseShippingStatus(input.ShippingStatus)
	if err != nil || !target.IsAdminSettable() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid shipping status %q", input.ShippingStatus)
	}
	var tracking *string
	if input.TrackingID != nil {
		trimmed := strings.TrimSpace(*input.TrackingID)
		if trimmed != "" {
			tracking = &trimmed
		}
	}

	var result *OrderDTO
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByToken(ctx, token)
		if err != nil {
			return notFoundOr(err)
		}
		if !order.State().IsFulfillable() {
			return stateConflict(*order, "shipping can only be updated for confirmed and paid orders")
		}

		previous := order.ShippingStatus
		update := StatusUpdate{Shipping: target, TrackingID: tracking}
		ok, err := repo.UpdateGuarded(ctx, order.ID, GuardFor(order.State()), update)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update shipping")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently, retry")
		}
		update.ApplyTo(order)

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:   enums.EventShippingUpdated,
			AggregateID: order.ID,
			Actor:       &outbox.ActorRef{Role: enums.RoleAdmin},
			Data: payloads.ShippingUpdatedEvent{
				OrderEvent:     payloads.NewOrderEvent(*order),
				PreviousStatus: previous,
				TrackingID:     order.TrackingID,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue order event")
		}

		dto := FromModel(*order)
		result = &dto
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) loadForUser(ctx context.Context, userID uuid.UUID, token string) (*models.Order, error) {
	return s.loadWith(ctx, s.repo, userID, token)
}

func (s *service) loadWith(ctx context.Context, repo Repository, userID uuid.UUID, token string) (*models.Order, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order token required")
	}
	order, err := repo.FindByTokenForUser(ctx, token, userID)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return order, nil
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
}

func stateConflict(order models.Order, msg string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, msg).WithDetails(StateConflictDetails{
		OrderStatus:    order.OrderStatus,
		PaymentStatus:  order.PaymentStatus,
		ShippingStatus: order.ShippingStatus,
	})
}
