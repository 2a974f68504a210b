package razorpaywebhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/exclusivemerch/store-backend/internal/orders"
	"github.com/exclusivemerch/store-backend/internal/stock"
	"github.com/exclusivemerch/store-backend/pkg/db"
	"github.com/exclusivemerch/store-backend/pkg/db/models"
	"github.com/exclusivemerch/store-backend/pkg/enums"
	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
	"github.com/exclusivemerch/store-backend/pkg/logger"
	"github.com/exclusivemerch/store-backend/pkg/metrics"
	"github.com/exclusivemerch/store-backend/pkg/outbox"
	"github.com/exclusivemerch/store-backend/pkg/outbox/payloads"
	"github.com/exclusivemerch/store-backend/pkg/razorpay"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockRefundReason is attached to refunds issued when confirmation ran out of stock.
const StockRefundReason = "stock ran out"

const systemActor = "razorpay-webhook"

var errStateChanged = errors.New("order state changed concurrently")

type refunder interface {
	Refund(ctx context.Context, paymentID string, req razorpay.RefundRequest) (*razorpay.Refund, error)
}

type ServiceParams struct {
	Orders            orders.Repository
	Stock             *stock.Repository
	TransactionRunner db.TxRunner
	Outbox            outbox.Emitter
	Gateway           refunder
	Metrics           *metrics.WebhookMetrics
	Logger            *logger.Logger
}

// Service applies gateway webhook events to the order state machine.
type Service struct {
	orders   orders.Repository
	stock    *stock.Repository
	txRunner db.TxRunner
	outbox   outbox.Emitter
	gateway  refunder
	metrics  *metrics.WebhookMetrics
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.Stock == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stock ledger required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gateway client required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		orders:   params.Orders,
		stock:    params.Stock,
		txRunner: params.TransactionRunner,
		outbox:   params.Outbox,
		gateway:  params.Gateway,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// HandleEvent applies one verified webhook event. A non-nil error always
// comes with OutcomeError.
func (s *Service) HandleEvent(ctx context.Context, event *razorpay.Event) (Outcome, error) {
	if event == nil {
		return OutcomeError, pkgerrors.New(pkgerrors.CodeValidation, "razorpay event required")
	}

	var (
		outcome Outcome
		err     error
	)
	switch event.Event {
	case razorpay.EventOrderPaid:
		outcome, err = s.handleOrderPaid(ctx, event)
	case razorpay.EventRefundProcessed:
		outcome, err = s.handleRefundProcessed(ctx, event)
	case razorpay.EventRefundFailed:
		outcome, err = s.handleRefundFailed(ctx, event)
	default:
		outcome = OutcomeIgnored
	}
	if err != nil {
		outcome = OutcomeError
	}
	s.metrics.Observe(event.Event, outcome.String())
	return outcome, err
}

func (s *Service) handleOrderPaid(ctx context.Context, event *razorpay.Event) (Outcome, error) {
	if event.Payload.Order == nil {
		return OutcomeIgnored, nil
	}
	gwOrder := event.Payload.Order.Entity
	if gwOrder.Receipt == "" || gwOrder.ID == "" {
		return OutcomeIgnored, nil
	}
	if gwOrder.Status != razorpay.OrderStatusPaid || gwOrder.AmountDue != 0 {
		return OutcomeError, pkgerrors.Newf(pkgerrors.CodeValidation,
			"order %s reported paid with status %q and amount due %d", gwOrder.ID, gwOrder.Status, gwOrder.AmountDue)
	}
	if event.Payload.Payment == nil || event.Payload.Payment.Entity.ID == "" {
		return OutcomeError, pkgerrors.Newf(pkgerrors.CodeValidation, "order %s paid without a payment entity", gwOrder.ID)
	}
	payment := event.Payload.Payment.Entity

	order, err := s.orders.FindByTokenAndGatewayID(ctx, gwOrder.Receipt, gwOrder.ID)
	if err != nil {
		return OutcomeError, lookupError(err, gwOrder.ID)
	}
	ctx = s.logg.WithOrderToken(ctx, order.OrderToken)

	outcome, err := s.applyPayment(ctx, order, payment)
	if errors.Is(err, errStateChanged) {
		// Another writer moved the order between our read and the guarded
		// update. Re-read once and apply the event to the new state.
		order, err = s.orders.FindByToken(ctx, order.OrderToken)
		if err != nil {
			return OutcomeError, lookupError(err, gwOrder.ID)
		}
		outcome, err = s.applyPayment(ctx, order, payment)
		if errors.Is(err, errStateChanged) {
			return s.unexpected(ctx, razorpay.EventOrderPaid, order), nil
		}
	}
	return outcome, err
}

func (s *Service) applyPayment(ctx context.Context, order *models.Order, payment razorpay.Payment) (Outcome, error) {
	state := order.State()
	switch {
	case state.Order == enums.OrderStatusUnconfirmed && state.Payment == enums.PaymentStatusPending:
		return s.confirm(ctx, order, payment)
	case state.Order == enums.OrderStatusCancelledByUser && state.Payment == enums.PaymentStatusPending:
		return s.acceptPaidAfterCancel(ctx, order, payment)
	case state.Order == enums.OrderStatusConfirmed && state.Payment == enums.PaymentStatusReceived:
		return OutcomeDuplicate, nil
	default:
		return s.unexpected(ctx, razorpay.EventOrderPaid, order), nil
	}
}

var awaitingPayment = orders.StatusGuard{
	Order:   enums.OrderStatusUnconfirmed,
	Payment: enums.PaymentStatusPending,
}

func (s *Service) confirm(ctx context.Context, order *models.Order, payment razorpay.Payment) (Outcome, error) {
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		ledger := s.stock.WithTx(tx)
		for _, line := range stock.LockOrder(order.Lines) {
			if err := ledger.Reserve(ctx, stock.LineVariant(line), line.Quantity); err != nil {
				return err
			}
		}

		update := orders.StatusUpdate{Order: enums.OrderStatusConfirmed, Payment: enums.PaymentStatusReceived}
		ok, err := s.orders.WithTx(tx).UpdateGuarded(ctx, order.ID, awaitingPayment, update)
		if err != nil {
			return err
		}
		if !ok {
			return errStateChanged
		}
		update.ApplyTo(order)

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:   enums.EventOrderConfirmed,
			AggregateID: order.ID,
			Actor:       outbox.SystemActor(systemActor),
			Data: payloads.OrderConfirmedEvent{
				OrderEvent: payloads.NewOrderEvent(*order),
				PaymentID:  payment.ID,
				Lines:      payloads.LinesOf(order.Lines),
			},
		})
	})
	switch {
	case err == nil:
		s.logg.Info(ctx, "order confirmed")
		return OutcomeConfirmed, nil
	case stock.IsInsufficientStock(err):
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "stock ran out at confirmation, refunding")
		return s.compensate(ctx, order, payment)
	case errors.Is(err, errStateChanged):
		return OutcomeError, err
	default:
		return OutcomeError, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "confirm order")
	}
}

// compensate cancels an order whose stock ran out after payment and refunds
// the captured amount.
func (s *Service) compensate(ctx context.Context, order *models.Order, payment razorpay.Payment) (Outcome, error) {
	amount := razorpay.FromPaise(payment.Amount)
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		update := orders.StatusUpdate{
			Order:   enums.OrderStatusCancelledInsufficientStock,
			Payment: enums.PaymentStatusRefundInitiated,
		}
		ok, err := s.orders.WithTx(tx).UpdateGuarded(ctx, order.ID, awaitingPayment, update)
		if err != nil {
			return err
		}
		if !ok {
			return errStateChanged
		}
		update.ApplyTo(order)

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:   enums.EventOrderStockCancelled,
			AggregateID: order.ID,
			Actor:       outbox.SystemActor(systemActor),
			Data: payloads.OrderStockCancelledEvent{
				OrderEvent:   payloads.NewOrderEvent(*order),
				PaymentID:    payment.ID,
				RefundAmount: amount,
				Reason:       StockRefundReason,
			},
		})
	})
	if errors.Is(err, errStateChanged) {
		return OutcomeError, err
	}
	if err != nil {
		return OutcomeError, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel order for stock")
	}

	refund, err := s.gateway.Refund(ctx, payment.ID, razorpay.RefundRequest{
		Amount:  payment.Amount,
		Speed:   razorpay.RefundSpeedOptimum,
		Receipt: order.OrderToken,
		Notes: map[string]string{
			"reason":      StockRefundReason,
			"order_token": order.OrderToken,
		},
	})
	if err != nil {
		s.logg.Alert(ctx, "refund request failed, manual refund required", err)
		if markErr := s.markRefundFailed(ctx, order, payment.ID, "", amount, err.Error()); markErr != nil {
			return OutcomeError, markErr
		}
		return OutcomeRefundFailed, nil
	}

	s.logg.Info(s.logg.WithField(ctx, "refund_id", refund.ID), "refund initiated")
	return OutcomeStockCancelled, nil
}

func (s *Service) acceptPaidAfterCancel(ctx context.Context, order *models.Order, payment razorpay.Payment) (Outcome, error) {
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		update := orders.StatusUpdate{Payment: enums.PaymentStatusReceived}
		guard := orders.StatusGuard{Order: enums.OrderStatusCancelledByUser, Payment: enums.PaymentStatusPending}
		ok, err := s.orders.WithTx(tx).UpdateGuarded(ctx, order.ID, guard, update)
		if err != nil {
			return err
		}
		if !ok {
			return errStateChanged
		}
		update.ApplyTo(order)

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:   enums.EventPaidAfterCancel,
			AggregateID: order.ID,
			Actor:       outbox.SystemActor(systemActor),
			Data: payloads.PaidAfterCancelEvent{
				OrderEvent: payloads.NewOrderEvent(*order),
				PaymentID:  payment.ID,
				Amount:     razorpay.FromPaise(payment.Amount),
			},
		})
	})
	if errors.Is(err, errStateChanged) {
		return OutcomeError, err
	}
	if err != nil {
		return OutcomeError, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment after cancel")
	}
	s.logg.Alert(ctx, "payment received for a cancelled order, manual review required",
		fmt.Errorf("payment %s captured after user cancellation", payment.ID))
	return OutcomePaidAfterCancel, nil
}

func (s *Service) handleRefundProcessed(ctx context.Context, event *razorpay.Event) (Outcome, error) {
	order, payment, err := s.orderForPayment(ctx, event)
	if err != nil {
		return OutcomeError, err
	}
	ctx = s.logg.WithOrderToken(ctx, order.OrderToken)

	state := order.State()
	var (
		guard  orders.StatusGuard
		manual bool
	)
	switch {
	case state.Order == enums.OrderStatusCancelledInsufficientStock && state.Payment == enums.PaymentStatusRefundInitiated:
		guard = orders.StatusGuard{Order: state.Order, Payment: state.Payment}
	case state.Payment == enums.PaymentStatusRefundFailed:
		guard = orders.StatusGuard{Payment: enums.PaymentStatusRefundFailed}
		manual = true
	case state.Payment == enums.PaymentStatusRefunded:
		return OutcomeDuplicate, nil
	default:
		return s.unexpected(ctx, razorpay.EventRefundProcessed, order), nil
	}

	refund := refundOf(event)
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		update := orders.StatusUpdate{Payment: enums.PaymentStatusRefunded}
		ok, err := s.orders.WithTx(tx).UpdateGuarded(ctx, order.ID, guard, update)
		if err != nil {
			return err
		}
		if !ok {
			return errStateChanged
		}
		update.ApplyTo(order)

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:   enums.EventRefundProcessed,
			AggregateID: order.ID,
			Actor:       outbox.SystemActor(systemActor),
			Data: payloads.RefundEvent{
				OrderEvent: payloads.NewOrderEvent(*order),
				RefundID:   refund.ID,
				PaymentID:  payment.ID,
				Amount:     razorpay.FromPaise(refund.Amount),
				Manual:     manual,
			},
		})
	})
	if errors.Is(err, errStateChanged) {
		return OutcomeError, err
	}
	if err != nil {
		return OutcomeError, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order refunded")
	}
	s.logg.Info(s.logg.WithField(ctx, "manual", manual), "refund processed")
	return OutcomeRefunded, nil
}

func (s *Service) handleRefundFailed(ctx context.Context, event *razorpay.Event) (Outcome, error) {
	order, payment, err := s.orderForPayment(ctx, event)
	if err != nil {
		return OutcomeError, err
	}
	ctx = s.logg.WithOrderToken(ctx, order.OrderToken)

	state := order.State()
	switch {
	case state.Order == enums.OrderStatusCancelledInsufficientStock && state.Payment == enums.PaymentStatusRefundInitiated:
	case state.Payment == enums.PaymentStatusRefundFailed:
		return OutcomeDuplicate, nil
	default:
		return s.unexpected(ctx, razorpay.EventRefundFailed, order), nil
	}

	refund := refundOf(event)
	if err := s.markRefundFailed(ctx, order, payment.ID, refund.ID, razorpay.FromPaise(refund.Amount), "gateway reported refund failure"); err != nil {
		return OutcomeError, err
	}
	s.logg.Alert(ctx, "refund failed, manual refund required", fmt.Errorf("refund %s failed for payment %s", refund.ID, payment.ID))
	return OutcomeRefundFailed, nil
}

func (s *Service) markRefundFailed(ctx context.Context, order *models.Order, paymentID, refundID string, amount decimal.Decimal, reason string) error {
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		update := orders.StatusUpdate{Payment: enums.PaymentStatusRefundFailed}
		guard := orders.StatusGuard{
			Order:   enums.OrderStatusCancelledInsufficientStock,
			Payment: enums.PaymentStatusRefundInitiated,
		}
		ok, err := s.orders.WithTx(tx).UpdateGuarded(ctx, order.ID, guard, update)
		if err != nil {
			return err
		}
		if !ok {
			return errStateChanged
		}
		update.ApplyTo(order)

		data := payloads.RefundEvent{
			OrderEvent: payloads.NewOrderEvent(*order),
			RefundID:   refundID,
			PaymentID:  paymentID,
			Amount:     amount,
			Reason:     reason,
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:   enums.EventRefundFailed,
			AggregateID: order.ID,
			Actor:       outbox.SystemActor(systemActor),
			Data:        data,
		})
	})
	if errors.Is(err, errStateChanged) {
		return err
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark refund failed")
	}
	return nil
}

// orderForPayment resolves the order of a refund event through the payment's gateway order id.
func (s *Service) orderForPayment(ctx context.Context, event *razorpay.Event) (*models.Order, razorpay.Payment, error) {
	if event.Payload.Payment == nil || event.Payload.Payment.Entity.OrderID == "" {
		return nil, razorpay.Payment{}, pkgerrors.Newf(pkgerrors.CodeValidation, "%s without a payment order id", event.Event)
	}
	payment := event.Payload.Payment.Entity
	order, err := s.orders.FindByGatewayID(ctx, payment.OrderID)
	if err != nil {
		return nil, payment, lookupError(err, payment.OrderID)
	}
	return order, payment, nil
}

func (s *Service) unexpected(ctx context.Context, event string, order *models.Order) Outcome {
	fields := map[string]any{
		"event":           event,
		"order_status":    order.OrderStatus,
		"payment_status":  order.PaymentStatus,
		"shipping_status": order.ShippingStatus,
	}
	s.logg.Error(s.logg.WithFields(ctx, fields), "unexpected webhook for order state",
		fmt.Errorf("%s not applicable to order %s", event, order.OrderToken))
	return OutcomeUnexpected
}

func refundOf(event *razorpay.Event) razorpay.Refund {
	if event.Payload.Refund == nil {
		return razorpay.Refund{}
	}
	return event.Payload.Refund.Entity
}

func lookupError(err error, gatewayOrderID string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "no order for gateway order %s", gatewayOrderID)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
}
