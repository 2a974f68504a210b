package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/exclusivemerch/store-backend/internal/cart"
	"github.com/exclusivemerch/store-backend/internal/orders"
	"github.com/exclusivemerch/store-backend/internal/stock"
	"github.com/exclusivemerch/store-backend/pkg/db"
	"github.com/exclusivemerch/store-backend/pkg/db/models"
	"github.com/exclusivemerch/store-backend/pkg/enums"
	"github.com/exclusivemerch/store-backend/pkg/logger"
	"github.com/exclusivemerch/store-backend/pkg/outbox"
	"github.com/exclusivemerch/store-backend/pkg/outbox/payloads"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const (
	pendingOrderReaperName = "pending-order-reaper"
	defaultMaxPending      = 30 * time.Minute
	defaultReaperBatch     = 200
)

var errOrderMoved = errors.New("order left pending state")

// PendingOrderReaperParams configure the sweep of unpaid orders.
type PendingOrderReaperParams struct {
	Logger     *logger.Logger
	DB         db.TxRunner
	Orders     orders.Repository
	Stock      *stock.Repository
	Cart       cart.CartRepository
	Outbox     outbox.Emitter
	MaxPending time.Duration
	BatchSize  int
}

// NewPendingOrderReaper builds the job that times out orders the gateway never confirmed.
func NewPendingOrderReaper(params PendingOrderReaperParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if params.Cart == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	maxPending := params.MaxPending
	if maxPending <= 0 {
		maxPending = defaultMaxPending
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReaperBatch
	}
	return &pendingOrderReaper{
		logg:       params.Logger,
		db:         params.DB,
		orders:     params.Orders,
		stock:      params.Stock,
		cart:       params.Cart,
		outbox:     params.Outbox,
		maxPending: maxPending,
		batch:      batch,
		now:        time.Now,
	}, nil
}

type pendingOrderReaper struct {
	logg       *logger.Logger
	db         db.TxRunner
	orders     orders.Repository
	stock      *stock.Repository
	cart       cart.CartRepository
	outbox     outbox.Emitter
	maxPending time.Duration
	batch      int
	now        func() time.Time
}

func (j *pendingOrderReaper) Name() string { return pendingOrderReaperName }

// Run expires every stale order in the batch. A failing order is logged and
// reported in the combined error; the rest of the sweep continues.
func (j *pendingOrderReaper) Run(ctx context.Context) (int, error) {
	now := j.now().UTC()
	stale, err := j.orders.ListPendingBefore(ctx, now.Add(-j.maxPending), j.batch)
	if err != nil {
		return 0, fmt.Errorf("list pending orders: %w", err)
	}

	var (
		expired int
		errs    error
	)
	for i := range stale {
		order := stale[i]
		orderCtx := j.logg.WithOrderToken(ctx, order.OrderToken)
		err := j.expire(orderCtx, &order, now)
		switch {
		case err == nil:
			expired++
			j.logg.Info(orderCtx, "pending order timed out")
		case errors.Is(err, errOrderMoved):
			j.logg.Info(orderCtx, "order changed during sweep; skipped")
		default:
			j.logg.Error(orderCtx, "failed to expire pending order", err)
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.OrderToken, err))
		}
	}
	return expired, errs
}

var pendingUnshipped = orders.StatusGuard{
	Payment:  enums.PaymentStatusPending,
	Shipping: enums.ShippingStatusNotShipped,
}

func (j *pendingOrderReaper) expire(ctx context.Context, order *models.Order, now time.Time) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		update := orders.StatusUpdate{
			Payment:  enums.PaymentStatusTimeout,
			Shipping: enums.ShippingStatusCancelled,
		}
		ok, err := j.orders.WithTx(tx).UpdateGuarded(ctx, order.ID, pendingUnshipped, update)
		if err != nil {
			return err
		}
		if !ok {
			return errOrderMoved
		}
		update.ApplyTo(order)

		ledger := j.stock.WithTx(tx)
		cartRepo := j.cart.WithTx(tx)
		for _, line := range stock.LockOrder(order.Lines) {
			if err := ledger.Release(ctx, stock.LineVariant(line), line.Quantity); err != nil {
				return err
			}
			if err := cartRepo.Upsert(ctx, &models.CartEntry{
				UserID:      order.UserID,
				ItemID:      line.ItemID,
				Quantity:    line.Quantity,
				ColorOption: line.ColorOption,
				SizeOption:  line.SizeOption,
				Price:       line.Price,
			}); err != nil {
				return fmt.Errorf("restore cart entry: %w", err)
			}
		}

		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:   enums.EventOrderExpired,
			AggregateID: order.ID,
			Actor:       outbox.SystemActor(pendingOrderReaperName),
			Data: payloads.OrderExpiredEvent{
				OrderEvent: payloads.NewOrderEvent(*order),
				ExpiredAt:  now,
				PendingFor: now.Sub(order.CreatedAt).Round(time.Second).String(),
				Lines:      payloads.LinesOf(order.Lines),
			},
		})
	})
}
