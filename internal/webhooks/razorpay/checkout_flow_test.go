package razorpaywebhook

import (
	"context"
	"io"
	"testing"

	"github.com/exclusivemerch/store-backend/internal/address"
	"github.com/exclusivemerch/store-backend/internal/cart"
	"github.com/exclusivemerch/store-backend/internal/checkout"
	"github.com/exclusivemerch/store-backend/internal/orders"
	"github.com/exclusivemerch/store-backend/internal/stock"
	"github.com/exclusivemerch/store-backend/internal/testutil"
	"github.com/exclusivemerch/store-backend/internal/users"
	"github.com/exclusivemerch/store-backend/pkg/config"
	"github.com/exclusivemerch/store-backend/pkg/db"
	"github.com/exclusivemerch/store-backend/pkg/db/models"
	"github.com/exclusivemerch/store-backend/pkg/enums"
	"github.com/exclusivemerch/store-backend/pkg/logger"
	"github.com/exclusivemerch/store-backend/pkg/outbox"
	"github.com/exclusivemerch/store-backend/pkg/razorpay"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type gatewayStub struct {
	stubRefunder
	created int
}

func (g *gatewayStub) CreateOrder(_ context.Context, req razorpay.CreateOrderRequest) (*razorpay.Order, error) {
	g.created++
	return &razorpay.Order{ID: "order_flow", Receipt: req.Receipt, Amount: req.Amount, Currency: req.Currency, Status: "created"}, nil
}

var redMedium = stock.Variant{ItemID: 5, ColorOption: "Red", SizeOption: "M"}

// checkoutThenPay places a cart of two Red/M shirts of item 5 through checkout
// and delivers the matching order.paid event.
func checkoutThenPay(t *testing.T, stockCount int) (*gorm.DB, *gatewayStub, *models.Order, Outcome) {
	t.Helper()
	ctx := context.Background()
	conn := testutil.OpenSQLite(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	user := models.User{Email: "ravi@example.com", Name: "Ravi", PasswordHash: "x"}
	require.NoError(t, conn.Create(&user).Error)
	require.NoError(t, conn.Create(&models.Address{
		UserID: user.ID, House: "4 Park Street", Area: "Park Circus", City: "Kolkata", State: "West Bengal", Zipcode: "700017",
	}).Error)
	item := models.Item{
		ID:           5,
		Name:         "Tour Tee",
		Price:        decimal.RequireFromString("249.50"),
		ColorOptions: pq.StringArray{"Red"},
		SizeOptions:  pq.StringArray{"M"},
	}
	require.NoError(t, conn.Create(&item).Error)
	require.NoError(t, conn.Create(&models.StockRecord{ItemID: 5, ColorOption: "Red", SizeOption: "M", Count: stockCount}).Error)
	require.NoError(t, conn.Create(&models.CartEntry{
		UserID: user.ID, ItemID: 5, Quantity: 2, ColorOption: "Red", SizeOption: "M", Price: item.Price,
	}).Error)

	gw := &gatewayStub{}
	tx := db.NewFromGorm(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)
	ordersRepo := orders.NewRepository(conn)
	ledger := stock.NewRepository(conn)

	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Tx:        tx,
		Users:     users.NewRepository(conn),
		Addresses: address.NewRepository(conn),
		Cart:      cart.NewRepository(conn),
		Stock:     ledger,
		Orders:    ordersRepo,
		Gateway:   gw,
		Outbox:    emitter,
		Config: config.CheckoutConfig{
			Currency:              "INR",
			DeliveryCharge:        decimal.RequireFromString("50"),
			FreeDeliveryThreshold: decimal.RequireFromString("500"),
			GatewayFeePercent:     decimal.RequireFromString("2"),
			TransferFeePercent:    decimal.RequireFromString("0.25"),
			TaxPercent:            decimal.RequireFromString("18"),
		},
		Logger: logg,
	})
	require.NoError(t, err)
	webhookSvc, err := NewService(ServiceParams{
		Orders:            ordersRepo,
		Stock:             ledger,
		TransactionRunner: tx,
		Outbox:            emitter,
		Gateway:           gw,
		Logger:            logg,
	})
	require.NoError(t, err)

	order, err := checkoutSvc.Checkout(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 1, gw.created)
	available, err := ledger.Available(ctx, redMedium)
	require.NoError(t, err)
	require.Equal(t, stockCount, available, "checkout must not reserve stock")

	amount := razorpay.ToPaise(order.TotalAmount)
	outcome, err := webhookSvc.HandleEvent(ctx, &razorpay.Event{
		Event: razorpay.EventOrderPaid,
		Payload: razorpay.EventPayload{
			Order: &razorpay.OrderEnvelope{Entity: razorpay.Order{
				ID: order.GatewayOrderID, Receipt: order.OrderToken, Status: "paid", Amount: amount, AmountPaid: amount,
			}},
			Payment: &razorpay.PaymentEnvelope{Entity: razorpay.Payment{
				ID: "pay_flow", OrderID: order.GatewayOrderID, Amount: amount, Status: "captured",
			}},
		},
	})
	require.NoError(t, err)

	got, err := ordersRepo.FindByToken(ctx, order.OrderToken)
	require.NoError(t, err)
	return conn, gw, got, outcome
}

func TestCheckoutThenPaymentWithEnoughStock(t *testing.T) {
	conn, gw, order, outcome := checkoutThenPay(t, 2)

	assert.Equal(t, OutcomeConfirmed, outcome)
	assert.Equal(t, state(enums.OrderStatusConfirmed, enums.PaymentStatusReceived, enums.ShippingStatusNotShipped), order.State())
	available, err := stock.NewRepository(conn).Available(context.Background(), redMedium)
	require.NoError(t, err)
	assert.Equal(t, 0, available)
	assert.Empty(t, gw.calls)
}

func TestCheckoutThenPaymentWithShortStock(t *testing.T) {
	conn, gw, order, outcome := checkoutThenPay(t, 1)

	assert.Equal(t, OutcomeStockCancelled, outcome)
	assert.Equal(t, enums.OrderStatusCancelledInsufficientStock, order.OrderStatus)
	assert.Equal(t, enums.PaymentStatusRefundInitiated, order.PaymentStatus)
	available, err := stock.NewRepository(conn).Available(context.Background(), redMedium)
	require.NoError(t, err)
	assert.Equal(t, 1, available)
	require.Len(t, gw.calls, 1)
	assert.Equal(t, "pay_flow", gw.ids[0])
	assert.Equal(t, int64(54900), gw.calls[0].Amount)
}
