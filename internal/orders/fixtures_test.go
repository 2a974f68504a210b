package orders

import (
	"testing"
	"time"

	"github.com/exclusivemerch/store-backend/pkg/db/models"
	"github.com/exclusivemerch/store-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type orderSeed struct {
	userID    uuid.UUID
	token     string
	state     enums.OrderState
	createdAt time.Time
}

func seedOrder(t *testing.T, conn *gorm.DB, s orderSeed) models.Order {
	t.Helper()
	if s.userID == uuid.Nil {
		s.userID = uuid.New()
	}
	if s.token == "" {
		s.token = "exc_" + uuid.NewString()
	}
	if s.state.Order == "" {
		s.state = enums.OrderState{
			Order:    enums.OrderStatusUnconfirmed,
			Payment:  enums.PaymentStatusPending,
			Shipping: enums.ShippingStatusNotShipped,
		}
	}
	if s.createdAt.IsZero() {
		s.createdAt = time.Now().UTC()
	}

	order := models.Order{
		OrderToken:     s.token,
		GatewayOrderID: "order_" + s.token[len(s.token)-8:],
		UserID:         s.userID,
		Address:        "12 MG Road, Indiranagar, Bengaluru, Karnataka 560038",
		TotalAmount:    decimal.RequireFromString("548.00"),
		OrderStatus:    s.state.Order,
		PaymentStatus:  s.state.Payment,
		ShippingStatus: s.state.Shipping,
		CreatedAt:      s.createdAt,
		UpdatedAt:      s.createdAt,
		Lines: []models.OrderLine{
			{ItemID: 1, Quantity: 1, ColorOption: "Black", SizeOption: "M", Price: decimal.RequireFromString("499.00")},
		},
		Charges: []models.AdditionalCharge{
			{ChargeType: enums.ChargeTypeDelivery, Amount: decimal.RequireFromString("49.00")},
		},
	}
	require.NoError(t, NewRepository(conn).Create(t.Context(), &order))
	return order
}
