package payloads

import (
	"time"

	"github.com/exclusivemerch/store-backend/pkg/db/models"
	"github.com/exclusivemerch/store-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderEvent carries the order identity and its status axes after the change.
type OrderEvent struct {
	OrderID        uuid.UUID            `json:"order_id"`
	OrderToken     string               `json:"order_token"`
	GatewayOrderID string               `json:"gateway_order_id"`
	UserID         uuid.UUID            `json:"user_id"`
	TotalAmount    decimal.Decimal      `json:"total_amount"`
	OrderStatus    enums.OrderStatus    `json:"order_status"`
	PaymentStatus  enums.PaymentStatus  `json:"payment_status"`
	ShippingStatus enums.ShippingStatus `json:"shipping_status"`
}

// Line is one purchased variant.
type Line struct {
	ItemID      int64           `json:"item_id"`
	Quantity    int             `json:"quantity"`
	ColorOption string          `json:"color_option"`
	SizeOption  string          `json:"size_option"`
	Price       decimal.Decimal `json:"price"`
}

// Charge is an additional amount attached at checkout.
type Charge struct {
	ChargeType enums.ChargeType `json:"charge_type"`
	Amount     decimal.Decimal  `json:"amount"`
}

// OrderCreatedEvent is emitted in the checkout transaction.
type OrderCreatedEvent struct {
	OrderEvent
	Lines   []Line   `json:"lines"`
	Charges []Charge `json:"charges"`
}

// OrderConfirmedEvent is emitted once payment is captured and stock decremented.
type OrderConfirmedEvent struct {
	OrderEvent
	PaymentID string `json:"payment_id"`
	Lines     []Line `json:"lines"`
}

// OrderStockCancelledEvent is emitted when stock ran out after payment.
type OrderStockCancelledEvent struct {
	OrderEvent
	PaymentID    string          `json:"payment_id"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	Reason       string          `json:"reason"`
}

// OrderCancelledEvent is emitted when the user cancels an unpaid order.
type OrderCancelledEvent struct {
	OrderEvent
	CancelledAt time.Time `json:"cancelled_at"`
}

// PaidAfterCancelEvent flags a payment captured for an order the user had cancelled.
type PaidAfterCancelEvent struct {
	OrderEvent
	PaymentID string          `json:"payment_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// RefundEvent backs refund_processed and refund_failed.
type RefundEvent struct {
	OrderEvent
	RefundID  string          `json:"refund_id,omitempty"`
	PaymentID string          `json:"payment_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason,omitempty"`
	// Manual marks a refund that completed after an earlier failure.
	Manual bool `json:"manual,omitempty"`
}

// OrderExpiredEvent is emitted by the pending-order reaper.
type OrderExpiredEvent struct {
	OrderEvent
	ExpiredAt  time.Time `json:"expired_at"`
	PendingFor string    `json:"pending_for"`
	Lines      []Line    `json:"lines"`
}

// ShippingUpdatedEvent is emitted by admin shipping updates.
type ShippingUpdatedEvent struct {
	OrderEvent
	PreviousStatus enums.ShippingStatus `json:"previous_status"`
	TrackingID     *string              `json:"tracking_id,omitempty"`
}

// NewOrderEvent snapshots the order for an event payload.
func NewOrderEvent(order models.Order) OrderEvent {
	return OrderEvent{
		OrderID:        order.ID,
		OrderToken:     order.OrderToken,
		GatewayOrderID: order.GatewayOrderID,
		UserID:         order.UserID,
		TotalAmount:    order.TotalAmount,
		OrderStatus:    order.OrderStatus,
		PaymentStatus:  order.PaymentStatus,
		ShippingStatus: order.ShippingStatus,
	}
}

// LinesOf converts order lines into payload lines.
func LinesOf(lines []models.OrderLine) []Line {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, Line{
			ItemID:      l.ItemID,
			Quantity:    l.Quantity,
			ColorOption: l.ColorOption,
			SizeOption:  l.SizeOption,
			Price:       l.Price,
		})
	}
	return out
}

// ChargesOf converts additional charges into payload charges.
func ChargesOf(charges []models.AdditionalCharge) []Charge {
	out := make([]Charge, 0, len(charges))
	for _, c := range charges {
		out = append(out, Charge{ChargeType: c.ChargeType, Amount: c.Amount})
	}
	return out
}
