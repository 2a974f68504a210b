package orders

import (
	"time"

	"github.com/exclusivemerch/store-backend/pkg/db/models"
	"github.com/exclusivemerch/store-backend/pkg/enums"
	"github.com/exclusivemerch/store-backend/pkg/razorpay"
	"github.com/shopspring/decimal"
)

// OrderDTO is the API view of an order.
type OrderDTO struct {
	OrderToken     string               `json:"order_token"`
	GatewayOrderID string               `json:"gateway_order_id"`
	Address        string               `json:"address"`
	TotalAmount    decimal.Decimal      `json:"total_amount"`
	OrderStatus    enums.OrderStatus    `json:"order_status"`
	PaymentStatus  enums.PaymentStatus  `json:"payment_status"`
	ShippingStatus enums.ShippingStatus `json:"shipping_status"`
	TrackingID     *string              `json:"tracking_id,omitempty"`
	Lines          []LineDTO            `json:"lines"`
	Charges        []ChargeDTO          `json:"additional_charges"`
	CreatedAt      time.Time            `json:"created_at"`
}

type LineDTO struct {
	ItemID      int64           `json:"item_id"`
	Quantity    int             `json:"quantity"`
	ColorOption string          `json:"color_option"`
	SizeOption  string          `json:"size_option"`
	Price       decimal.Decimal `json:"price"`
}

type ChargeDTO struct {
	ChargeType enums.ChargeType `json:"charge_type"`
	Amount     decimal.Decimal  `json:"amount"`
}

// DetailDTO adds the gateway's view of the order. GatewayUnavailable is set
// when the gateway could not be reached and only local data is returned.
type DetailDTO struct {
	Order              OrderDTO           `json:"order"`
	GatewayOrder       *razorpay.Order    `json:"gateway_order,omitempty"`
	GatewayPayments    []razorpay.Payment `json:"gateway_payments,omitempty"`
	GatewayUnavailable bool               `json:"gateway_unavailable,omitempty"`
}

// ConfirmedOrderList is one page of the admin order list.
type ConfirmedOrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// UpdateShippingInput is the admin shipping update body.
type UpdateShippingInput struct {
	ShippingStatus string  `json:"shipping_status" validate:"required,oneof=not_shipped processing shipping delivered"`
	TrackingID     *string `json:"tracking_id" validate:"omitempty,max=100"`
}

// FromModel maps an order row to its API view.
func FromModel(o models.Order) OrderDTO {
	dto := OrderDTO{
		OrderToken:     o.OrderToken,
		GatewayOrderID: o.GatewayOrderID,
		Address:        o.Address,
		TotalAmount:    o.TotalAmount,
		OrderStatus:    o.OrderStatus,
		PaymentStatus:  o.PaymentStatus,
		ShippingStatus: o.ShippingStatus,
		TrackingID:     o.TrackingID,
		Lines:          make([]LineDTO, 0, len(o.Lines)),
		Charges:        make([]ChargeDTO, 0, len(o.Charges)),
		CreatedAt:      o.CreatedAt,
	}
	for _, l := range o.Lines {
		dto.Lines = append(dto.Lines, LineDTO{
			ItemID:      l.ItemID,
			Quantity:    l.Quantity,
			ColorOption: l.ColorOption,
			SizeOption:  l.SizeOption,
			Price:       l.Price,
		})
	}
	for _, c := range o.Charges {
		dto.Charges = append(dto.Charges, ChargeDTO{ChargeType: c.ChargeType, Amount: c.Amount})
	}
	return dto
}

func fromModels(rows []models.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(rows))
	for _, o := range rows {
		out = append(out, FromModel(o))
	}
	return out
}
