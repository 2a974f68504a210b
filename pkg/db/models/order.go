package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/exclusivemerch/store-backend/pkg/enums"
)

// Order is the persisted result of a checkout. OrderToken is the receipt sent
// to the gateway; GatewayOrderID is the gateway's own id for the same order.
type Order struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderToken     string               `gorm:"column:order_token;not null;uniqueIndex"`
	GatewayOrderID string               `gorm:"column:gateway_order_id;not null;uniqueIndex"`
	UserID         uuid.UUID            `gorm:"column:user_id;type:uuid;not null"`
	Address        string               `gorm:"column:address;not null"`
	TotalAmount    decimal.Decimal      `gorm:"column:total_amount;type:numeric(12,2);not null"`
	OrderStatus    enums.OrderStatus    `gorm:"column:order_status;not null"`
	PaymentStatus  enums.PaymentStatus  `gorm:"column:payment_status;not null"`
	ShippingStatus enums.ShippingStatus `gorm:"column:shipping_status;not null"`
	TrackingID     *string              `gorm:"column:tracking_id"`
	Lines          []OrderLine          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Charges        []AdditionalCharge   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// State returns the three status axes together.
func (o Order) State() enums.OrderState {
	return enums.OrderState{
		Order:    o.OrderStatus,
		Payment:  o.PaymentStatus,
		Shipping: o.ShippingStatus,
	}
}

// OrderLine is an immutable snapshot of one purchased variant.
type OrderLine struct {
	ID          int64           `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ItemID      int64           `gorm:"column:item_id;not null"`
	Quantity    int             `gorm:"column:quantity;not null"`
	ColorOption string          `gorm:"column:color_option;not null"`
	SizeOption  string          `gorm:"column:size_option;not null"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
}

// LineTotal returns price x quantity.
func (l OrderLine) LineTotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// AdditionalCharge is an extra amount added at checkout, such as delivery.
type AdditionalCharge struct {
	ID         int64            `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID    uuid.UUID        `gorm:"column:order_id;type:uuid;not null;index"`
	ChargeType enums.ChargeType `gorm:"column:charge_type;not null"`
	Amount     decimal.Decimal  `gorm:"column:amount;type:numeric(12,2);not null"`
}
