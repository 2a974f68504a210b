package enums

import "fmt"

// OrderState groups the three orthogonal status axes of an order.
type OrderState struct {
	Order    OrderStatus
	Payment  PaymentStatus
	Shipping ShippingStatus
}

func (s OrderState) String() string {
	return fmt.Sprintf("(%s, %s, %s)", s.Order, s.Payment, s.Shipping)
}

// Validate rejects combinations no transition can produce.
func (s OrderState) Validate() error {
	if !s.Order.IsValid() {
		return fmt.Errorf("invalid order status %q", s.Order)
	}
	if !s.Payment.IsValid() {
		return fmt.Errorf("invalid payment status %q", s.Payment)
	}
	if !s.Shipping.IsValid() {
		return fmt.Errorf("invalid shipping status %q", s.Shipping)
	}

	if !s.allowedPayment() {
		return fmt.Errorf("payment status %s not allowed with order status %s", s.Payment, s.Order)
	}

	switch s.Shipping {
	case ShippingStatusNotShipped:
		if s.Payment == PaymentStatusTimeout {
			return fmt.Errorf("timed out order must have shipping status %s", ShippingStatusCancelled)
		}
	case ShippingStatusCancelled:
		if s.Payment != PaymentStatusTimeout {
			return fmt.Errorf("shipping status %s requires payment status %s", s.Shipping, PaymentStatusTimeout)
		}
	default:
		if !s.IsFulfillable() {
			return fmt.Errorf("shipping status %s requires a confirmed and paid order, got %s", s.Shipping, s)
		}
	}
	return nil
}

// IsFulfillable reports whether shipping may progress past not_shipped.
func (s OrderState) IsFulfillable() bool {
	return s.Order == OrderStatusConfirmed && s.Payment == PaymentStatusReceived
}

// IsAwaitingPayment reports whether the order still waits for the gateway.
func (s OrderState) IsAwaitingPayment() bool {
	return s.Order == OrderStatusUnconfirmed && s.Payment == PaymentStatusPending
}

// IsUserCancellable reports whether the customer may still cancel.
func (s OrderState) IsUserCancellable() bool {
	return s.IsAwaitingPayment() && s.Shipping == ShippingStatusNotShipped
}

func (s OrderState) allowedPayment() bool {
	switch s.Order {
	case OrderStatusUnconfirmed:
		return s.Payment == PaymentStatusPending || s.Payment == PaymentStatusTimeout
	case OrderStatusConfirmed:
		return s.Payment == PaymentStatusReceived
	case OrderStatusCancelledByUser:
		return s.Payment == PaymentStatusPending ||
			s.Payment == PaymentStatusReceived ||
			s.Payment == PaymentStatusTimeout
	case OrderStatusCancelledInsufficientStock:
		return s.Payment.IsRefundState()
	}
	return false
}
