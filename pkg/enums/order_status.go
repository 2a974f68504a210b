package enums

import "fmt"

// OrderStatus is the business state of an order.
type OrderStatus string

const (
	OrderStatusUnconfirmed                OrderStatus = "unconfirmed"
	OrderStatusConfirmed                  OrderStatus = "confirmed"
	OrderStatusCancelledByUser            OrderStatus = "cancelled_by_user"
	OrderStatusCancelledInsufficientStock OrderStatus = "cancelled_insufficient_stock"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusUnconfirmed,
	OrderStatusConfirmed,
	OrderStatusCancelledByUser,
	OrderStatusCancelledInsufficientStock,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
