package enums

import (
	"fmt"
	"strings"
)

// ShippingStatus tracks fulfilment of an order.
type ShippingStatus string

const (
	ShippingStatusNotShipped ShippingStatus = "not_shipped"
	ShippingStatusProcessing ShippingStatus = "processing"
	ShippingStatusShipping   ShippingStatus = "shipping"
	ShippingStatusDelivered  ShippingStatus = "delivered"
	// ShippingStatusCancelled is only set by the pending-order reaper.
	ShippingStatusCancelled ShippingStatus = "cancelled"
)

var validShippingStatuses = []ShippingStatus{
	ShippingStatusNotShipped,
	ShippingStatusProcessing,
	ShippingStatusShipping,
	ShippingStatusDelivered,
	ShippingStatusCancelled,
}

// String implements fmt.Stringer.
func (s ShippingStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ShippingStatus.
func (s ShippingStatus) IsValid() bool {
	for _, candidate := range validShippingStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsAdminSettable reports whether an operator may move an order into s.
func (s ShippingStatus) IsAdminSettable() bool {
	return s.IsValid() && s != ShippingStatusCancelled
}

// ParseShippingStatus converts raw input into a ShippingStatus.
func ParseShippingStatus(value string) (ShippingStatus, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validShippingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipping status %q", value)
}
