package enums

import "fmt"

// AnalyticsEventType is the event_type column written to the order_events table.
type AnalyticsEventType string

const (
	AnalyticsEventOrderCreated    AnalyticsEventType = "order_created"
	AnalyticsEventOrderConfirmed  AnalyticsEventType = "order_confirmed"
	AnalyticsEventOrderCancelled  AnalyticsEventType = "order_cancelled"
	AnalyticsEventOrderExpired    AnalyticsEventType = "order_expired"
	AnalyticsEventRefundInitiated AnalyticsEventType = "refund_initiated"
	AnalyticsEventRefundCompleted AnalyticsEventType = "refund_completed"
	AnalyticsEventRefundFailed    AnalyticsEventType = "refund_failed"
	AnalyticsEventShippingUpdated AnalyticsEventType = "shipping_updated"
	AnalyticsEventPaidAfterCancel AnalyticsEventType = "paid_after_cancel"
)

var validAnalyticsEventTypes = []AnalyticsEventType{
	AnalyticsEventOrderCreated,
	AnalyticsEventOrderConfirmed,
	AnalyticsEventOrderCancelled,
	AnalyticsEventOrderExpired,
	AnalyticsEventRefundInitiated,
	AnalyticsEventRefundCompleted,
	AnalyticsEventRefundFailed,
	AnalyticsEventShippingUpdated,
	AnalyticsEventPaidAfterCancel,
}

// IsValid reports whether the value matches the canonical analytics event_type enum.
func (a AnalyticsEventType) IsValid() bool {
	for _, candidate := range validAnalyticsEventTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAnalyticsEventType converts the raw string to AnalyticsEventType.
func ParseAnalyticsEventType(value string) (AnalyticsEventType, error) {
	for _, candidate := range validAnalyticsEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid analytics event type %q", value)
}
