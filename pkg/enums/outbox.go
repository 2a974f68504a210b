package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType is the event_type stored with every outbox row.
type OutboxEventType string

const (
	EventOrderCreated        OutboxEventType = "order_created"
	EventOrderConfirmed      OutboxEventType = "order_confirmed"
	EventOrderStockCancelled OutboxEventType = "order_stock_cancelled"
	EventOrderCancelled      OutboxEventType = "order_cancelled"
	EventPaidAfterCancel     OutboxEventType = "paid_after_cancel"
	EventRefundProcessed     OutboxEventType = "refund_processed"
	EventRefundFailed        OutboxEventType = "refund_failed"
	EventOrderExpired        OutboxEventType = "order_expired"
	EventShippingUpdated     OutboxEventType = "shipping_updated"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderConfirmed,
	EventOrderStockCancelled,
	EventOrderCancelled,
	EventPaidAfterCancel,
	EventRefundProcessed,
	EventRefundFailed,
	EventOrderExpired,
	EventShippingUpdated,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// RequiresOperator reports whether the event needs a human to look at it.
func (e OutboxEventType) RequiresOperator() bool {
	return e == EventRefundFailed || e == EventPaidAfterCancel
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
