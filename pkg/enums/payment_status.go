package enums

import "fmt"

// PaymentStatus tracks money movement for an order.
type PaymentStatus string

const (
	PaymentStatusPending         PaymentStatus = "pending"
	PaymentStatusReceived        PaymentStatus = "received"
	PaymentStatusRefundInitiated PaymentStatus = "refund_initiated"
	PaymentStatusRefunded        PaymentStatus = "refunded"
	PaymentStatusRefundFailed    PaymentStatus = "refund_failed"
	PaymentStatusTimeout         PaymentStatus = "timeout"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusReceived,
	PaymentStatusRefundInitiated,
	PaymentStatusRefunded,
	PaymentStatusRefundFailed,
	PaymentStatusTimeout,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsRefundState reports whether the payment is somewhere in the refund flow.
func (p PaymentStatus) IsRefundState() bool {
	return p == PaymentStatusRefundInitiated || p == PaymentStatusRefunded || p == PaymentStatusRefundFailed
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
