package enums

import "testing"

func TestOrderStateValidate(t *testing.T) {
	tests := []struct {
		name  string
		state OrderState
		ok    bool
	}{
		{"fresh order", OrderState{OrderStatusUnconfirmed, PaymentStatusPending, ShippingStatusNotShipped}, true},
		{"confirmed", OrderState{OrderStatusConfirmed, PaymentStatusReceived, ShippingStatusNotShipped}, true},
		{"confirmed shipping", OrderState{OrderStatusConfirmed, PaymentStatusReceived, ShippingStatusShipping}, true},
		{"delivered", OrderState{OrderStatusConfirmed, PaymentStatusReceived, ShippingStatusDelivered}, true},
		{"reaped", OrderState{OrderStatusUnconfirmed, PaymentStatusTimeout, ShippingStatusCancelled}, true},
		{"reaped after user cancel", OrderState{OrderStatusCancelledByUser, PaymentStatusTimeout, ShippingStatusCancelled}, true},
		{"user cancelled", OrderState{OrderStatusCancelledByUser, PaymentStatusPending, ShippingStatusNotShipped}, true},
		{"paid after cancel", OrderState{OrderStatusCancelledByUser, PaymentStatusReceived, ShippingStatusNotShipped}, true},
		{"stock cancelled", OrderState{OrderStatusCancelledInsufficientStock, PaymentStatusRefundInitiated, ShippingStatusNotShipped}, true},
		{"refunded", OrderState{OrderStatusCancelledInsufficientStock, PaymentStatusRefunded, ShippingStatusNotShipped}, true},
		{"refund failed", OrderState{OrderStatusCancelledInsufficientStock, PaymentStatusRefundFailed, ShippingStatusNotShipped}, true},

		{"unpaid shipping", OrderState{OrderStatusUnconfirmed, PaymentStatusPending, ShippingStatusShipping}, false},
		{"confirmed pending", OrderState{OrderStatusConfirmed, PaymentStatusPending, ShippingStatusNotShipped}, false},
		{"cancelled without timeout", OrderState{OrderStatusUnconfirmed, PaymentStatusPending, ShippingStatusCancelled}, false},
		{"timeout not cancelled", OrderState{OrderStatusUnconfirmed, PaymentStatusTimeout, ShippingStatusNotShipped}, false},
		{"confirmed timeout", OrderState{OrderStatusConfirmed, PaymentStatusTimeout, ShippingStatusCancelled}, false},
		{"refund on confirmed", OrderState{OrderStatusConfirmed, PaymentStatusRefunded, ShippingStatusNotShipped}, false},
		{"stock cancelled pending", OrderState{OrderStatusCancelledInsufficientStock, PaymentStatusPending, ShippingStatusNotShipped}, false},
		{"unknown order status", OrderState{"shipped", PaymentStatusPending, ShippingStatusNotShipped}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.state.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected %s to be valid, got %v", tc.state, err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("expected %s to be rejected", tc.state)
			}
		})
	}
}

func TestOrderStatePredicates(t *testing.T) {
	fresh := OrderState{OrderStatusUnconfirmed, PaymentStatusPending, ShippingStatusNotShipped}
	if !fresh.IsUserCancellable() || !fresh.IsAwaitingPayment() {
		t.Fatalf("fresh order should be awaiting payment and cancellable")
	}
	if fresh.IsFulfillable() {
		t.Fatalf("fresh order must not be fulfillable")
	}

	confirmed := OrderState{OrderStatusConfirmed, PaymentStatusReceived, ShippingStatusNotShipped}
	if confirmed.IsUserCancellable() {
		t.Fatalf("confirmed order must not be cancellable")
	}
	if !confirmed.IsFulfillable() {
		t.Fatalf("confirmed order should be fulfillable")
	}
}

func TestParseHelpers(t *testing.T) {
	if s, err := ParseSize(" xl "); err != nil || s != SizeXL {
		t.Fatalf("ParseSize returned %q, %v", s, err)
	}
	if _, err := ParseSize("XS"); err == nil {
		t.Fatalf("expected XS to be rejected")
	}
	if s, err := ParseShippingStatus("Shipping"); err != nil || s != ShippingStatusShipping {
		t.Fatalf("ParseShippingStatus returned %q, %v", s, err)
	}
	if ShippingStatusCancelled.IsAdminSettable() {
		t.Fatalf("cancelled shipping must be reaper-only")
	}
	if !EventRefundFailed.RequiresOperator() || EventOrderCreated.RequiresOperator() {
		t.Fatalf("unexpected operator routing")
	}
	if c, err := ParseChargeType("delivery charge"); err != nil || c != ChargeTypeDelivery {
		t.Fatalf("ParseChargeType returned %q, %v", c, err)
	}
}
