package enums

import (
	"fmt"
	"strings"
)

// ChargeType labels an AdditionalCharge attached to an order.
type ChargeType string

const (
	ChargeTypeDelivery ChargeType = "Delivery Charge"
)

var validChargeTypes = []ChargeType{
	ChargeTypeDelivery,
}

// String implements fmt.Stringer.
func (c ChargeType) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c ChargeType) IsValid() bool {
	for _, candidate := range validChargeTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseChargeType converts raw input into a ChargeType.
func ParseChargeType(value string) (ChargeType, error) {
	value = strings.TrimSpace(value)
	for _, candidate := range validChargeTypes {
		if strings.EqualFold(string(candidate), value) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid charge type %q", value)
}
