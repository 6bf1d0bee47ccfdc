package enums

import "fmt"

// PaymentType separates hosted checkout rentals from sweep charges.
type PaymentType string

const (
	PaymentTypeRental    PaymentType = "rental"
	PaymentTypeRecurring PaymentType = "recurring"
)

var validPaymentTypeValues = []PaymentType{
	PaymentTypeRental,
	PaymentTypeRecurring,
}

// String implements fmt.Stringer.
func (s PaymentType) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s PaymentType) IsValid() bool {
	for _, candidate := range validPaymentTypeValues {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePaymentType converts raw input into a PaymentType.
func ParsePaymentType(value string) (PaymentType, error) {
	for _, candidate := range validPaymentTypeValues {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment type %q", value)
}
