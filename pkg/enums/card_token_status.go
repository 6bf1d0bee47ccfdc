package enums

import "fmt"

// CardTokenStatus is the lifecycle state of a stored card token.
type CardTokenStatus string

const (
	CardTokenStatusActive   CardTokenStatus = "active"
	CardTokenStatusDisabled CardTokenStatus = "disabled"
)

var validCardTokenStatusValues = []CardTokenStatus{
	CardTokenStatusActive,
	CardTokenStatusDisabled,
}

// String implements fmt.Stringer.
func (s CardTokenStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s CardTokenStatus) IsValid() bool {
	for _, candidate := range validCardTokenStatusValues {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCardTokenStatus converts raw input into a CardTokenStatus.
func ParseCardTokenStatus(value string) (CardTokenStatus, error) {
	for _, candidate := range validCardTokenStatusValues {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid card token status %q", value)
}
