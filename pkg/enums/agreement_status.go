package enums

import "fmt"

// AgreementStatus is the tenancy state the billing sweep reads.
type AgreementStatus string

const (
	AgreementStatusActive     AgreementStatus = "active"
	AgreementStatusPending    AgreementStatus = "pending"
	AgreementStatusTerminated AgreementStatus = "terminated"
	AgreementStatusExpired    AgreementStatus = "expired"
)

var validAgreementStatusValues = []AgreementStatus{
	AgreementStatusActive,
	AgreementStatusPending,
	AgreementStatusTerminated,
	AgreementStatusExpired,
}

// String implements fmt.Stringer.
func (s AgreementStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s AgreementStatus) IsValid() bool {
	for _, candidate := range validAgreementStatusValues {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseAgreementStatus converts raw input into a AgreementStatus.
func ParseAgreementStatus(value string) (AgreementStatus, error) {
	for _, candidate := range validAgreementStatusValues {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid agreement status %q", value)
}
