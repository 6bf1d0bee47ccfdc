package enums

import "fmt"

// UserRole is the coarse role carried in access tokens.
type UserRole string

const (
	UserRoleAdmin    UserRole = "admin"
	UserRoleOwner    UserRole = "owner"
	UserRoleCustomer UserRole = "customer"
)

var validUserRoleValues = []UserRole{
	UserRoleAdmin,
	UserRoleOwner,
	UserRoleCustomer,
}

// String implements fmt.Stringer.
func (s UserRole) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s UserRole) IsValid() bool {
	for _, candidate := range validUserRoleValues {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoleValues {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}
