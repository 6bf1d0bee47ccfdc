package enums

import "fmt"

// GatewayMode selects sandbox or live gateway hosts.
type GatewayMode string

const (
	GatewayModeSandbox GatewayMode = "sandbox"
	GatewayModeLive    GatewayMode = "live"
)

var validGatewayModeValues = []GatewayMode{
	GatewayModeSandbox,
	GatewayModeLive,
}

// String implements fmt.Stringer.
func (s GatewayMode) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s GatewayMode) IsValid() bool {
	for _, candidate := range validGatewayModeValues {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseGatewayMode converts raw input into a GatewayMode.
func ParseGatewayMode(value string) (GatewayMode, error) {
	for _, candidate := range validGatewayModeValues {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gateway mode %q", value)
}
