package enums

import "fmt"

// Gateway identifies a payment provider integration.
type Gateway string

const (
	GatewayPaystack Gateway = "paystack"
	GatewayStripe   Gateway = "stripe"
)

var validGateways = []Gateway{
	GatewayPaystack,
	GatewayStripe,
}

// String implements fmt.Stringer.
func (g Gateway) String() string {
	return string(g)
}

// IsValid reports whether the value is a known Gateway.
func (g Gateway) IsValid() bool {
	for _, candidate := range validGateways {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGateway converts raw input into a Gateway.
func ParseGateway(value string) (Gateway, error) {
	for _, candidate := range validGateways {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gateway %q", value)
}
