package pricing

import "github.com/shopspring/decimal"

var minorFactor = decimal.NewFromInt(100)

// MinorUnits converts a decimal money amount to the integer minor units
// (kobo, cents) gateways speak on the wire. All comparison against
// provider-confirmed amounts happens in minor units.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(minorFactor).Round(0).IntPart()
}

// FromMinorUnits converts wire minor units back to a decimal amount.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(minorFactor)
}
