// Package money renders integer minor currency units as display strings.
package money

import (
	"github.com/shopspring/decimal"
)

// Symbol prefixes formatted amounts.
const Symbol = "$"

// FromMinor converts minor units (cents) into a decimal amount.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Shift(-2)
}

// Format renders minor units as "$12.34"; negative amounts render "-$12.34".
func Format(minor int64) string {
	d := FromMinor(minor)
	if d.IsNegative() {
		return "-" + Symbol + d.Neg().StringFixed(2)
	}
	return Symbol + d.StringFixed(2)
}

// LineTotal returns unit price times quantity in minor units.
func LineTotal(unitMinor int64, quantity int) int64 {
	return FromMinor(unitMinor).Mul(decimal.NewFromInt(int64(quantity))).Shift(2).IntPart()
}
