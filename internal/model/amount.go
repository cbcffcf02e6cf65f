package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of implied decimal places in every _e6 amount.
const AmountScale = 6

// ToDecimal renders an integer e6 amount as an exact decimal.
func ToDecimal(e6 int64) decimal.Decimal {
	return decimal.New(e6, -AmountScale)
}

// UnsignedToDecimal renders an unsigned e6 total as an exact decimal.
func UnsignedToDecimal(e6 uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(e6), -AmountScale)
}

// FromDecimal converts a decimal to integer e6 units, truncating any
// precision beyond six places. ok is false if the value does not fit.
func FromDecimal(d decimal.Decimal) (int64, bool) {
	scaled := d.Shift(AmountScale).Truncate(0)
	if !scaled.BigInt().IsInt64() {
		return 0, false
	}
	return scaled.IntPart(), true
}
