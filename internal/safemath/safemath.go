// Package safemath provides overflow-checked integer arithmetic for ledger
// balances and the basis-point fee split used by fee-bearing operations.
//
// Balance movement never wraps or saturates: every helper reports overflow
// through its boolean result and callers reject the operation. Saturating
// arithmetic is reserved for fee rounding and fee statistics.
package safemath

import (
	"math"
	"math/bits"
)

// BpsDenominator is the basis-point scale: 10_000 bps = 100%.
const BpsDenominator = 10_000

// Add returns a+b, or false if the result overflows int64.
func Add(a, b int64) (int64, bool) {
	c := a + b
	if (c > a) != (b > 0) {
		return 0, false
	}
	return c, true
}

// Sub returns a-b, or false if the result overflows int64.
func Sub(a, b int64) (int64, bool) {
	c := a - b
	if (c < a) != (b > 0) {
		return 0, false
	}
	return c, true
}

// AddU64 returns a+b, or false on overflow.
func AddU64(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

// SubU64 returns a-b, or false on underflow.
func SubU64(a, b uint64) (uint64, bool) {
	diff, borrow := bits.Sub64(a, b, 0)
	return diff, borrow == 0
}

// SaturatingAddU64 returns a+b clamped to math.MaxUint64.
func SaturatingAddU64(a, b uint64) uint64 {
	if sum, ok := AddU64(a, b); ok {
		return sum
	}
	return math.MaxUint64
}

// Signed converts an unsigned amount to int64, or false if it does not fit.
func Signed(v uint64) (int64, bool) {
	if v > math.MaxInt64 {
		return 0, false
	}
	return int64(v), true
}

// FeeSplit computes fee = gross*bps/10000 with a 128-bit intermediate and
// truncating division, and net = gross-fee (saturating at zero).
// Rates above 10000 bps are clamped to 10000 so fee never exceeds gross.
func FeeSplit(gross uint64, bps uint16) (fee, net uint64) {
	rate := uint64(bps)
	if rate > BpsDenominator {
		rate = BpsDenominator
	}
	hi, lo := bits.Mul64(gross, rate)
	fee, _ = bits.Div64(hi, lo, BpsDenominator)
	if fee > gross {
		return fee, 0
	}
	return fee, gross - fee
}
