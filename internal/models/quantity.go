package models

import "math"

// QuantityEpsilon is the tolerance below which a batch counts as depleted.
// Absorbs float drift from repeated small deductions.
const QuantityEpsilon = 0.001

// Round3 rounds a quantity to 3 decimal places. Every arithmetic step on
// quantities must pass through this so drift never accumulates across a
// multi-batch cascade.
func Round3(q float64) float64 {
	return math.Round(q*1000) / 1000
}

// Depleted reports whether a quantity is at or below the depletion tolerance.
func Depleted(q float64) bool {
	return q <= QuantityEpsilon
}

// QuantityEqual compares two quantities within the depletion tolerance.
func QuantityEqual(a, b float64) bool {
	return math.Abs(a-b) <= QuantityEpsilon
}
