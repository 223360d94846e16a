/*

This file contains the units-accounting primitive used for both the bond pool
and the debt pool. It is pure arithmetic over amounts and unit totals: callers
own all state, which keeps the math independently testable against literal
numbers.

*/

package ledger

import (
	"errors"

	sdkmath "cosmossdk.io/math"
)

// UnitScale is the multiplier applied to the very first mint into an empty
// pool. It is large enough that early, small balances do not suffer
// catastrophic rounding when later computing a user's share of growth; it has
// no other economic meaning and cancels out of every subsequent ratio.
const UnitScale = 1_000_000

// ErrZeroTotal guards the ratio divisions: a non-zero unit total must always
// come with a non-zero amount total.
var ErrZeroTotal = errors.New("non-zero unit total with zero amount total")

// UnitsToMint returns the units to credit for adding amount to a pool that
// held totalAmount backing totalUnits before this addition.
func UnitsToMint(amount, totalAmount, totalUnits sdkmath.Int) (sdkmath.Int, error) {
	if totalUnits.IsZero() {
		return amount.MulRaw(UnitScale), nil
	}
	if totalAmount.IsZero() {
		return sdkmath.Int{}, ErrZeroTotal
	}
	return amount.Mul(totalUnits).Quo(totalAmount), nil
}

// AmountForUnits returns the share of the live totalAmount represented by
// units out of totalUnits. A zero totalUnits pool values any units at zero.
func AmountForUnits(units, totalUnits, totalAmount sdkmath.Int) sdkmath.Int {
	if totalUnits.IsZero() {
		return sdkmath.ZeroInt()
	}
	return totalAmount.Mul(units).Quo(totalUnits)
}
