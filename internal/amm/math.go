/*

This file contains the pure constant-product math used for price discovery,
liquidity matching and liquidation sizing. The formulas mirror the external
pool's own convention: commission is taken from the output side, divisions
truncate, and only the payer-side inverse rounds up.

*/

package amm

import (
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// SwapOutput returns the net amount received for swapping amountIn against
// reserves (reserveIn, reserveOut) with the given proportional commission.
// The gross output is reserveOut - reserveIn*reserveOut/(reserveIn+amountIn)
// (truncated), and the commission is deducted from that output.
func SwapOutput(amountIn, reserveIn, reserveOut sdkmath.Int, commission sdkmath.LegacyDec) sdkmath.Int {
	if amountIn.IsZero() || reserveIn.IsZero() || reserveOut.IsZero() {
		return sdkmath.ZeroInt()
	}
	cp := reserveIn.Mul(reserveOut)
	gross := reserveOut.Sub(cp.Quo(reserveIn.Add(amountIn)))
	fee := commission.MulInt(gross).TruncateInt()
	return gross.Sub(fee)
}

// SwapInput returns the input amount required to receive at least amountOut
// net of commission. Both the commission gross-up and the reserve division
// round up: when the contract is the payer it must never under-estimate the
// cost of covering a debt.
func SwapInput(amountOut, reserveIn, reserveOut sdkmath.Int, commission sdkmath.LegacyDec) (sdkmath.Int, error) {
	if amountOut.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	oneMinus := sdkmath.LegacyOneDec().Sub(commission)
	if !oneMinus.IsPositive() {
		return sdkmath.Int{}, ErrInvalidCommission
	}
	gross := sdkmath.LegacyNewDecFromInt(amountOut).Quo(oneMinus).Ceil().TruncateInt()
	if gross.GTE(reserveOut) {
		return sdkmath.Int{}, ErrInsufficientReserve
	}
	cp := reserveIn.Mul(reserveOut)
	newReserveIn := ceilQuo(cp, reserveOut.Sub(gross))
	return newReserveIn.Sub(reserveIn), nil
}

// MintShare returns the pool-share amount minted for depositing
// (amountA, amountB) into a pool with the given reserves and share supply.
// The very first provision mints sqrt(amountA * amountB); afterwards the
// smaller of the two proportional claims wins and the excess side is donated
// to the pool.
func MintShare(amountA, amountB, reserveA, reserveB, totalShare sdkmath.Int) sdkmath.Int {
	if totalShare.IsZero() {
		return IntSqrt(amountA.Mul(amountB))
	}
	byA := amountA.Mul(totalShare).Quo(reserveA)
	byB := amountB.Mul(totalShare).Quo(reserveB)
	return sdkmath.MinInt(byA, byB)
}

// IntSqrt returns the integer square root (floor) of a non-negative Int.
func IntSqrt(value sdkmath.Int) sdkmath.Int {
	return sdkmath.NewIntFromBigInt(new(big.Int).Sqrt(value.BigInt()))
}

// ceilQuo divides numerator by denominator rounding up.
func ceilQuo(numerator, denominator sdkmath.Int) sdkmath.Int {
	return numerator.Add(denominator).Sub(sdkmath.OneInt()).Quo(denominator)
}
