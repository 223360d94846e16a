/*

This file contains the tax-adjusted transfer helper for the native secondary
asset. The network deducts a proportional tax, capped at a fixed maximum, from
every in-flight native transfer. Everything tax-related lives here so the rest
of the engine stays agnostic to whether the deployment target taxes transfers
at all; a zero rate turns both functions into the identity.

*/

package tax

import (
	sdkmath "cosmossdk.io/math"
)

// Calculator computes tax-adjusted transfer amounts for one (rate, cap) pair.
type Calculator struct {
	rate sdkmath.LegacyDec
	cap  sdkmath.Int
}

// New builds a Calculator. Rate is the proportional tax (e.g. 0.001), cap is
// the absolute ceiling on the tax charged per transfer.
func New(rate sdkmath.LegacyDec, cap sdkmath.Int) Calculator {
	return Calculator{rate: rate, cap: cap}
}

// NoTax returns a Calculator for chains without a transfer tax.
func NoTax() Calculator {
	return Calculator{rate: sdkmath.LegacyZeroDec(), cap: sdkmath.ZeroInt()}
}

// IsNoop reports whether the calculator passes amounts through unchanged.
func (c Calculator) IsNoop() bool {
	return c.rate.IsZero()
}

// DeductTax returns what the recipient actually receives when a transfer of
// amount leaves the sender: amount minus min(amount - amount/(1+rate), cap).
// The division truncates, so the deducted tax is never understated.
func (c Calculator) DeductTax(amount sdkmath.Int) sdkmath.Int {
	if c.rate.IsZero() || amount.IsZero() {
		return amount
	}
	onePlusRate := sdkmath.LegacyOneDec().Add(c.rate)
	net := sdkmath.LegacyNewDecFromInt(amount).Quo(onePlusRate).TruncateInt()
	taxed := amount.Sub(net)
	if taxed.GT(c.cap) {
		taxed = c.cap
	}
	return amount.Sub(taxed)
}

// AddTax returns the gross amount to declare so that, after the tax is
// deducted in flight, the counterparty receives at least amount. The tax term
// rounds up, so the helper never under-delivers.
func (c Calculator) AddTax(amount sdkmath.Int) sdkmath.Int {
	if c.rate.IsZero() || amount.IsZero() {
		return amount
	}
	taxed := c.rate.MulInt(amount).Ceil().TruncateInt()
	if taxed.GT(c.cap) {
		taxed = c.cap
	}
	return amount.Add(taxed)
}
