package ledger

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func TestUnitsToMintFirstDeposit(t *testing.T) {
	units, err := UnitsToMint(sdkmath.NewInt(169895170), sdkmath.ZeroInt(), sdkmath.ZeroInt())
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(169895170000000), units)
}

func TestUnitsToMintProportional(t *testing.T) {
	// a second borrower joins after the debt pool has accrued interest
	units, err := UnitsToMint(
		sdkmath.NewInt(59164748),
		sdkmath.NewInt(441000000),
		sdkmath.NewInt(420000000000000),
	)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(56347379047619), units)
}

func TestUnitsToMintZeroTotalAmount(t *testing.T) {
	_, err := UnitsToMint(sdkmath.NewInt(1), sdkmath.ZeroInt(), sdkmath.NewInt(1000))
	require.ErrorIs(t, err, ErrZeroTotal)
}

func TestAmountForUnits(t *testing.T) {
	// a holder of half the units owns half the live amount
	amount := AmountForUnits(
		sdkmath.NewInt(500000),
		sdkmath.NewInt(1000000),
		sdkmath.NewInt(123456789),
	)
	require.Equal(t, sdkmath.NewInt(61728394), amount)

	// empty pool values any units at zero
	require.True(t, AmountForUnits(sdkmath.NewInt(42), sdkmath.ZeroInt(), sdkmath.ZeroInt()).IsZero())
}

// Minting against a pool and immediately redeeming the minted units must give
// back the deposited amount within one unit of truncation loss.
func TestMintRedeemRoundTrip(t *testing.T) {
	totals := []struct {
		amount int64
		units  int64
	}{
		{0, 0},
		{1, 1_000_000},
		{420000000, 420000000000000},
		{441000000, 420000000000000}, // grown amount, stale units
		{999999999, 888777666555444},
	}
	deposits := []int64{1, 7, 1000, 59164748, 420000000}

	for _, total := range totals {
		for _, deposit := range deposits {
			amount := sdkmath.NewInt(deposit)
			totalAmount := sdkmath.NewInt(total.amount)
			totalUnits := sdkmath.NewInt(total.units)

			minted, err := UnitsToMint(amount, totalAmount, totalUnits)
			require.NoError(t, err)

			back := AmountForUnits(minted, totalUnits.Add(minted), totalAmount.Add(amount))
			diff := amount.Sub(back).Abs()
			require.True(t, diff.LTE(sdkmath.OneInt()),
				"round trip off by %s for deposit %d into (%d, %d)", diff, deposit, total.amount, total.units)
		}
	}
}
