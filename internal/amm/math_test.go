package amm

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

var commission = sdkmath.LegacyNewDecWithPrec(3, 3) // 0.3%

func TestSwapOutput(t *testing.T) {
	// literal pool response: one whole primary token into a 69/420 pool
	out := SwapOutput(
		sdkmath.NewInt(1_000_000),
		sdkmath.NewInt(69_000_000),
		sdkmath.NewInt(420_000_000),
		commission,
	)
	require.Equal(t, sdkmath.NewInt(5_982_000), out) // 6_000_000 gross - 18_000 commission

	// probe against the post-bond reserves of the reference fixture
	out = SwapOutput(
		sdkmath.NewInt(1_000_000),
		sdkmath.NewInt(137_931_068),
		sdkmath.NewInt(839_161_257),
		commission,
	)
	require.Equal(t, sdkmath.NewInt(6_022_007), out)
}

func TestSwapOutputZeroInput(t *testing.T) {
	out := SwapOutput(sdkmath.ZeroInt(), sdkmath.NewInt(69_000_000), sdkmath.NewInt(420_000_000), commission)
	require.True(t, out.IsZero())
}

func TestSwapInput(t *testing.T) {
	reserveIn := sdkmath.NewInt(69_000_000)
	reserveOut := sdkmath.NewInt(420_000_000)

	in, err := SwapInput(sdkmath.NewInt(50_000_000), reserveIn, reserveOut, commission)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(9_356_187), in)

	// the computed input must actually cover the requested output
	covered := SwapOutput(in, reserveIn, reserveOut, commission)
	require.True(t, covered.GTE(sdkmath.NewInt(50_000_000)))
}

func TestSwapInputNeverUnderEstimates(t *testing.T) {
	reserveIn := sdkmath.NewInt(137_931_068)
	reserveOut := sdkmath.NewInt(839_161_257)

	for _, want := range []int64{1, 123_456, 1_000_000, 50_000_000, 400_000_000} {
		in, err := SwapInput(sdkmath.NewInt(want), reserveIn, reserveOut, commission)
		require.NoError(t, err)
		out := SwapOutput(in, reserveIn, reserveOut, commission)
		require.True(t, out.GTE(sdkmath.NewInt(want)), "want %d, covered only %s", want, out)
	}
}

func TestSwapInputExceedsReserve(t *testing.T) {
	_, err := SwapInput(
		sdkmath.NewInt(420_000_000),
		sdkmath.NewInt(69_000_000),
		sdkmath.NewInt(420_000_000),
		commission,
	)
	require.ErrorIs(t, err, ErrInsufficientReserve)
}

func TestMintShareFirstProvision(t *testing.T) {
	minted := MintShare(
		sdkmath.NewInt(69_000_000),
		sdkmath.NewInt(420_000_000),
		sdkmath.ZeroInt(), sdkmath.ZeroInt(), sdkmath.ZeroInt(),
	)
	require.Equal(t, sdkmath.NewInt(170_235_131), minted)
}

func TestMintShareProportional(t *testing.T) {
	// the reference bond fixture: secondary leg arrives tax-deducted and binds
	minted := MintShare(
		sdkmath.NewInt(68_931_068),
		sdkmath.NewInt(419_161_257),
		sdkmath.NewInt(69_000_000),
		sdkmath.NewInt(420_000_000),
		sdkmath.NewInt(170_235_131),
	)
	require.Equal(t, sdkmath.NewInt(169_895_170), minted)
}

func TestIntSqrt(t *testing.T) {
	require.Equal(t, sdkmath.NewInt(0), IntSqrt(sdkmath.ZeroInt()))
	require.Equal(t, sdkmath.NewInt(1), IntSqrt(sdkmath.NewInt(3)))
	require.Equal(t, sdkmath.NewInt(2), IntSqrt(sdkmath.NewInt(4)))
	require.Equal(t, sdkmath.NewInt(170_235_131), IntSqrt(sdkmath.NewInt(69_000_000).Mul(sdkmath.NewInt(420_000_000))))
}
