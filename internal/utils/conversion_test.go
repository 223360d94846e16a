package utils

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSDKIntToFloat64(t *testing.T) {
	value, err := SDKIntToFloat64(sdkmath.NewInt(420_000_000), 6)
	require.NoError(t, err)
	assert.InDelta(t, 420.0, value, 1e-9)

	value, err = SDKIntToFloat64(sdkmath.NewInt(1), 6)
	require.NoError(t, err)
	assert.InDelta(t, 0.000001, value, 1e-12)

	value, err = SDKIntToFloat64(sdkmath.ZeroInt(), 0)
	require.NoError(t, err)
	assert.Zero(t, value)
}

func TestSDKIntToFloat64Errors(t *testing.T) {
	_, err := SDKIntToFloat64(sdkmath.NewInt(1), 19)
	assert.ErrorIs(t, err, ErrInvalidPrecision)

	_, err = SDKIntToFloat64(sdkmath.Int{}, 6)
	assert.ErrorIs(t, err, ErrAmountNil)

	_, err = SDKIntToFloat64(sdkmath.NewInt(-5), 6)
	assert.ErrorIs(t, err, ErrAmountNegative)
}
