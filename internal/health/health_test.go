package health

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/market/mock"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/tax"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/types"
)

var (
	primary   = types.AssetInfo{Kind: types.AssetKindToken, Identifier: "anc"}
	secondary = types.AssetInfo{Kind: types.AssetKindNative, Identifier: "uusd"}
)

func testAssessor() (*Assessor, *mock.Env) {
	params := types.StrategyParams{
		PrimaryAsset:   primary,
		SecondaryAsset: secondary,
	}
	env := mock.NewEnv(tax.New(sdkmath.LegacyNewDecWithPrec(1, 3), sdkmath.NewInt(1412510)), primary, secondary)
	return NewAssessor(params, env.Pool, env.Staking, env.Lending, env.Oracle), env
}

func TestQueryTotals(t *testing.T) {
	a, env := testAssessor()
	// strategy holding 169895170 of 340130301 pool shares against 420M debt
	env.Pool.Seed(sdkmath.NewInt(137_931_068), sdkmath.NewInt(839_161_257), sdkmath.NewInt(340_130_301))
	env.Staking.Bonded = sdkmath.NewInt(169_895_170)
	env.Lending.Debts["strategy"] = sdkmath.NewInt(420_000_000)

	totals, err := a.QueryTotals()
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(169_895_170), totals.TotalBondAmount)
	assert.Equal(t, sdkmath.NewInt(834_046_173), totals.TotalBondValue)
	assert.Equal(t, sdkmath.NewInt(420_000_000), totals.TotalDebtAmount)
}

func TestQueryTotalsEmptyStrategy(t *testing.T) {
	a, env := testAssessor()
	env.Pool.Seed(sdkmath.NewInt(69_000_000), sdkmath.NewInt(420_000_000), sdkmath.NewInt(170_235_131))

	totals, err := a.QueryTotals()
	require.NoError(t, err)
	assert.True(t, totals.TotalBondAmount.IsZero())
	assert.True(t, totals.TotalBondValue.IsZero())
}

func TestAssess(t *testing.T) {
	a, env := testAssessor()
	env.Pool.Seed(sdkmath.NewInt(137_931_068), sdkmath.NewInt(839_161_257), sdkmath.NewInt(340_130_301))
	env.Staking.Bonded = sdkmath.NewInt(169_895_170)
	env.Lending.Debts["strategy"] = sdkmath.NewInt(420_000_000)

	totals, err := a.QueryTotals()
	require.NoError(t, err)

	state := types.NewGlobalState()
	state.TotalBondUnits = sdkmath.NewInt(169_895_170_000_000)
	state.TotalDebtUnits = sdkmath.NewInt(420_000_000_000_000)

	// the sole position holds every unit
	position := types.NewPosition()
	position.BondUnits = state.TotalBondUnits
	position.DebtUnits = state.TotalDebtUnits

	report := a.Assess(totals, state, position)
	assert.Equal(t, sdkmath.NewInt(169_895_170), report.BondAmount)
	assert.Equal(t, sdkmath.NewInt(834_046_173), report.BondValue)
	assert.Equal(t, sdkmath.NewInt(420_000_000), report.DebtAmount)
	assert.Equal(t, report.DebtAmount, report.DebtValue)
	require.NotNil(t, report.LTV)
	assert.True(t, report.LTV.GT(sdkmath.LegacyNewDecWithPrec(50, 2)))
	assert.True(t, report.LTV.LT(sdkmath.LegacyNewDecWithPrec(51, 2)))

	// half the units claim half the value
	position.BondUnits = state.TotalBondUnits.QuoRaw(2)
	report = a.Assess(totals, state, position)
	assert.Equal(t, sdkmath.NewInt(417_023_086), report.BondValue)
}

func TestAssessClosedPosition(t *testing.T) {
	a, env := testAssessor()
	env.Pool.Seed(sdkmath.NewInt(69_000_000), sdkmath.NewInt(420_000_000), sdkmath.NewInt(170_235_131))

	totals, err := a.QueryTotals()
	require.NoError(t, err)

	report := a.Assess(totals, types.NewGlobalState(), types.NewPosition())
	assert.True(t, report.BondValue.IsZero())
	assert.True(t, report.DebtAmount.IsZero())
	assert.Nil(t, report.LTV)
}

func TestAssessDebtWithoutBond(t *testing.T) {
	// degenerate state: the report must not divide by zero
	report := newHealth(sdkmath.ZeroInt(), sdkmath.ZeroInt(), sdkmath.NewInt(1_000_000), sdkmath.LegacyOneDec())
	require.NotNil(t, report.LTV)
	assert.Equal(t, sdkmath.LegacyNewDec(1_000_000), *report.LTV)
}
