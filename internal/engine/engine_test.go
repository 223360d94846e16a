package engine

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/market/mock"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/tax"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/types"
)

const (
	alice      = "alice"
	bob        = "bob"
	liquidator = "larry"
)

func testParams() types.StrategyParams {
	return types.StrategyParams{
		PrimaryAsset:    types.AssetInfo{Kind: types.AssetKindToken, Identifier: "anc"},
		SecondaryAsset:  types.AssetInfo{Kind: types.AssetKindNative, Identifier: "uusd"},
		LendingProtocol: "lending",
		Pool:            "pool",
		PoolShareToken:  "ulp",
		StakingAdapter:  "staking",
		Oracle:          "oracle",
		Treasury:        "treasury",
		Governance:      "governance",
		MaxLTV:          sdkmath.LegacyNewDecWithPrec(75, 2),
		FeeRate:         sdkmath.LegacyNewDecWithPrec(20, 2),
		BonusRate:       sdkmath.LegacyNewDecWithPrec(5, 2),
		TaxRate:         sdkmath.LegacyNewDecWithPrec(1, 3),
		TaxCap:          sdkmath.NewInt(1412510),
		SwapCommission:  sdkmath.LegacyNewDecWithPrec(3, 3),
	}
}

// newTestEngine builds an engine over a freshly seeded mock environment:
// pool reserves (69000000 anc, 420000000 uusd), total share 170235131.
func newTestEngine(t *testing.T) (*Engine, *mock.Env) {
	t.Helper()
	params := testParams()
	env := mock.NewEnv(tax.New(params.TaxRate, params.TaxCap), params.PrimaryAsset, params.SecondaryAsset)
	env.Pool.Seed(sdkmath.NewInt(69_000_000), sdkmath.NewInt(420_000_000), sdkmath.NewInt(170_235_131))

	e, err := New(Config{
		Params:  params,
		Lending: env.Lending,
		Pool:    env.Pool,
		Staking: env.Staking,
		Oracle:  env.Oracle,
		Bank:    env.Bank,
		Env:     env,
	})
	require.NoError(t, err)
	return e, env
}

// openPosition runs the canonical opening call: deposit 69000000 anc, borrow
// 420000000 uusd, bond everything.
func openPosition(t *testing.T, e *Engine, user string) types.Health {
	t.Helper()
	report, err := e.UpdatePosition(user, []types.Instruction{
		types.Deposit(types.NewTokenAsset("anc", sdkmath.NewInt(69_000_000))),
		types.Borrow(sdkmath.NewInt(420_000_000)),
		types.Bond(sdkmath.LegacyDec{}),
	})
	require.NoError(t, err)
	return report
}

func TestOpenPosition(t *testing.T) {
	e, env := newTestEngine(t)
	report := openPosition(t, e, alice)

	position, ok := e.Position(alice)
	require.True(t, ok)
	assert.Equal(t, sdkmath.NewInt(169_895_170_000_000), position.BondUnits)
	assert.Equal(t, sdkmath.NewInt(420_000_000_000_000), position.DebtUnits)
	// the secondary leg binds; the primary dust stays unlocked
	assert.Equal(t, sdkmath.NewInt(68_932), position.Unlocked("anc"))
	assert.True(t, position.Unlocked("uusd").IsZero())

	state := e.State()
	assert.Equal(t, position.BondUnits, state.TotalBondUnits)
	assert.Equal(t, position.DebtUnits, state.TotalDebtUnits)

	// collaborator ground truth after the call
	assert.Equal(t, sdkmath.NewInt(169_895_170), env.Staking.Bonded)
	assert.Equal(t, sdkmath.NewInt(420_000_000), env.Lending.Debts["strategy"])
	assert.Equal(t, sdkmath.NewInt(137_931_068), env.Pool.ReservePrimary)
	assert.Equal(t, sdkmath.NewInt(839_161_257), env.Pool.ReserveSecondary)
	assert.Equal(t, sdkmath.NewInt(340_130_301), env.Pool.TotalShare)

	assert.Equal(t, sdkmath.NewInt(834_046_173), report.BondValue)
	assert.Equal(t, sdkmath.NewInt(420_000_000), report.DebtAmount)
	require.NotNil(t, report.LTV)
	assert.True(t, report.LTV.GT(sdkmath.LegacyNewDecWithPrec(50, 2)))
	assert.True(t, report.LTV.LT(sdkmath.LegacyNewDecWithPrec(51, 2)))
}

func TestSecondDepositorProRata(t *testing.T) {
	e, env := newTestEngine(t)
	openPosition(t, e, alice)

	// interest accrues between the two calls, so bob's borrow mints fewer
	// units per token than alice's did
	env.Lending.AccrueInterest(sdkmath.LegacyNewDecWithPrec(105, 2))

	_, err := e.UpdatePosition(bob, []types.Instruction{
		types.Deposit(types.NewTokenAsset("anc", sdkmath.NewInt(34_500_000))),
		types.Deposit(types.NewNativeAsset("uusd", sdkmath.NewInt(150_000_000))),
		types.Borrow(sdkmath.NewInt(59_164_748)),
		types.Bond(sdkmath.LegacyDec{}),
	})
	require.NoError(t, err)

	position, ok := e.Position(bob)
	require.True(t, ok)
	assert.Equal(t, sdkmath.NewInt(56_347_379_047_619), position.DebtUnits)
	assert.Equal(t, sdkmath.NewInt(84_609_715_000_000), position.BondUnits)
	assert.Equal(t, sdkmath.NewInt(154_402), position.Unlocked("anc"))
	assert.True(t, position.Unlocked("uusd").IsZero())

	// alice's claim on the bonded balance is unchanged in pool-share terms
	report, err := e.Health(alice)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(169_895_170), report.BondAmount)
}

func TestRepayAndWithdraw(t *testing.T) {
	e, env := newTestEngine(t)
	openPosition(t, e, alice)

	_, err := e.UpdatePosition(alice, []types.Instruction{
		types.Deposit(types.NewNativeAsset("uusd", sdkmath.NewInt(100_000_000))),
		types.Repay(sdkmath.NewInt(50_000_000)),
		types.Withdraw(types.NewNativeAsset("uusd", sdkmath.NewInt(49_899_950))),
	})
	require.NoError(t, err)

	position, _ := e.Position(alice)
	// delivering 50000000 to the lending protocol costs its double gross-up
	assert.Equal(t, sdkmath.NewInt(370_000_000_000_000), position.DebtUnits)
	assert.True(t, position.Unlocked("uusd").IsZero())
	assert.Equal(t, sdkmath.NewInt(370_000_000), env.Lending.Debts["strategy"])
	// the withdrawal sheds the in-flight tax twice on its way out
	assert.Equal(t, sdkmath.NewInt(49_800_298), env.Bank.Balance(alice, "uusd"))
}

func TestUpdatePositionErrors(t *testing.T) {
	e, _ := newTestEngine(t)
	openPosition(t, e, alice)

	_, err := e.UpdatePosition(alice, []types.Instruction{
		types.Withdraw(types.NewTokenAsset("anc", sdkmath.NewInt(1_000_000))),
	})
	assert.ErrorIs(t, err, ErrInsufficientUnlockedBalance)

	_, err = e.UpdatePosition(alice, []types.Instruction{
		types.Unbond(sdkmath.NewInt(999_999_999_999_999)),
	})
	assert.ErrorIs(t, err, ErrInsufficientBondUnits)

	_, err = e.UpdatePosition(bob, []types.Instruction{
		types.Deposit(types.NewNativeAsset("uusd", sdkmath.NewInt(1_000_000))),
		types.Repay(sdkmath.NewInt(500_000)),
	})
	assert.ErrorIs(t, err, ErrInsufficientDebtToRepay)
}

func TestWithdrawRejectsNonPositive(t *testing.T) {
	e, env := newTestEngine(t)
	openPosition(t, e, alice)
	before, _ := e.Position(alice)

	// a negative debit would credit the unlocked balance, funding the second
	// withdraw out of thin air
	_, err := e.UpdatePosition(alice, []types.Instruction{
		types.Withdraw(types.NewNativeAsset("uusd", sdkmath.NewInt(-100_000_000))),
		types.Withdraw(types.NewNativeAsset("uusd", sdkmath.NewInt(90_000_000))),
	})
	require.Error(t, err)
	assert.True(t, env.Bank.Balance(alice, "uusd").IsZero())

	_, err = e.UpdatePosition(alice, []types.Instruction{
		types.Withdraw(types.NewNativeAsset("uusd", sdkmath.Int{})),
	})
	require.Error(t, err)

	_, err = e.UpdatePosition(alice, []types.Instruction{
		types.Withdraw(types.NewNativeAsset("uusd", sdkmath.ZeroInt())),
	})
	require.Error(t, err)

	after, _ := e.Position(alice)
	assert.Equal(t, before.Unlocked("anc"), after.Unlocked("anc"))
	assert.Equal(t, before.Unlocked("uusd"), after.Unlocked("uusd"))
}

func TestUnhealthyCallAborts(t *testing.T) {
	e, env := newTestEngine(t)
	openPosition(t, e, alice)
	before, _ := e.Position(alice)
	debtBefore := env.Lending.Debts["strategy"]

	// another 400M of debt against the same collateral pushes LTV near 1
	_, err := e.UpdatePosition(alice, []types.Instruction{
		types.Borrow(sdkmath.NewInt(400_000_000)),
	})
	require.ErrorIs(t, err, ErrUnhealthyPosition)

	after, _ := e.Position(alice)
	assert.Equal(t, before.BondUnits, after.BondUnits)
	assert.Equal(t, before.DebtUnits, after.DebtUnits)
	assert.Equal(t, before.Unlocked("anc"), after.Unlocked("anc"))
	assert.Equal(t, before.Unlocked("uusd"), after.Unlocked("uusd"))
	assert.Equal(t, debtBefore, env.Lending.Debts["strategy"])
	assert.Equal(t, sdkmath.NewInt(137_931_068), env.Pool.ReservePrimary)

	state := e.State()
	assert.Equal(t, before.BondUnits, state.TotalBondUnits)
	assert.Equal(t, before.DebtUnits, state.TotalDebtUnits)
}

func TestLiquidateRecoversDebt(t *testing.T) {
	e, env := newTestEngine(t)
	openPosition(t, e, alice)
	env.Lending.AccrueInterest(sdkmath.LegacyNewDecWithPrec(140, 2))

	receipt, err := e.Liquidate(liquidator, alice, sdkmath.LegacyDec{})
	require.NoError(t, err)

	assert.Equal(t, sdkmath.NewInt(588_000_000), receipt.DebtRepaid)
	assert.Equal(t, sdkmath.NewInt(420_000_000_000_000), receipt.UnitsBurned)
	assert.Nil(t, receipt.BadDebt)

	// 5% of the leftover primary collateral goes to the liquidator; the
	// remainder stays on alice's unlocked balance rather than being sent out
	assert.Equal(t, sdkmath.NewInt(1_075_058), receipt.Bonus["anc"])
	assert.Equal(t, sdkmath.NewInt(20_426_118), receipt.Refunded["anc"])
	assert.Equal(t, sdkmath.NewInt(6), receipt.Refunded["uusd"])
	assert.Equal(t, sdkmath.NewInt(1_075_058), env.Bank.Balance(liquidator, "anc"))
	assert.True(t, env.Bank.Balance(alice, "anc").IsZero())

	position, _ := e.Position(alice)
	assert.True(t, position.BondUnits.IsZero())
	assert.True(t, position.DebtUnits.IsZero())
	assert.Equal(t, sdkmath.NewInt(20_426_118), position.Unlocked("anc"))
	assert.Equal(t, sdkmath.NewInt(6), position.Unlocked("uusd"))
	assert.True(t, env.Lending.Debts["strategy"].IsZero())

	report, err := e.Health(alice)
	require.NoError(t, err)
	assert.Nil(t, report.LTV)

	state := e.State()
	assert.True(t, state.TotalBondUnits.IsZero())
	assert.True(t, state.TotalDebtUnits.IsZero())
}

func TestLiquidateBadDebt(t *testing.T) {
	e, env := newTestEngine(t)
	openPosition(t, e, alice)
	// debt triples; even selling all recovered collateral cannot cover it
	env.Lending.AccrueInterest(sdkmath.LegacyNewDec(3))

	recorder := &capturingRecorder{}
	e.recorder = recorder

	receipt, err := e.Liquidate(liquidator, alice, sdkmath.LegacyDec{})
	require.NoError(t, err)

	assert.Equal(t, sdkmath.NewInt(626_545_157), receipt.DebtRepaid)
	assert.Equal(t, sdkmath.NewInt(208_848_385_666_666), receipt.UnitsBurned)
	require.NotNil(t, receipt.BadDebt)
	assert.Equal(t, sdkmath.NewInt(211_151_614_333_334), receipt.BadDebt.UnitsWrittenOff)
	assert.Equal(t, sdkmath.NewInt(633_454_843), receipt.BadDebt.ShortfallAmount)
	assert.Equal(t, alice, receipt.BadDebt.User)
	require.Len(t, recorder.badDebt, 1)
	assert.Equal(t, *receipt.BadDebt, recorder.badDebt[0])

	// the written-off units leave the ledger; the shortfall stays owed at the
	// lending protocol
	state := e.State()
	assert.True(t, state.TotalDebtUnits.IsZero())
	assert.Equal(t, sdkmath.NewInt(633_454_843), env.Lending.Debts["strategy"])

	assert.Empty(t, receipt.Bonus)
	assert.Empty(t, receipt.Refunded)
}

func TestLiquidateSlippageGuard(t *testing.T) {
	e, env := newTestEngine(t)
	openPosition(t, e, alice)
	env.Lending.AccrueInterest(sdkmath.LegacyNewDecWithPrec(140, 2))
	before := e.State()

	// the cover swap moves a quarter of the primary reserve; a 1% cap trips
	_, err := e.Liquidate(liquidator, alice, sdkmath.LegacyNewDecWithPrec(1, 2))
	require.ErrorIs(t, err, ErrSlippageExceeded)
	require.ErrorIs(t, err, ErrExternalCall)

	// rolled back wholesale
	after := e.State()
	assert.Equal(t, before.TotalBondUnits, after.TotalBondUnits)
	assert.Equal(t, before.TotalDebtUnits, after.TotalDebtUnits)
	assert.Equal(t, sdkmath.NewInt(588_000_000), env.Lending.Debts["strategy"])
	assert.Equal(t, sdkmath.NewInt(137_931_068), env.Pool.ReservePrimary)
	assert.Equal(t, sdkmath.NewInt(169_895_170), env.Staking.Bonded)
}

func TestLiquidateNothing(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Liquidate(liquidator, bob, sdkmath.LegacyDec{})
	assert.ErrorIs(t, err, ErrNothingToLiquidate)
}

func TestHarvestCompounds(t *testing.T) {
	e, env := newTestEngine(t)
	openPosition(t, e, alice)
	bondedBefore := env.Staking.Bonded

	env.Staking.Accrue(types.NewTokenAsset("anc", sdkmath.NewInt(10_000_000)))

	receipt, err := e.Harvest(sdkmath.LegacyDec{}, sdkmath.LegacyDec{})
	require.NoError(t, err)

	assert.Equal(t, sdkmath.NewInt(10_000_000), receipt.Claimed["anc"])
	assert.Equal(t, sdkmath.NewInt(2_000_000), receipt.FeesSkimmed["anc"])
	assert.Equal(t, sdkmath.NewInt(9_585_790), receipt.SharesBonded)
	assert.Equal(t, sdkmath.NewInt(2_000_000), env.Bank.Balance("treasury", "anc"))
	assert.Equal(t, sdkmath.NewInt(179_480_960), env.Staking.Bonded)
	assert.True(t, env.Staking.Bonded.GT(bondedBefore))

	// compounding grows the bonded balance without minting units
	state := e.State()
	assert.Equal(t, sdkmath.NewInt(169_895_170_000_000), state.TotalBondUnits)
	assert.Equal(t, sdkmath.NewInt(526_010), state.PendingRewards["uusd"])

	report, err := e.Health(alice)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(179_480_960), report.BondAmount)
}

func TestHarvestNothingPending(t *testing.T) {
	e, env := newTestEngine(t)
	openPosition(t, e, alice)
	bondedBefore := env.Staking.Bonded

	receipt, err := e.Harvest(sdkmath.LegacyDec{}, sdkmath.LegacyDec{})
	require.NoError(t, err)
	assert.True(t, receipt.SharesBonded.IsZero())
	assert.Empty(t, receipt.Claimed)
	assert.Equal(t, bondedBefore, env.Staking.Bonded)
}

func TestPositionsPagination(t *testing.T) {
	e, _ := newTestEngine(t)
	users := []string{"u01", "u02", "u03", "u04", "u05", "u06", "u07", "u08", "u09", "u10", "u11", "u12"}
	for _, user := range users {
		_, err := e.UpdatePosition(user, []types.Instruction{
			types.Deposit(types.NewNativeAsset("uusd", sdkmath.NewInt(1_000))),
		})
		require.NoError(t, err)
	}

	page := e.Positions("", 0)
	require.Len(t, page, 10) // default limit
	assert.Equal(t, "u01", page[0].User)
	assert.Equal(t, "u10", page[9].User)

	page = e.Positions("u10", 5)
	require.Len(t, page, 2)
	assert.Equal(t, "u11", page[0].User)
	assert.Equal(t, "u12", page[1].User)

	page = e.Positions("", 100)
	assert.Len(t, page, 12) // cap is 30, all twelve fit
}

type capturingRecorder struct {
	badDebt  []types.BadDebtEvent
	harvests []types.HarvestReceipt
}

func (r *capturingRecorder) RecordCall(string, string, string, types.GlobalState, *types.PositionRecord) error {
	return nil
}

func (r *capturingRecorder) RecordBadDebt(event types.BadDebtEvent) error {
	r.badDebt = append(r.badDebt, event)
	return nil
}

func (r *capturingRecorder) RecordHarvest(receipt types.HarvestReceipt) error {
	r.harvests = append(r.harvests, receipt)
	return nil
}
