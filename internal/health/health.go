/*

This file contains the health/valuation engine. It converts the strategy's
bonded pool-share balance and outstanding debt into a manipulation-resistant
value and a per-user loan-to-value ratio.

Ground truth comes from live collaborator queries (pool reserves, bonded
share, outstanding debt), never from the unit ledger itself; the unit ledger
only apportions those totals across users.

*/

package health

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/amm"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/ledger"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/market"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/types"
)

// ProbeAmount is the primary-asset amount used to discover the spot price by
// simulated swap: one whole token at six decimals. Probing with a realistic
// trade size keeps the price meaningful despite integer truncation.
const ProbeAmount = 1_000_000

// Assessor values positions against live collaborator state.
type Assessor struct {
	params  types.StrategyParams
	pool    market.Pool
	staking market.StakingAdapter
	lending market.LendingProtocol
	oracle  market.Oracle
}

// NewAssessor builds an Assessor over the given collaborators.
func NewAssessor(params types.StrategyParams, pool market.Pool, staking market.StakingAdapter, lending market.LendingProtocol, oracle market.Oracle) *Assessor {
	return &Assessor{params: params, pool: pool, staking: staking, lending: lending, oracle: oracle}
}

// Totals is the strategy-wide valuation snapshot all per-user reports derive
// from.
type Totals struct {
	PoolInfo        market.PoolInfo
	TotalBondAmount sdkmath.Int       // pool-share tokens the strategy has staked
	TotalBondValue  sdkmath.Int       // secondary-asset value of that share
	TotalDebtAmount sdkmath.Int       // live debt owed by the strategy
	SecondaryPrice  sdkmath.LegacyDec // oracle price of the secondary asset, nominally 1
}

// QueryTotals loads ground truth from the collaborators and computes the fair
// value of the strategy's bonded share.
//
// The pool value is 2*sqrt(primary_value * secondary_value) rather than the
// naive sum: a trade that skews the reserve ratio inflates one term while
// shrinking the other, leaving the geometric mean nearly unchanged, so a
// flash swap cannot meaningfully move the valuation.
func (a *Assessor) QueryTotals() (Totals, error) {
	info, err := a.pool.QueryPool()
	if err != nil {
		return Totals{}, fmt.Errorf("query pool: %w", err)
	}

	bonded, err := a.staking.QueryBonded(market.StrategyAddress)
	if err != nil {
		return Totals{}, fmt.Errorf("query bonded: %w", err)
	}

	debt, err := a.lending.QueryDebt(market.StrategyAddress)
	if err != nil {
		return Totals{}, fmt.Errorf("query debt: %w", err)
	}

	// The secondary asset is a stable nominally worth 1; the oracle catches a
	// depeg before the LTV math quietly understates the debt.
	price, err := a.oracle.QueryPrice(a.params.SecondaryAsset)
	if err != nil {
		return Totals{}, fmt.Errorf("query secondary price: %w", err)
	}

	totalBondValue := sdkmath.ZeroInt()
	if bonded.IsPositive() && info.TotalShare.IsPositive() {
		probe := a.params.PrimaryAsset.WithAmount(sdkmath.NewInt(ProbeAmount))
		sim, err := a.pool.SimulateSwap(probe)
		if err != nil {
			return Totals{}, fmt.Errorf("simulate probe swap: %w", err)
		}
		primaryValue := info.ReservePrimary.Mul(sim.ReturnAmount).QuoRaw(ProbeAmount)
		secondaryValue := info.ReserveSecondary
		poolValue := amm.IntSqrt(primaryValue.Mul(secondaryValue)).MulRaw(2)
		totalBondValue = poolValue.Mul(bonded).Quo(info.TotalShare)
	}

	return Totals{
		PoolInfo:        info,
		TotalBondAmount: bonded,
		TotalBondValue:  totalBondValue,
		TotalDebtAmount: debt,
		SecondaryPrice:  price,
	}, nil
}

// Assess values one position against the given totals and unit ledger state.
func (a *Assessor) Assess(totals Totals, state *types.GlobalState, position *types.Position) types.Health {
	bondAmount := ledger.AmountForUnits(position.BondUnits, state.TotalBondUnits, totals.TotalBondAmount)
	bondValue := sdkmath.ZeroInt()
	if state.TotalBondUnits.IsPositive() {
		bondValue = totals.TotalBondValue.Mul(position.BondUnits).Quo(state.TotalBondUnits)
	}

	debtAmount := ledger.AmountForUnits(position.DebtUnits, state.TotalDebtUnits, totals.TotalDebtAmount)

	return newHealth(bondAmount, bondValue, debtAmount, totals.SecondaryPrice)
}

// AssessStrategy values the whole strategy as if it were a single position.
func (a *Assessor) AssessStrategy(totals Totals) types.Health {
	return newHealth(totals.TotalBondAmount, totals.TotalBondValue, totals.TotalDebtAmount, totals.SecondaryPrice)
}

// newHealth fills the report; LTV is nil only for a fully closed position.
func newHealth(bondAmount, bondValue, debtAmount sdkmath.Int, secondaryPrice sdkmath.LegacyDec) types.Health {
	debtValue := debtAmount
	if !secondaryPrice.IsNil() {
		debtValue = secondaryPrice.MulInt(debtAmount).TruncateInt()
	}
	h := types.Health{
		BondAmount: bondAmount,
		BondValue:  bondValue,
		DebtAmount: debtAmount,
		DebtValue:  debtValue,
	}
	if bondValue.IsZero() && debtValue.IsZero() {
		return h
	}
	var ltv sdkmath.LegacyDec
	if bondValue.IsZero() {
		// degenerate: debt with no collateral; report an effectively infinite
		// ratio rather than dividing by zero
		ltv = sdkmath.LegacyNewDec(1_000_000)
	} else {
		ltv = sdkmath.LegacyNewDecFromInt(debtValue).QuoInt(bondValue)
	}
	h.LTV = &ltv
	return h
}
