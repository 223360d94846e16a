/*

This file contains the interfaces the engine needs from its external
collaborators: the lending protocol, the AMM pool, the staking adapter and the
price oracle. The engine only ever sees these interfaces; wire formats and
protocol internals stay behind the implementations.

All calls are synchronous request/response within one atomic engine call. A
returned error aborts the whole call; the engine never retries.

*/

package market

import (
	sdkmath "cosmossdk.io/math"

	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/types"
)

// LendingProtocol is the debt-side collaborator.
type LendingProtocol interface {
	// Borrow draws the given amount of the asset and returns the amount
	// actually transferred to the borrower.
	Borrow(asset types.AssetInfo, amount sdkmath.Int) (sdkmath.Int, error)

	// Repay delivers amount of the asset against the borrower's debt.
	Repay(asset types.AssetInfo, amount sdkmath.Int) error

	// QueryDebt returns the borrower's live outstanding debt, interest
	// included. This is ground truth for the debt pool.
	QueryDebt(borrower string) (sdkmath.Int, error)
}

// PoolInfo is a snapshot of the AMM pool's live state.
type PoolInfo struct {
	ReservePrimary   sdkmath.Int `json:"reserve_primary"`
	ReserveSecondary sdkmath.Int `json:"reserve_secondary"`
	TotalShare       sdkmath.Int `json:"total_share"`
}

// SwapResult reports a simulated or executed swap.
type SwapResult struct {
	ReturnAmount sdkmath.Int `json:"return_amount"` // delivered to the caller, tax already deducted
	Spread       sdkmath.Int `json:"spread"`
	Commission   sdkmath.Int `json:"commission"`
}

// Pool is the AMM collaborator. Declared secondary-asset amounts are subject
// to the in-flight transfer tax on both directions.
type Pool interface {
	// ProvideLiquidity deposits the declared pair and returns the pool-share
	// amount minted for what the pool actually received.
	ProvideLiquidity(primary, secondary sdkmath.Int, slippageTolerance sdkmath.LegacyDec) (sdkmath.Int, error)

	// WithdrawLiquidity burns share tokens and returns the delivered amounts
	// (primary, secondary), the secondary leg tax-deducted in flight.
	WithdrawLiquidity(share sdkmath.Int) (sdkmath.Int, sdkmath.Int, error)

	// Swap trades the offered asset for the opposite side and returns the
	// delivered result.
	Swap(offer types.Asset, maxSpread sdkmath.LegacyDec) (SwapResult, error)

	// SimulateSwap prices a swap without executing it.
	SimulateSwap(offer types.Asset) (SwapResult, error)

	// QueryPool returns live reserves and share supply.
	QueryPool() (PoolInfo, error)
}

// StakingAdapter bonds pool-share tokens for farming rewards. Both Bond and
// Unbond auto-claim any accrued reward tokens and deliver them to the staker;
// the returned assets are those claimed amounts.
type StakingAdapter interface {
	Bond(share sdkmath.Int) ([]types.Asset, error)
	Unbond(share sdkmath.Int) ([]types.Asset, error)

	// QueryBonded returns the staker's live bonded pool-share amount. This is
	// ground truth for the bond pool.
	QueryBonded(staker string) (sdkmath.Int, error)
}

// Oracle prices assets the health engine cannot derive from the pool itself.
type Oracle interface {
	QueryPrice(asset types.AssetInfo) (sdkmath.LegacyDec, error)
}

// Bank moves assets out of the strategy to end recipients. Native secondary
// transfers are tax-deducted in flight.
type Bank interface {
	Send(recipient string, asset types.Asset) error
}

// Snapshotter lets the engine model the host environment's atomic message
// handling: collaborator state is captured at call entry and restored
// wholesale if any step fails.
type Snapshotter interface {
	Snapshot() int
	Rollback(id int)
	Release(id int)
}
