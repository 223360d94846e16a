/*

This file contains the structured event records emitted by the engine. Events
are returned to the caller and mirrored into the audit store; they are not
errors.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// BadDebtEvent records debt written off a liquidated position that could not
// be recovered from its collateral. The shortfall stays owed at the lending
// protocol until an external actor repays it on the strategy's behalf.
type BadDebtEvent struct {
	CallID          string      `json:"call_id"`
	User            string      `json:"user"`
	UnitsWrittenOff sdkmath.Int `json:"units_written_off"`
	ShortfallAmount sdkmath.Int `json:"shortfall_amount"` // secondary asset left unpaid
	Timestamp       time.Time   `json:"timestamp"`
}

// LiquidationReceipt summarizes one liquidation call.
type LiquidationReceipt struct {
	CallID         string                 `json:"call_id"`
	User           string                 `json:"user"`
	Liquidator     string                 `json:"liquidator"`
	DebtRepaid     sdkmath.Int            `json:"debt_repaid"`
	UnitsBurned    sdkmath.Int            `json:"units_burned"`
	Bonus          map[string]sdkmath.Int `json:"bonus"`    // per asset identifier, paid to the liquidator
	Refunded       map[string]sdkmath.Int `json:"refunded"` // per asset identifier, returned to the owner
	BadDebt        *BadDebtEvent          `json:"bad_debt,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
}

// HarvestReceipt summarizes one harvest call.
type HarvestReceipt struct {
	CallID       string                 `json:"call_id"`
	Claimed      map[string]sdkmath.Int `json:"claimed"`       // rewards claimed, per asset identifier
	FeesSkimmed  map[string]sdkmath.Int `json:"fees_skimmed"`  // treasury skim, per asset identifier
	SharesBonded sdkmath.Int            `json:"shares_bonded"` // pool-share tokens added to the bonded balance
	Timestamp    time.Time              `json:"timestamp"`
}
