/*

This file contains the ledger state types: the per-user Position, the shared
GlobalState, and the health report computed by the valuation engine.

*/

package types

import (
	"sort"

	sdkmath "cosmossdk.io/math"
)

// Position is the per-user ledger record. Created lazily on first deposit and
// never deleted; a record with zero units is economically closed but still
// readable, so repeat deposits by the same address are idempotent.
type Position struct {
	BondUnits      sdkmath.Int            `json:"bond_units"`      // proportional claim on the bonded pool-share balance
	DebtUnits      sdkmath.Int            `json:"debt_units"`      // proportional claim on the owed debt balance
	UnlockedAssets map[string]sdkmath.Int `json:"unlocked_assets"` // scratch balances keyed by asset identifier
}

// NewPosition returns an empty position record.
func NewPosition() *Position {
	return &Position{
		BondUnits:      sdkmath.ZeroInt(),
		DebtUnits:      sdkmath.ZeroInt(),
		UnlockedAssets: map[string]sdkmath.Int{},
	}
}

// IsClosed reports whether the position carries no units and no unlocked
// balances.
func (p *Position) IsClosed() bool {
	if !p.BondUnits.IsZero() || !p.DebtUnits.IsZero() {
		return false
	}
	for _, amount := range p.UnlockedAssets {
		if !amount.IsZero() {
			return false
		}
	}
	return true
}

// Unlocked returns the unlocked balance for an asset identifier, zero if the
// key is absent.
func (p *Position) Unlocked(id string) sdkmath.Int {
	if amount, ok := p.UnlockedAssets[id]; ok {
		return amount
	}
	return sdkmath.ZeroInt()
}

// CreditUnlocked adds to an unlocked balance.
func (p *Position) CreditUnlocked(id string, amount sdkmath.Int) {
	p.UnlockedAssets[id] = p.Unlocked(id).Add(amount)
}

// DebitUnlocked subtracts from an unlocked balance. Callers check sufficiency
// first; Int arithmetic does not go negative silently.
func (p *Position) DebitUnlocked(id string, amount sdkmath.Int) {
	p.UnlockedAssets[id] = p.Unlocked(id).Sub(amount)
}

// UnlockedIDs returns the unlocked asset identifiers in sorted order so
// settlement output is deterministic regardless of map iteration order.
func (p *Position) UnlockedIDs() []string {
	ids := make([]string, 0, len(p.UnlockedAssets))
	for id := range p.UnlockedAssets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone deep-copies the position.
func (p *Position) Clone() *Position {
	out := NewPosition()
	out.BondUnits = p.BondUnits
	out.DebtUnits = p.DebtUnits
	for id, amount := range p.UnlockedAssets {
		out.UnlockedAssets[id] = amount
	}
	return out
}

// GlobalState is the strategy-wide ledger shared by all positions.
// Invariant between calls: TotalBondUnits and TotalDebtUnits equal the sums
// over all position records.
type GlobalState struct {
	TotalBondUnits sdkmath.Int            `json:"total_bond_units"`
	TotalDebtUnits sdkmath.Int            `json:"total_debt_units"`
	PendingRewards map[string]sdkmath.Int `json:"pending_rewards"` // claimed but not yet reinvested, keyed by asset identifier
}

// NewGlobalState returns an empty global ledger.
func NewGlobalState() *GlobalState {
	return &GlobalState{
		TotalBondUnits: sdkmath.ZeroInt(),
		TotalDebtUnits: sdkmath.ZeroInt(),
		PendingRewards: map[string]sdkmath.Int{},
	}
}

// AddPendingReward accumulates a claimed reward balance.
func (g *GlobalState) AddPendingReward(id string, amount sdkmath.Int) {
	if amount.IsZero() {
		return
	}
	if existing, ok := g.PendingRewards[id]; ok {
		g.PendingRewards[id] = existing.Add(amount)
	} else {
		g.PendingRewards[id] = amount
	}
}

// PendingRewardIDs returns the reward asset identifiers in sorted order so
// harvest output is deterministic regardless of map iteration order.
func (g *GlobalState) PendingRewardIDs() []string {
	ids := make([]string, 0, len(g.PendingRewards))
	for id := range g.PendingRewards {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone deep-copies the global state.
func (g *GlobalState) Clone() *GlobalState {
	out := NewGlobalState()
	out.TotalBondUnits = g.TotalBondUnits
	out.TotalDebtUnits = g.TotalDebtUnits
	for id, amount := range g.PendingRewards {
		out.PendingRewards[id] = amount
	}
	return out
}

// Health is the valuation report for one user, or for the whole strategy when
// queried without a user.
type Health struct {
	BondAmount sdkmath.Int        `json:"bond_amount"` // pool-share tokens attributable to the subject
	BondValue  sdkmath.Int        `json:"bond_value"`  // secondary-asset value of the bonded share
	DebtAmount sdkmath.Int        `json:"debt_amount"` // secondary-asset debt attributable to the subject
	DebtValue  sdkmath.Int        `json:"debt_value"`  // DebtAmount at the oracle's secondary price
	LTV        *sdkmath.LegacyDec `json:"ltv"`         // nil only for a fully closed position
}

// PositionRecord pairs a position with its owner for paginated listings.
type PositionRecord struct {
	User     string   `json:"user"`
	Position Position `json:"position"`
}
