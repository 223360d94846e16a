/*

This file contains the position mutation pipeline: the ordered execution of
deposit/withdraw/borrow/repay/bond/unbond instructions for one user, followed
by the single post-call health check.

All instructions in one call mutate the same working copy of the ledger; the
copy replaces the live ledger only after the final health check passes, and
collaborator state is rolled back wholesale on any failure.

*/

package engine

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"

	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/ledger"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/market"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/types"
)

// UpdatePosition executes the caller-supplied instructions strictly in order
// against the caller's position, then enforces the health invariant once. On
// any failure the whole call is rolled back and the error describes the
// failing step.
func (e *Engine) UpdatePosition(user string, instructions []types.Instruction) (types.Health, error) {
	callID := uuid.NewString()
	log := e.logger.With().Str("call_id", callID).Str("user", user).Logger()

	snap := e.env.Snapshot()
	work := e.ledger.clone()
	position := work.position(user)

	for i, instruction := range instructions {
		if err := e.execute(work, user, position, instruction); err != nil {
			e.env.Rollback(snap)
			log.Warn().Err(err).Int("step", i).Str("type", string(instruction.Type)).Msg("Position update aborted")
			return types.Health{}, fmt.Errorf("instruction %d (%s): %w", i, instruction.Type, err)
		}
	}

	// The health invariant is evaluated exactly once, after the last
	// instruction; intermediate steps may pass through any ratio.
	totals, err := e.assessor.QueryTotals()
	if err != nil {
		e.env.Rollback(snap)
		return types.Health{}, fmt.Errorf("%w: %w", ErrExternalCall, err)
	}
	report := e.assessor.Assess(totals, work.global, position)
	if report.LTV != nil && report.LTV.GT(e.params.MaxLTV) {
		e.env.Rollback(snap)
		log.Warn().Str("ltv", report.LTV.String()).Str("max_ltv", e.params.MaxLTV.String()).Msg("Position update rejected as unhealthy")
		return types.Health{}, fmt.Errorf("ltv %s vs max %s: %w", report.LTV, e.params.MaxLTV, ErrUnhealthyPosition)
	}

	e.env.Release(snap)
	e.ledger = work
	e.checkInvariant(work)
	e.record(callID, "update_position", user, work)

	log.Info().
		Int("instructions", len(instructions)).
		Str("bond_units", position.BondUnits.String()).
		Str("debt_units", position.DebtUnits.String()).
		Msg("Position updated")
	return report, nil
}

// execute dispatches one instruction against the working state.
func (e *Engine) execute(work *ledgerState, user string, position *types.Position, instruction types.Instruction) error {
	switch instruction.Type {
	case types.InstructionDeposit:
		return e.executeDeposit(position, instruction.Asset)
	case types.InstructionWithdraw:
		return e.executeWithdraw(user, position, instruction.Asset)
	case types.InstructionBorrow:
		return e.executeBorrow(work, position, instruction.Amount)
	case types.InstructionRepay:
		return e.executeRepay(work, position, instruction.Amount)
	case types.InstructionBond:
		return e.executeBond(work, position, instruction.SlippageTolerance)
	case types.InstructionUnbond:
		return e.executeUnbond(work, position, instruction.BondUnits)
	default:
		return fmt.Errorf("%q: %w", instruction.Type, ErrUnknownInstruction)
	}
}

// executeDeposit credits assets the caller attached to the call.
func (e *Engine) executeDeposit(position *types.Position, asset types.Asset) error {
	if asset.Amount.IsNil() || asset.Amount.IsNegative() {
		return fmt.Errorf("deposit amount must be non-negative")
	}
	position.CreditUnlocked(asset.Info.Identifier, asset.Amount)
	return nil
}

// executeWithdraw debits an unlocked balance and schedules the outbound
// transfer, declared through the tax helper for the native secondary asset.
func (e *Engine) executeWithdraw(user string, position *types.Position, asset types.Asset) error {
	if asset.Amount.IsNil() || !asset.Amount.IsPositive() {
		return fmt.Errorf("withdraw amount must be positive")
	}
	id := asset.Info.Identifier
	if position.Unlocked(id).LT(asset.Amount) {
		return fmt.Errorf("withdraw %s of %s, unlocked %s: %w",
			asset.Amount, id, position.Unlocked(id), ErrInsufficientUnlockedBalance)
	}
	position.DebitUnlocked(id, asset.Amount)

	outbound := asset
	if e.isTaxedSecondary(asset.Info) {
		outbound.Amount = e.taxCalc.DeductTax(asset.Amount)
	}
	if err := e.bank.Send(user, outbound); err != nil {
		return fmt.Errorf("%w: %w", ErrExternalCall, err)
	}
	return nil
}

// executeBorrow draws secondary asset from the lending protocol, minting debt
// units against the debt pool's state before this borrow.
func (e *Engine) executeBorrow(work *ledgerState, position *types.Position, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("borrow amount must be positive")
	}

	debtBefore, err := e.lending.QueryDebt(market.StrategyAddress)
	if err != nil {
		return fmt.Errorf("%w: query debt: %w", ErrExternalCall, err)
	}
	units, err := ledger.UnitsToMint(amount, debtBefore, work.global.TotalDebtUnits)
	if err != nil {
		return err
	}

	transferred, err := e.lending.Borrow(e.params.SecondaryAsset, amount)
	if err != nil {
		return fmt.Errorf("%w: borrow: %w", ErrExternalCall, err)
	}

	position.CreditUnlocked(e.secondaryID(), transferred)
	position.DebtUnits = position.DebtUnits.Add(units)
	work.global.TotalDebtUnits = work.global.TotalDebtUnits.Add(units)
	return nil
}

// executeRepay delivers secondary asset to the lending protocol, burning debt
// units against the debt pool's state before this repay. The amount is capped
// at the user's own outstanding debt.
func (e *Engine) executeRepay(work *ledgerState, position *types.Position, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("repay amount must be positive")
	}

	debtBefore, err := e.lending.QueryDebt(market.StrategyAddress)
	if err != nil {
		return fmt.Errorf("%w: query debt: %w", ErrExternalCall, err)
	}
	owed := ledger.AmountForUnits(position.DebtUnits, work.global.TotalDebtUnits, debtBefore)
	if owed.IsZero() {
		return ErrInsufficientDebtToRepay
	}
	if amount.GT(owed) {
		amount = owed
	}

	declared := e.taxCalc.AddTax(amount)
	debit := e.taxCalc.AddTax(declared)
	unlocked := position.Unlocked(e.secondaryID())
	if unlocked.LT(debit) {
		return fmt.Errorf("repay costs %s, unlocked %s: %w", debit, unlocked, ErrInsufficientUnlockedBalance)
	}

	var units sdkmath.Int
	if amount.Equal(owed) {
		// full repay burns the exact unit balance so no dust units survive
		units = position.DebtUnits
	} else {
		units, err = ledger.UnitsToMint(amount, debtBefore, work.global.TotalDebtUnits)
		if err != nil {
			return err
		}
		if units.GT(position.DebtUnits) {
			units = position.DebtUnits
		}
	}

	if err := e.lending.Repay(e.params.SecondaryAsset, declared); err != nil {
		return fmt.Errorf("%w: repay: %w", ErrExternalCall, err)
	}

	position.DebitUnlocked(e.secondaryID(), debit)
	position.DebtUnits = position.DebtUnits.Sub(units)
	work.global.TotalDebtUnits = work.global.TotalDebtUnits.Sub(units)
	return nil
}

// executeBond pairs the unlocked primary/secondary balances at the pool's
// live ratio, provides liquidity and stakes the minted pool share, minting
// bond units against the bond pool's state before this bond. Dust on the
// non-binding side stays unlocked.
func (e *Engine) executeBond(work *ledgerState, position *types.Position, slippageTolerance sdkmath.LegacyDec) error {
	availPrimary := position.Unlocked(e.primaryID())
	availSecondary := position.Unlocked(e.secondaryID())
	if availPrimary.IsZero() && availSecondary.IsZero() {
		return fmt.Errorf("nothing to bond: %w", ErrInsufficientUnlockedBalance)
	}

	info, err := e.pool.QueryPool()
	if err != nil {
		return fmt.Errorf("%w: query pool: %w", ErrExternalCall, err)
	}

	// Match the two legs against the live ratio. The declared secondary
	// amount is what the engine instructs; the pool receives it tax-deducted.
	declaredSecondary := e.taxCalc.DeductTax(availSecondary)
	providePrimary := declaredSecondary.Mul(info.ReservePrimary).Quo(info.ReserveSecondary)
	if providePrimary.GT(availPrimary) {
		// primary side binds
		providePrimary = availPrimary
		netSecondary := availPrimary.Mul(info.ReserveSecondary).Quo(info.ReservePrimary)
		declaredSecondary = e.taxCalc.AddTax(netSecondary)
	}
	debitSecondary := e.taxCalc.AddTax(declaredSecondary)
	if debitSecondary.GT(availSecondary) {
		debitSecondary = availSecondary
	}

	bondedBefore, err := e.staking.QueryBonded(market.StrategyAddress)
	if err != nil {
		return fmt.Errorf("%w: query bonded: %w", ErrExternalCall, err)
	}

	minted, err := e.pool.ProvideLiquidity(providePrimary, declaredSecondary, slippageTolerance)
	if err != nil {
		return fmt.Errorf("%w: provide liquidity: %w", ErrExternalCall, err)
	}
	units, err := ledger.UnitsToMint(minted, bondedBefore, work.global.TotalBondUnits)
	if err != nil {
		return err
	}

	claimed, err := e.staking.Bond(minted)
	if err != nil {
		return fmt.Errorf("%w: bond: %w", ErrExternalCall, err)
	}
	for _, reward := range claimed {
		work.global.AddPendingReward(reward.Info.Identifier, reward.Amount)
	}

	position.DebitUnlocked(e.primaryID(), providePrimary)
	position.DebitUnlocked(e.secondaryID(), debitSecondary)
	position.BondUnits = position.BondUnits.Add(units)
	work.global.TotalBondUnits = work.global.TotalBondUnits.Add(units)
	return nil
}

// executeUnbond burns bond units, unstakes the corresponding pool-share
// amount and removes it from the pool, crediting both legs unlocked.
func (e *Engine) executeUnbond(work *ledgerState, position *types.Position, units sdkmath.Int) error {
	if units.IsNil() || !units.IsPositive() {
		return fmt.Errorf("unbond units must be positive")
	}
	if units.GT(position.BondUnits) {
		return fmt.Errorf("unbond %s units, position holds %s: %w",
			units, position.BondUnits, ErrInsufficientBondUnits)
	}

	bondedBefore, err := e.staking.QueryBonded(market.StrategyAddress)
	if err != nil {
		return fmt.Errorf("%w: query bonded: %w", ErrExternalCall, err)
	}
	share := ledger.AmountForUnits(units, work.global.TotalBondUnits, bondedBefore)

	claimed, err := e.staking.Unbond(share)
	if err != nil {
		return fmt.Errorf("%w: unbond: %w", ErrExternalCall, err)
	}
	for _, reward := range claimed {
		work.global.AddPendingReward(reward.Info.Identifier, reward.Amount)
	}

	outPrimary, outSecondary, err := e.pool.WithdrawLiquidity(share)
	if err != nil {
		return fmt.Errorf("%w: withdraw liquidity: %w", ErrExternalCall, err)
	}

	position.CreditUnlocked(e.primaryID(), outPrimary)
	position.CreditUnlocked(e.secondaryID(), outSecondary)
	position.BondUnits = position.BondUnits.Sub(units)
	work.global.TotalBondUnits = work.global.TotalBondUnits.Sub(units)
	return nil
}

// isTaxedSecondary reports whether transfers of this asset go through the tax
// helper.
func (e *Engine) isTaxedSecondary(info types.AssetInfo) bool {
	return info.Equal(e.params.SecondaryAsset) && info.IsNative() && !e.taxCalc.IsNoop()
}
