/*

This file contains the liquidation engine: close out an underwater position
by unwinding its entire bonded stake, swapping just enough collateral to
retire its debt and paying the liquidator a bonus from the leftovers; the
rest stays on the owner's unlocked balance. Debt that the collateral cannot cover is
written off the unit ledger as bad debt and surfaced as an event.

*/

package engine

import (
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"

	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/amm"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/ledger"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/market"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/types"
)

// Liquidate closes the user's position. The caller does not prove
// unhealthiness here; the host gates this entry point on a prior Health
// query. Anyone may liquidate, the bonus goes to the caller.
func (e *Engine) Liquidate(liquidator, user string, maxSpread sdkmath.LegacyDec) (types.LiquidationReceipt, error) {
	callID := uuid.NewString()
	log := e.logger.With().Str("call_id", callID).Str("user", user).Str("liquidator", liquidator).Logger()

	snap := e.env.Snapshot()
	work := e.ledger.clone()
	position := work.position(user)

	if position.BondUnits.IsZero() && position.DebtUnits.IsZero() {
		e.env.Release(snap)
		return types.LiquidationReceipt{}, ErrNothingToLiquidate
	}

	receipt := types.LiquidationReceipt{
		CallID:     callID,
		User:       user,
		Liquidator: liquidator,
		DebtRepaid: sdkmath.ZeroInt(),
		Bonus:      map[string]sdkmath.Int{},
		Refunded:   map[string]sdkmath.Int{},
		Timestamp:  time.Now().UTC(),
	}

	// 1. Unwind the entire bonded stake into unlocked balances.
	if position.BondUnits.IsPositive() {
		if err := e.executeUnbond(work, position, position.BondUnits); err != nil {
			e.env.Rollback(snap)
			return types.LiquidationReceipt{}, fmt.Errorf("unwind bond: %w", err)
		}
	}

	// 2. Cover the debt, swapping primary collateral if the unlocked
	// secondary balance falls short.
	if position.DebtUnits.IsPositive() {
		if err := e.coverDebt(work, position, &receipt, maxSpread); err != nil {
			e.env.Rollback(snap)
			return types.LiquidationReceipt{}, err
		}
	}

	// 3. Debt the collateral could not cover is written off the ledger. The
	// shortfall stays owed at the lending protocol on the strategy's behalf.
	if position.DebtUnits.IsPositive() {
		debtBefore, err := e.lending.QueryDebt(market.StrategyAddress)
		if err != nil {
			e.env.Rollback(snap)
			return types.LiquidationReceipt{}, fmt.Errorf("%w: query debt: %w", ErrExternalCall, err)
		}
		shortfall := ledger.AmountForUnits(position.DebtUnits, work.global.TotalDebtUnits, debtBefore)
		event := types.BadDebtEvent{
			CallID:          callID,
			User:            user,
			UnitsWrittenOff: position.DebtUnits,
			ShortfallAmount: shortfall,
			Timestamp:       receipt.Timestamp,
		}
		work.global.TotalDebtUnits = work.global.TotalDebtUnits.Sub(position.DebtUnits)
		position.DebtUnits = sdkmath.ZeroInt()
		receipt.BadDebt = &event

		log.Error().
			Str("units_written_off", event.UnitsWrittenOff.String()).
			Str("shortfall", event.ShortfallAmount.String()).
			Msg("Bad debt written off")
		if err := e.recorder.RecordBadDebt(event); err != nil {
			log.Error().Err(err).Msg("Failed to record bad debt event")
		}
	}

	// 4. Pay the liquidator's bonus from the leftovers; the rest remains on
	// the owner's unlocked balance.
	if err := e.settleLeftovers(liquidator, position, &receipt); err != nil {
		e.env.Rollback(snap)
		return types.LiquidationReceipt{}, err
	}

	e.env.Release(snap)
	e.ledger = work
	e.checkInvariant(work)
	e.record(callID, "liquidate", user, work)

	log.Info().
		Str("debt_repaid", receipt.DebtRepaid.String()).
		Bool("bad_debt", receipt.BadDebt != nil).
		Msg("Position liquidated")
	return receipt, nil
}

// coverDebt retires as much of the position's debt as its unlocked balances
// allow, swapping primary collateral into secondary first when needed.
func (e *Engine) coverDebt(work *ledgerState, position *types.Position, receipt *types.LiquidationReceipt, maxSpread sdkmath.LegacyDec) error {
	debtBefore, err := e.lending.QueryDebt(market.StrategyAddress)
	if err != nil {
		return fmt.Errorf("%w: query debt: %w", ErrExternalCall, err)
	}
	debtAmount := ledger.AmountForUnits(position.DebtUnits, work.global.TotalDebtUnits, debtBefore)
	if debtAmount.IsZero() {
		work.global.TotalDebtUnits = work.global.TotalDebtUnits.Sub(position.DebtUnits)
		position.DebtUnits = sdkmath.ZeroInt()
		return nil
	}

	// A full repay debits AddTax(AddTax(debt)) of unlocked secondary; swap
	// primary collateral for whatever is missing.
	needed := e.taxCalc.AddTax(e.taxCalc.AddTax(debtAmount)).Sub(position.Unlocked(e.secondaryID()))
	if needed.IsPositive() {
		if err := e.swapForCover(position, needed, maxSpread); err != nil {
			return err
		}
	}

	unlocked := position.Unlocked(e.secondaryID())
	fullDebit := e.taxCalc.AddTax(e.taxCalc.AddTax(debtAmount))

	if unlocked.GTE(fullDebit) {
		// full repay, burn the exact unit balance
		declared := e.taxCalc.AddTax(debtAmount)
		if err := e.lending.Repay(e.params.SecondaryAsset, declared); err != nil {
			return fmt.Errorf("%w: repay: %w", ErrExternalCall, err)
		}
		position.DebitUnlocked(e.secondaryID(), fullDebit)
		work.global.TotalDebtUnits = work.global.TotalDebtUnits.Sub(position.DebtUnits)
		receipt.DebtRepaid = debtAmount
		receipt.UnitsBurned = position.DebtUnits
		position.DebtUnits = sdkmath.ZeroInt()
		return nil
	}

	// partial repay with everything the position has
	declared := e.taxCalc.DeductTax(unlocked)
	if !declared.IsPositive() {
		return nil
	}
	repaid := e.taxCalc.DeductTax(declared)
	debit := e.taxCalc.AddTax(declared)
	if debit.GT(unlocked) {
		debit = unlocked
	}
	if err := e.lending.Repay(e.params.SecondaryAsset, declared); err != nil {
		return fmt.Errorf("%w: repay: %w", ErrExternalCall, err)
	}
	units, err := ledger.UnitsToMint(repaid, debtBefore, work.global.TotalDebtUnits)
	if err != nil {
		return err
	}
	if units.GT(position.DebtUnits) {
		units = position.DebtUnits
	}
	position.DebitUnlocked(e.secondaryID(), debit)
	position.DebtUnits = position.DebtUnits.Sub(units)
	work.global.TotalDebtUnits = work.global.TotalDebtUnits.Sub(units)
	receipt.DebtRepaid = repaid
	receipt.UnitsBurned = units
	return nil
}

// swapForCover sells primary collateral for at least `needed` net secondary.
// The ask is grossed up by the in-flight tax on the pool's payout, plus one
// unit of slack against the double truncation in the reverse-swap solve. When
// even the whole primary balance cannot produce the ask, everything is sold.
func (e *Engine) swapForCover(position *types.Position, needed sdkmath.Int, maxSpread sdkmath.LegacyDec) error {
	unlockedPrimary := position.Unlocked(e.primaryID())
	if unlockedPrimary.IsZero() {
		return nil
	}

	info, err := e.pool.QueryPool()
	if err != nil {
		return fmt.Errorf("%w: query pool: %w", ErrExternalCall, err)
	}

	askGross := e.taxCalc.AddTax(needed)
	offer, err := amm.SwapInput(askGross, info.ReservePrimary, info.ReserveSecondary, e.params.SwapCommission)
	switch {
	case errors.Is(err, amm.ErrInsufficientReserve):
		offer = unlockedPrimary
	case err != nil:
		return fmt.Errorf("solve cover swap: %w", err)
	default:
		offer = offer.AddRaw(1)
		if offer.GT(unlockedPrimary) {
			offer = unlockedPrimary
		}
	}

	result, err := e.pool.Swap(e.params.PrimaryAsset.WithAmount(offer), maxSpread)
	if err != nil {
		return fmt.Errorf("%w: cover swap: %w", ErrExternalCall, err)
	}
	position.DebitUnlocked(e.primaryID(), offer)
	position.CreditUnlocked(e.secondaryID(), result.ReturnAmount)
	return nil
}

// settleLeftovers pays the liquidator's bonus per unlocked asset. The
// remainder is not sent anywhere: it stays credited on the owner's unlocked
// balance, withdrawable through the normal pipeline.
func (e *Engine) settleLeftovers(liquidator string, position *types.Position, receipt *types.LiquidationReceipt) error {
	for _, id := range position.UnlockedIDs() {
		leftover := position.Unlocked(id)
		if leftover.IsZero() {
			continue
		}
		bonus := e.params.BonusRate.MulInt(leftover).TruncateInt()

		if bonus.IsPositive() {
			if err := e.payout(liquidator, e.rewardInfo(id), bonus); err != nil {
				return err
			}
			position.DebitUnlocked(id, bonus)
			receipt.Bonus[id] = bonus
		}
		if refund := leftover.Sub(bonus); refund.IsPositive() {
			receipt.Refunded[id] = refund
		}
	}
	return nil
}

// payout sends an unlocked balance out, declared through the tax helper for
// the native secondary asset.
func (e *Engine) payout(recipient string, info types.AssetInfo, amount sdkmath.Int) error {
	outbound := info.WithAmount(amount)
	if e.isTaxedSecondary(info) {
		outbound.Amount = e.taxCalc.DeductTax(amount)
	}
	if err := e.bank.Send(recipient, outbound); err != nil {
		return fmt.Errorf("%w: payout to %s: %w", ErrExternalCall, recipient, err)
	}
	return nil
}
