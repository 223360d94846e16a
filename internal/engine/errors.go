/*

This file contains the engine's error taxonomy. Every sentinel is wrapped
with call context via %w at the failure site; a failed call surfaces exactly
one of these to the caller and leaves no state change behind.

*/

package engine

import (
	"errors"

	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/market"
)

var (
	// ErrInsufficientUnlockedBalance means an instruction tried to spend more
	// of an unlocked asset than the position holds.
	ErrInsufficientUnlockedBalance = errors.New("insufficient unlocked balance")

	// ErrInsufficientBondUnits means an unbond asked for more units than the
	// position holds.
	ErrInsufficientBondUnits = errors.New("insufficient bond units")

	// ErrInsufficientDebtToRepay means a repay was requested against a
	// position with no outstanding debt.
	ErrInsufficientDebtToRepay = errors.New("no outstanding debt to repay")

	// ErrUnhealthyPosition means the post-mutation LTV exceeds the configured
	// ceiling. The whole call is rolled back.
	ErrUnhealthyPosition = errors.New("position would exceed max LTV")

	// ErrSlippageExceeded is the pool's tolerance rejection on a swap or a
	// liquidity provision. The call sites wrap it together with
	// ErrExternalCall; both match through errors.Is.
	ErrSlippageExceeded = market.ErrSlippageExceeded

	// ErrExternalCall wraps a collaborator failure (lending protocol, pool,
	// staking adapter, oracle).
	ErrExternalCall = errors.New("external call failed")

	// ErrUnknownInstruction means the instruction type is not one of the six
	// pipeline operations.
	ErrUnknownInstruction = errors.New("unknown instruction type")

	// ErrNothingToLiquidate means the target position holds neither bond
	// units nor debt units.
	ErrNothingToLiquidate = errors.New("position has nothing to liquidate")
)
