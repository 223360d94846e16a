/*

This file contains the instruction types accepted by the position mutation
pipeline. One external call carries an ordered list of instructions which are
executed strictly in the given order against the caller's position.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

// InstructionType defines the specific low-level position operations.
type InstructionType string

const (
	InstructionDeposit  InstructionType = "DEPOSIT"
	InstructionWithdraw InstructionType = "WITHDRAW"
	InstructionBorrow   InstructionType = "BORROW"
	InstructionRepay    InstructionType = "REPAY"
	InstructionBond     InstructionType = "BOND"
	InstructionUnbond   InstructionType = "UNBOND"
)

// Instruction represents a single, executable step in an update_position call.
type Instruction struct {
	Type InstructionType `json:"type"`

	// Fields for DEPOSIT / WITHDRAW
	Asset Asset `json:"asset,omitempty"`

	// Fields for BORROW / REPAY: amount of the secondary asset
	Amount sdkmath.Int `json:"amount,omitempty"`

	// Fields for BOND: maximum acceptable deviation of the realized provide
	// ratio from the pool's live ratio (e.g. 0.01 for 1%)
	SlippageTolerance sdkmath.LegacyDec `json:"slippage_tolerance,omitempty"`

	// Fields for UNBOND: bond units to burn
	BondUnits sdkmath.Int `json:"bond_units,omitempty"`
}

// Deposit builds a DEPOSIT instruction.
func Deposit(asset Asset) Instruction {
	return Instruction{Type: InstructionDeposit, Asset: asset}
}

// Withdraw builds a WITHDRAW instruction.
func Withdraw(asset Asset) Instruction {
	return Instruction{Type: InstructionWithdraw, Asset: asset}
}

// Borrow builds a BORROW instruction for the secondary asset.
func Borrow(amount sdkmath.Int) Instruction {
	return Instruction{Type: InstructionBorrow, Amount: amount}
}

// Repay builds a REPAY instruction for the secondary asset.
func Repay(amount sdkmath.Int) Instruction {
	return Instruction{Type: InstructionRepay, Amount: amount}
}

// Bond builds a BOND instruction.
func Bond(slippageTolerance sdkmath.LegacyDec) Instruction {
	return Instruction{Type: InstructionBond, SlippageTolerance: slippageTolerance}
}

// Unbond builds an UNBOND instruction.
func Unbond(bondUnits sdkmath.Int) Instruction {
	return Instruction{Type: InstructionUnbond, BondUnits: bondUnits}
}
