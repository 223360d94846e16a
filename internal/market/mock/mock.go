/*

This file contains deterministic in-memory implementations of the market
collaborators, used by the engine tests and by sim mode. They reproduce the
reference environment's observable behavior: constant-product swaps with a
commission taken from the output, the in-flight transfer tax on every native
secondary movement, and reward auto-claims on every bond/unbond.

*/

package mock

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/amm"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/market"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/tax"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/types"
)

// Env bundles the mock collaborators around one shared tax calculator and
// supports wholesale snapshot/rollback, mirroring the host's atomic message
// handling.
type Env struct {
	Tax       tax.Calculator
	Lending   *Lending
	Pool      *Pool
	Staking   *Staking
	Oracle    *Oracle
	Bank      *Bank
	snapshots []envState
}

type envState struct {
	lending Lending
	pool    Pool
	staking Staking
	bank    Bank
}

// NewEnv builds a mock environment for the given asset pair.
func NewEnv(taxCalc tax.Calculator, primary, secondary types.AssetInfo) *Env {
	return &Env{
		Tax:     taxCalc,
		Lending: &Lending{Debts: map[string]sdkmath.Int{}, taxCalc: taxCalc},
		Pool: &Pool{
			Primary:          primary,
			Secondary:        secondary,
			ReservePrimary:   sdkmath.ZeroInt(),
			ReserveSecondary: sdkmath.ZeroInt(),
			TotalShare:       sdkmath.ZeroInt(),
			Commission:       sdkmath.LegacyNewDecWithPrec(3, 3),
			taxCalc:          taxCalc,
		},
		Staking: &Staking{Bonded: sdkmath.ZeroInt()},
		// the secondary stable starts at peg; tests override to simulate depegs
		Oracle: &Oracle{Prices: map[string]sdkmath.LegacyDec{
			secondary.Identifier: sdkmath.LegacyOneDec(),
		}},
		Bank:    &Bank{Balances: map[string]map[string]sdkmath.Int{}, Secondary: secondary, taxCalc: taxCalc},
	}
}

// Snapshot captures all collaborator state and returns a handle.
func (e *Env) Snapshot() int {
	e.snapshots = append(e.snapshots, envState{
		lending: e.Lending.clone(),
		pool:    e.Pool.clone(),
		staking: e.Staking.clone(),
		bank:    e.Bank.clone(),
	})
	return len(e.snapshots) - 1
}

// Rollback restores the state captured under the handle and discards it and
// everything after it.
func (e *Env) Rollback(id int) {
	s := e.snapshots[id]
	*e.Lending = s.lending
	*e.Pool = s.pool
	*e.Staking = s.staking
	*e.Bank = s.bank
	e.snapshots = e.snapshots[:id]
}

// Release discards the handle without restoring.
func (e *Env) Release(id int) {
	e.snapshots = e.snapshots[:id]
}

var _ market.Snapshotter = (*Env)(nil)

// ---------------------------------------------------------------------------
// Lending

// Lending tracks one debt balance per borrower. Borrow proceeds are credited
// in full: the protocol mints the credit, no transfer tax applies.
type Lending struct {
	Debts   map[string]sdkmath.Int
	taxCalc tax.Calculator
}

var _ market.LendingProtocol = (*Lending)(nil)

func (l *Lending) clone() Lending {
	debts := make(map[string]sdkmath.Int, len(l.Debts))
	for k, v := range l.Debts {
		debts[k] = v
	}
	return Lending{Debts: debts, taxCalc: l.taxCalc}
}

func (l *Lending) debt(borrower string) sdkmath.Int {
	if d, ok := l.Debts[borrower]; ok {
		return d
	}
	return sdkmath.ZeroInt()
}

// Borrow increases the borrower's debt and transfers the full amount.
func (l *Lending) Borrow(asset types.AssetInfo, amount sdkmath.Int) (sdkmath.Int, error) {
	l.Debts[market.StrategyAddress] = l.debt(market.StrategyAddress).Add(amount)
	return amount, nil
}

// Repay credits the delivered amount (already tax-deducted in flight) against
// the borrower's debt.
func (l *Lending) Repay(asset types.AssetInfo, amount sdkmath.Int) error {
	received := l.taxCalc.DeductTax(amount)
	debt := l.debt(market.StrategyAddress)
	if received.GT(debt) {
		received = debt
	}
	l.Debts[market.StrategyAddress] = debt.Sub(received)
	return nil
}

func (l *Lending) QueryDebt(borrower string) (sdkmath.Int, error) {
	return l.debt(borrower), nil
}

// AccrueInterest scales the outstanding debt, simulating interest between
// calls.
func (l *Lending) AccrueInterest(factor sdkmath.LegacyDec) {
	for borrower, debt := range l.Debts {
		l.Debts[borrower] = factor.MulInt(debt).TruncateInt()
	}
}

// ---------------------------------------------------------------------------
// Pool

// Pool is a constant-product pair. Declared secondary amounts shrink by the
// transfer tax before they reach the pool, and secondary payouts shrink again
// on the way out.
type Pool struct {
	Primary          types.AssetInfo
	Secondary        types.AssetInfo
	ReservePrimary   sdkmath.Int
	ReserveSecondary sdkmath.Int
	TotalShare       sdkmath.Int
	Commission       sdkmath.LegacyDec
	taxCalc          tax.Calculator
}

var _ market.Pool = (*Pool)(nil)

func (p *Pool) clone() Pool { return *p }

// Seed initializes reserves and share supply directly.
func (p *Pool) Seed(reservePrimary, reserveSecondary, totalShare sdkmath.Int) {
	p.ReservePrimary = reservePrimary
	p.ReserveSecondary = reserveSecondary
	p.TotalShare = totalShare
}

func (p *Pool) ProvideLiquidity(primary, secondary sdkmath.Int, slippageTolerance sdkmath.LegacyDec) (sdkmath.Int, error) {
	receivedSecondary := p.taxCalc.DeductTax(secondary)

	if !slippageTolerance.IsNil() && !slippageTolerance.IsZero() && !p.TotalShare.IsZero() {
		byPrimary := sdkmath.LegacyNewDecFromInt(primary).QuoInt(p.ReservePrimary)
		bySecondary := sdkmath.LegacyNewDecFromInt(receivedSecondary).QuoInt(p.ReserveSecondary)
		lo, hi := byPrimary, bySecondary
		if lo.GT(hi) {
			lo, hi = hi, lo
		}
		if hi.IsPositive() && sdkmath.LegacyOneDec().Sub(lo.Quo(hi)).GT(slippageTolerance) {
			return sdkmath.Int{}, fmt.Errorf("provide ratio deviates beyond tolerance %s: %w", slippageTolerance, market.ErrSlippageExceeded)
		}
	}

	minted := amm.MintShare(primary, receivedSecondary, p.ReservePrimary, p.ReserveSecondary, p.TotalShare)
	if minted.IsZero() {
		return sdkmath.Int{}, fmt.Errorf("zero liquidity minted")
	}
	p.ReservePrimary = p.ReservePrimary.Add(primary)
	p.ReserveSecondary = p.ReserveSecondary.Add(receivedSecondary)
	p.TotalShare = p.TotalShare.Add(minted)
	return minted, nil
}

func (p *Pool) WithdrawLiquidity(share sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	if share.GT(p.TotalShare) {
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("withdraw %s exceeds total share %s", share, p.TotalShare)
	}
	outPrimary := p.ReservePrimary.Mul(share).Quo(p.TotalShare)
	outSecondary := p.ReserveSecondary.Mul(share).Quo(p.TotalShare)
	p.ReservePrimary = p.ReservePrimary.Sub(outPrimary)
	p.ReserveSecondary = p.ReserveSecondary.Sub(outSecondary)
	p.TotalShare = p.TotalShare.Sub(share)
	return outPrimary, p.taxCalc.DeductTax(outSecondary), nil
}

func (p *Pool) Swap(offer types.Asset, maxSpread sdkmath.LegacyDec) (market.SwapResult, error) {
	result, received, err := p.simulate(offer)
	if err != nil {
		return market.SwapResult{}, err
	}
	if !maxSpread.IsNil() && !maxSpread.IsZero() {
		spotOut := p.spotOutput(offer.Info, received)
		if spotOut.IsPositive() {
			spread := sdkmath.LegacyNewDecFromInt(result.Spread).QuoInt(spotOut)
			if spread.GT(maxSpread) {
				return market.SwapResult{}, fmt.Errorf("spread %s exceeds max %s: %w", spread, maxSpread, market.ErrSlippageExceeded)
			}
		}
	}

	gross := result.ReturnAmount.Add(result.Commission)
	if offer.Info.Equal(p.Primary) {
		p.ReservePrimary = p.ReservePrimary.Add(received)
		p.ReserveSecondary = p.ReserveSecondary.Sub(gross)
		// secondary payout is taxed in flight
		result.ReturnAmount = p.taxCalc.DeductTax(result.ReturnAmount)
	} else {
		p.ReserveSecondary = p.ReserveSecondary.Add(received)
		p.ReservePrimary = p.ReservePrimary.Sub(gross)
	}
	return result, nil
}

func (p *Pool) SimulateSwap(offer types.Asset) (market.SwapResult, error) {
	result, _, err := p.simulate(offer)
	return result, err
}

// simulate prices the swap and reports what the pool would actually receive
// on the offer side (tax-deducted for native secondary offers).
func (p *Pool) simulate(offer types.Asset) (market.SwapResult, sdkmath.Int, error) {
	var reserveIn, reserveOut sdkmath.Int
	received := offer.Amount
	switch {
	case offer.Info.Equal(p.Primary):
		reserveIn, reserveOut = p.ReservePrimary, p.ReserveSecondary
	case offer.Info.Equal(p.Secondary):
		received = p.taxCalc.DeductTax(offer.Amount)
		reserveIn, reserveOut = p.ReserveSecondary, p.ReservePrimary
	default:
		return market.SwapResult{}, sdkmath.Int{}, fmt.Errorf("asset %s not in pair", offer.Info.Identifier)
	}
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return market.SwapResult{}, sdkmath.Int{}, fmt.Errorf("pool has no liquidity")
	}

	net := amm.SwapOutput(received, reserveIn, reserveOut, p.Commission)
	cp := reserveIn.Mul(reserveOut)
	gross := reserveOut.Sub(cp.Quo(reserveIn.Add(received)))
	spot := p.spotOutput(offer.Info, received)
	return market.SwapResult{
		ReturnAmount: net,
		Spread:       spot.Sub(gross),
		Commission:   gross.Sub(net),
	}, received, nil
}

// spotOutput is the zero-slippage output for the received amount.
func (p *Pool) spotOutput(offerInfo types.AssetInfo, received sdkmath.Int) sdkmath.Int {
	if offerInfo.Equal(p.Primary) {
		return received.Mul(p.ReserveSecondary).Quo(p.ReservePrimary)
	}
	return received.Mul(p.ReservePrimary).Quo(p.ReserveSecondary)
}

func (p *Pool) QueryPool() (market.PoolInfo, error) {
	return market.PoolInfo{
		ReservePrimary:   p.ReservePrimary,
		ReserveSecondary: p.ReserveSecondary,
		TotalShare:       p.TotalShare,
	}, nil
}

// ---------------------------------------------------------------------------
// Staking

// Staking bonds pool-share tokens and auto-claims accrued rewards on every
// bond/unbond, exactly like the reference generator.
type Staking struct {
	Bonded  sdkmath.Int
	Accrued []types.Asset
}

var _ market.StakingAdapter = (*Staking)(nil)

func (s *Staking) clone() Staking {
	accrued := make([]types.Asset, len(s.Accrued))
	copy(accrued, s.Accrued)
	return Staking{Bonded: s.Bonded, Accrued: accrued}
}

// Accrue queues reward tokens for the next auto-claim.
func (s *Staking) Accrue(rewards ...types.Asset) {
	s.Accrued = append(s.Accrued, rewards...)
}

func (s *Staking) claim() []types.Asset {
	claimed := s.Accrued
	s.Accrued = nil
	return claimed
}

func (s *Staking) Bond(share sdkmath.Int) ([]types.Asset, error) {
	s.Bonded = s.Bonded.Add(share)
	return s.claim(), nil
}

func (s *Staking) Unbond(share sdkmath.Int) ([]types.Asset, error) {
	if share.GT(s.Bonded) {
		return nil, fmt.Errorf("unbond %s exceeds bonded %s", share, s.Bonded)
	}
	s.Bonded = s.Bonded.Sub(share)
	return s.claim(), nil
}

func (s *Staking) QueryBonded(staker string) (sdkmath.Int, error) {
	return s.Bonded, nil
}

// ---------------------------------------------------------------------------
// Oracle

// Oracle serves fixed prices keyed by asset identifier.
type Oracle struct {
	Prices map[string]sdkmath.LegacyDec
}

var _ market.Oracle = (*Oracle)(nil)

func (o *Oracle) QueryPrice(asset types.AssetInfo) (sdkmath.LegacyDec, error) {
	price, ok := o.Prices[asset.Identifier]
	if !ok {
		return sdkmath.LegacyDec{}, fmt.Errorf("no price for %s", asset.Identifier)
	}
	return price, nil
}

// ---------------------------------------------------------------------------
// Bank

// Bank records outbound transfers per recipient. Native secondary transfers
// are tax-deducted in flight.
type Bank struct {
	Balances  map[string]map[string]sdkmath.Int
	Secondary types.AssetInfo
	taxCalc   tax.Calculator
}

var _ market.Bank = (*Bank)(nil)

func (b *Bank) clone() Bank {
	balances := make(map[string]map[string]sdkmath.Int, len(b.Balances))
	for recipient, assets := range b.Balances {
		inner := make(map[string]sdkmath.Int, len(assets))
		for id, amount := range assets {
			inner[id] = amount
		}
		balances[recipient] = inner
	}
	return Bank{Balances: balances, Secondary: b.Secondary, taxCalc: b.taxCalc}
}

func (b *Bank) Send(recipient string, asset types.Asset) error {
	delivered := asset.Amount
	if asset.Info.Equal(b.Secondary) {
		delivered = b.taxCalc.DeductTax(delivered)
	}
	if b.Balances[recipient] == nil {
		b.Balances[recipient] = map[string]sdkmath.Int{}
	}
	if existing, ok := b.Balances[recipient][asset.Info.Identifier]; ok {
		b.Balances[recipient][asset.Info.Identifier] = existing.Add(delivered)
	} else {
		b.Balances[recipient][asset.Info.Identifier] = delivered
	}
	return nil
}

// Balance returns the recorded balance for a recipient and asset identifier.
func (b *Bank) Balance(recipient, id string) sdkmath.Int {
	if assets, ok := b.Balances[recipient]; ok {
		if amount, ok := assets[id]; ok {
			return amount
		}
	}
	return sdkmath.ZeroInt()
}
