/*

This file contains the Engine type: the position-accounting and risk core
behind every external call. It owns the unit ledger (global state plus one
position record per user), delegates valuation to the health assessor, and
guarantees all-or-nothing execution by working on a deep copy of the ledger
while holding a snapshot of all collaborator state.

*/

package engine

import (
	"fmt"
	"sort"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/health"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/logger"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/market"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/tax"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/types"
)

// Recorder mirrors successful calls into an audit store. Recorder failures
// are logged and swallowed: the in-memory ledger is authoritative, the store
// is an audit trail.
type Recorder interface {
	RecordCall(callID, kind, user string, state types.GlobalState, position *types.PositionRecord) error
	RecordBadDebt(event types.BadDebtEvent) error
	RecordHarvest(receipt types.HarvestReceipt) error
}

// Config wires an Engine instance.
type Config struct {
	Params   types.StrategyParams
	Lending  market.LendingProtocol
	Pool     market.Pool
	Staking  market.StakingAdapter
	Oracle   market.Oracle
	Bank     market.Bank
	Env      market.Snapshotter
	Recorder Recorder // optional
}

// Engine executes position mutations, harvests and liquidations against the
// unit ledger. It is not safe for concurrent use; the host serializes calls.
type Engine struct {
	params   types.StrategyParams
	taxCalc  tax.Calculator
	lending  market.LendingProtocol
	pool     market.Pool
	staking  market.StakingAdapter
	bank     market.Bank
	env      market.Snapshotter
	assessor *health.Assessor
	recorder Recorder
	logger   zerolog.Logger

	ledger *ledgerState
}

// New validates the configuration and builds an Engine.
func New(cfg Config) (*Engine, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("engine configuration: %w", err)
	}

	recorder := cfg.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &Engine{
		params:   cfg.Params,
		taxCalc:  tax.New(cfg.Params.TaxRate, cfg.Params.TaxCap),
		lending:  cfg.Lending,
		pool:     cfg.Pool,
		staking:  cfg.Staking,
		bank:     cfg.Bank,
		env:      cfg.Env,
		assessor: health.NewAssessor(cfg.Params, cfg.Pool, cfg.Staking, cfg.Lending, cfg.Oracle),
		recorder: recorder,
		logger:   logger.GetForComponent("engine"),
		ledger:   newLedgerState(),
	}, nil
}

func validateConfig(cfg Config) error {
	if err := cfg.Params.Validate(); err != nil {
		return err
	}
	switch {
	case cfg.Lending == nil:
		return fmt.Errorf("lending protocol cannot be nil")
	case cfg.Pool == nil:
		return fmt.Errorf("pool cannot be nil")
	case cfg.Staking == nil:
		return fmt.Errorf("staking adapter cannot be nil")
	case cfg.Oracle == nil:
		return fmt.Errorf("oracle cannot be nil")
	case cfg.Bank == nil:
		return fmt.Errorf("bank cannot be nil")
	case cfg.Env == nil:
		return fmt.Errorf("environment snapshotter cannot be nil")
	}
	return nil
}

// ledgerState is the engine-owned mutable state: one global record plus one
// position record per user address.
type ledgerState struct {
	global    *types.GlobalState
	positions map[string]*types.Position
}

func newLedgerState() *ledgerState {
	return &ledgerState{
		global:    types.NewGlobalState(),
		positions: map[string]*types.Position{},
	}
}

// position returns the user's record, creating it lazily. Records are never
// deleted; a closed position simply reads back with zero units.
func (s *ledgerState) position(user string) *types.Position {
	if p, ok := s.positions[user]; ok {
		return p
	}
	p := types.NewPosition()
	s.positions[user] = p
	return p
}

func (s *ledgerState) clone() *ledgerState {
	out := newLedgerState()
	out.global = s.global.Clone()
	for user, p := range s.positions {
		out.positions[user] = p.Clone()
	}
	return out
}

// ---------------------------------------------------------------------------
// Read-only queries

// Params returns the immutable strategy configuration.
func (e *Engine) Params() types.StrategyParams {
	return e.params
}

// State returns a copy of the global ledger.
func (e *Engine) State() types.GlobalState {
	return *e.ledger.global.Clone()
}

// Position returns a copy of the user's record and whether one exists.
func (e *Engine) Position(user string) (types.Position, bool) {
	p, ok := e.ledger.positions[user]
	if !ok {
		return *types.NewPosition(), false
	}
	return *p.Clone(), true
}

// Health values one user's position, or the whole strategy when user is
// empty.
func (e *Engine) Health(user string) (types.Health, error) {
	totals, err := e.assessor.QueryTotals()
	if err != nil {
		return types.Health{}, fmt.Errorf("%w: %w", ErrExternalCall, err)
	}
	if user == "" {
		return e.assessor.AssessStrategy(totals), nil
	}
	position := types.NewPosition()
	if p, ok := e.ledger.positions[user]; ok {
		position = p
	}
	return e.assessor.Assess(totals, e.ledger.global, position), nil
}

const (
	defaultPageLimit = 10
	maxPageLimit     = 30
)

// Positions lists position records sorted by address, starting strictly
// after startAfter, up to limit records (default 10, capped at 30).
func (e *Engine) Positions(startAfter string, limit int) []types.PositionRecord {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	users := make([]string, 0, len(e.ledger.positions))
	for user := range e.ledger.positions {
		if user > startAfter {
			users = append(users, user)
		}
	}
	sort.Strings(users)

	records := make([]types.PositionRecord, 0, limit)
	for _, user := range users {
		if len(records) == limit {
			break
		}
		records = append(records, types.PositionRecord{
			User:     user,
			Position: *e.ledger.positions[user].Clone(),
		})
	}
	return records
}

// ---------------------------------------------------------------------------
// Shared helpers

// secondaryID and primaryID shorten the frequent identifier lookups.
func (e *Engine) secondaryID() string { return e.params.SecondaryAsset.Identifier }
func (e *Engine) primaryID() string   { return e.params.PrimaryAsset.Identifier }

// record mirrors a successful call into the audit store, logging failures.
func (e *Engine) record(callID, kind, user string, ledger *ledgerState) {
	var rec *types.PositionRecord
	if user != "" {
		if p, ok := ledger.positions[user]; ok {
			rec = &types.PositionRecord{User: user, Position: *p.Clone()}
		}
	}
	if err := e.recorder.RecordCall(callID, kind, user, *ledger.global.Clone(), rec); err != nil {
		e.logger.Error().Err(err).Str("call_id", callID).Msg("Failed to record call snapshot")
	}
}

// checkInvariant verifies the unit sums after a mutation; a violation is a
// programming error worth a loud log line.
func (e *Engine) checkInvariant(ledger *ledgerState) {
	bondSum, debtSum := sdkmath.ZeroInt(), sdkmath.ZeroInt()
	for _, p := range ledger.positions {
		bondSum = bondSum.Add(p.BondUnits)
		debtSum = debtSum.Add(p.DebtUnits)
	}
	if !bondSum.Equal(ledger.global.TotalBondUnits) || !debtSum.Equal(ledger.global.TotalDebtUnits) {
		e.logger.Error().
			Str("bond_sum", bondSum.String()).
			Str("total_bond_units", ledger.global.TotalBondUnits.String()).
			Str("debt_sum", debtSum.String()).
			Str("total_debt_units", ledger.global.TotalDebtUnits.String()).
			Msg("Unit ledger invariant violated")
	}
}

type nopRecorder struct{}

func (nopRecorder) RecordCall(string, string, string, types.GlobalState, *types.PositionRecord) error {
	return nil
}
func (nopRecorder) RecordBadDebt(types.BadDebtEvent) error   { return nil }
func (nopRecorder) RecordHarvest(types.HarvestReceipt) error { return nil }
