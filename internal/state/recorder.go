// ./internal/state/recorder.go
package state

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/types"
)

// Store mirrors engine calls into the Postgres audit tables. It satisfies the
// engine's Recorder interface; write failures are reported to the engine,
// which logs and continues, so a database outage never blocks a call.
type Store struct{}

// NewStore returns a Store over the global connection pool. InitDB and
// EnsureSchema must have run first.
func NewStore() (*Store, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return &Store{}, nil
}

// RecordCall saves the post-call ledger state under the call's ID.
func (s *Store) RecordCall(callID, kind, user string, state types.GlobalState, position *types.PositionRecord) error {
	globalJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal global state: %w", err)
	}

	var positionJSON interface{}
	if position != nil {
		positionJSON, err = json.Marshal(position)
		if err != nil {
			return fmt.Errorf("failed to marshal position: %w", err)
		}
	}

	query := `
		INSERT INTO call_snapshots (call_id, call_type, user_address, global_state, position)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err = DB.QueryRow(query, callID, kind, user, globalJSON, positionJSON).Scan(&snapshotID)
	if err != nil {
		return fmt.Errorf("failed to save call snapshot: %w", err)
	}

	log.Debug().
		Int64("snapshot_id", snapshotID).
		Str("call_id", callID).
		Str("call_type", kind).
		Msg("Call snapshot saved to database")
	return nil
}

// RecordBadDebt saves a bad-debt write-off.
func (s *Store) RecordBadDebt(event types.BadDebtEvent) error {
	query := `
		INSERT INTO bad_debt_events (call_id, user_address, units_written_off, shortfall_amount, event_timestamp)
		VALUES ($1, $2, $3, $4, $5);
	`
	_, err := DB.Exec(query,
		event.CallID, event.User,
		event.UnitsWrittenOff.String(), event.ShortfallAmount.String(),
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save bad debt event: %w", err)
	}

	log.Warn().
		Str("call_id", event.CallID).
		Str("user", event.User).
		Str("shortfall", event.ShortfallAmount.String()).
		Msg("Bad debt event saved to database")
	return nil
}

// RecordHarvest saves a harvest receipt.
func (s *Store) RecordHarvest(receipt types.HarvestReceipt) error {
	claimedJSON, err := json.Marshal(receipt.Claimed)
	if err != nil {
		return fmt.Errorf("failed to marshal claimed rewards: %w", err)
	}
	feesJSON, err := json.Marshal(receipt.FeesSkimmed)
	if err != nil {
		return fmt.Errorf("failed to marshal skimmed fees: %w", err)
	}

	query := `
		INSERT INTO harvest_receipts (call_id, claimed, fees_skimmed, shares_bonded, harvest_timestamp)
		VALUES ($1, $2, $3, $4, $5);
	`
	_, err = DB.Exec(query,
		receipt.CallID, claimedJSON, feesJSON,
		receipt.SharesBonded.String(), receipt.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save harvest receipt: %w", err)
	}

	log.Debug().
		Str("call_id", receipt.CallID).
		Str("shares_bonded", receipt.SharesBonded.String()).
		Msg("Harvest receipt saved to database")
	return nil
}
