package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Sync-log entry states. The three-state shape mirrors pkg/nonce's
// Redis-backed Reserve/MarkUsed/Release protocol (SPEC_FULL.md §4
// "clone-aware sync log"): a nonce reserved during validation and never
// marked used (because a later rule failed) is released rather than left
// permanently consumed.
const (
	SyncStateReserved = "reserved"
	SyncStateUsed      = "used"
)

// ReserveNonce inserts a reserved sync_log entry, failing if the nonce is
// already reserved or used. The (hid, nonce) primary key makes this the
// atomic replay check validator rule 9 (replay_nonce) runs on every
// candidate segment.
func (s *Store) ReserveNonce(ctx context.Context, hid, nonce string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_log (hid, nonce, state, ts) VALUES (?, ?, ?, ?)`,
		hid, nonce, SyncStateReserved, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("store: reserve nonce: %w", err)
	}
	return nil
}

// ReleaseNonce removes a reserved (not yet used) sync_log entry, allowing
// a retry with the same nonce after a validation failure.
func (s *Store) ReleaseNonce(ctx context.Context, hid, nonce string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM sync_log WHERE hid = ? AND nonce = ? AND state = ?`,
		hid, nonce, SyncStateReserved)
	if err != nil {
		return fmt.Errorf("store: release nonce: %w", err)
	}
	return nil
}

// MarkNonceUsed flips a reserved entry to used inside the commit
// transaction, permanently consuming the nonce (spec.md §4.5).
func (s *Store) MarkNonceUsed(ctx context.Context, tx *sql.Tx, hid, nonce string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE sync_log SET state = ? WHERE hid = ? AND nonce = ? AND state = ?`,
		SyncStateUsed, hid, nonce, SyncStateReserved)
	if err != nil {
		return fmt.Errorf("store: mark nonce used: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: mark nonce used: %w", err)
	}
	if n == 0 {
		// No reservation found — insert directly as used. Covers segments
		// validated and committed within the same transaction, where no
		// separate Reserve phase was exercised.
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sync_log (hid, nonce, state, ts) VALUES (?, ?, ?, ?)`,
			hid, nonce, SyncStateUsed, time.Now().UnixMilli())
		if err != nil {
			return fmt.Errorf("store: insert nonce used: %w", err)
		}
	}
	return nil
}

// PurgeNonces deletes sync_log entries older than olderThanMs, per
// spec.md §4's 30-day purge allowance (protocol.NoncePurgeAge).
func (s *Store) PurgeNonces(ctx context.Context, hid string, olderThanMs int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sync_log WHERE hid = ? AND ts < ?`, hid, olderThanMs)
	if err != nil {
		return 0, fmt.Errorf("store: purge nonces: %w", err)
	}
	return res.RowsAffected()
}
