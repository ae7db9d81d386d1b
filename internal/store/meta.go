package store

import (
	"context"
	"database/sql"
	"fmt"
)

// MetaRow is the per-identity head/length/read-only latch (spec.md §4.2,
// §6).
type MetaRow struct {
	HID             string
	ChainHead       string
	ChainLen        int64
	ReadOnlyEnabled bool
	ReadOnlyReason  string
	ReadOnlyTime    int64
}

// EnsureMeta inserts the GENESIS row for hid if it does not already exist,
// idempotently, inside tx.
func (s *Store) EnsureMeta(ctx context.Context, tx *sql.Tx, hid string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT IGNORE INTO meta (hid, chain_head, chain_len) VALUES (?, 'GENESIS', 0)`, hid)
	if err != nil {
		return fmt.Errorf("store: ensure meta: %w", err)
	}
	return nil
}

// GetMeta reads the current meta row for hid, returning the GENESIS
// defaults if the identity has never committed.
func (s *Store) GetMeta(ctx context.Context, hid string) (*MetaRow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT hid, chain_head, chain_len, read_only_enabled, read_only_reason, read_only_timestamp
		 FROM meta WHERE hid = ?`, hid)
	return scanMeta(row, hid)
}

// GetMetaTx is GetMeta performed inside an existing transaction, used by
// the chain's commit path to read head/len/read-only under the same
// transaction that will write them (spec.md §5).
func (s *Store) GetMetaTx(ctx context.Context, tx *sql.Tx, hid string) (*MetaRow, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT hid, chain_head, chain_len, read_only_enabled, read_only_reason, read_only_timestamp
		 FROM meta WHERE hid = ? FOR UPDATE`, hid)
	return scanMeta(row, hid)
}

func scanMeta(row *sql.Row, hid string) (*MetaRow, error) {
	m := &MetaRow{HID: hid, ChainHead: "GENESIS", ChainLen: 0}
	err := row.Scan(&m.HID, &m.ChainHead, &m.ChainLen, &m.ReadOnlyEnabled, &m.ReadOnlyReason, &m.ReadOnlyTime)
	if err == sql.ErrNoRows {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan meta: %w", err)
	}
	return m, nil
}

// SetHead advances meta.chain_head/chain_len after a successful commit
// (spec.md §4.5).
func (s *Store) SetHead(ctx context.Context, tx *sql.Tx, hid, newHead string, newLen int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE meta SET chain_head = ?, chain_len = ? WHERE hid = ?`, newHead, newLen, hid)
	if err != nil {
		return fmt.Errorf("store: set head: %w", err)
	}
	return nil
}

// SetReadOnly latches or releases read-only mode (spec.md §4.8).
func (s *Store) SetReadOnly(ctx context.Context, hid string, enabled bool, reason string, timestamp int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE meta SET read_only_enabled = ?, read_only_reason = ?, read_only_timestamp = ? WHERE hid = ?`,
		enabled, reason, timestamp, hid)
	if err != nil {
		return fmt.Errorf("store: set read only: %w", err)
	}
	return nil
}
