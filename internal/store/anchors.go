package store

import (
	"context"
	"database/sql"
	"fmt"
)

// AnchorRow is an identity's last EVM-anchored chain position.
type AnchorRow struct {
	HID              string
	LastAnchoredSeq  int64
	LastAnchoredHead string
	LastTxHash       string
	LastAnchoredAt   int64
}

// DueForAnchor is one identity whose chain has advanced past its last
// anchored position.
type DueForAnchor struct {
	HID       string
	ChainHead string
	ChainLen  int64
}

// ListDueForAnchor returns every identity whose chain_len exceeds its
// last anchored sequence, up to limit, ordered by the largest backlog
// first so the worker catches up the most-active chains first.
func (s *Store) ListDueForAnchor(ctx context.Context, limit int) ([]DueForAnchor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.hid, m.chain_head, m.chain_len
		 FROM meta m
		 LEFT JOIN anchors a ON a.hid = m.hid
		 WHERE m.chain_len > COALESCE(a.last_anchored_seq, 0)
		 ORDER BY (m.chain_len - COALESCE(a.last_anchored_seq, 0)) DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list due for anchor: %w", err)
	}
	defer rows.Close()

	var out []DueForAnchor
	for rows.Next() {
		var d DueForAnchor
		if err := rows.Scan(&d.HID, &d.ChainHead, &d.ChainLen); err != nil {
			return nil, fmt.Errorf("store: scan due for anchor: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// RecordAnchor upserts the result of a successful anchor submission.
func (s *Store) RecordAnchor(ctx context.Context, row AnchorRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO anchors (hid, last_anchored_seq, last_anchored_head, last_tx_hash, last_anchored_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE last_anchored_seq = VALUES(last_anchored_seq),
		 last_anchored_head = VALUES(last_anchored_head), last_tx_hash = VALUES(last_tx_hash),
		 last_anchored_at = VALUES(last_anchored_at)`,
		row.HID, row.LastAnchoredSeq, row.LastAnchoredHead, row.LastTxHash, row.LastAnchoredAt)
	if err != nil {
		return fmt.Errorf("store: record anchor: %w", err)
	}
	return nil
}

// GetAnchor returns hid's last anchor record, or nil if it has never
// been anchored.
func (s *Store) GetAnchor(ctx context.Context, hid string) (*AnchorRow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT hid, last_anchored_seq, last_anchored_head, last_tx_hash, last_anchored_at
		 FROM anchors WHERE hid = ?`, hid)
	r := &AnchorRow{}
	err := row.Scan(&r.HID, &r.LastAnchoredSeq, &r.LastAnchoredHead, &r.LastTxHash, &r.LastAnchoredAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get anchor: %w", err)
	}
	return r, nil
}
