package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/balancechain/core/internal/segment"
)

// InsertSegment persists a signed segment at its seq inside tx. The
// UNIQUE (hid, nonce) index enforces invariant (iv) — no two segments
// share a nonce — at the storage layer as a backstop to validator rule 9.
func (s *Store) InsertSegment(ctx context.Context, tx *sql.Tx, hid string, seg *segment.Segment) error {
	body, err := json.Marshal(seg)
	if err != nil {
		return fmt.Errorf("store: marshal segment: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO state_chain (hid, seq, nonce, type, timestamp, body) VALUES (?, ?, ?, ?, ?, ?)`,
		hid, seg.Seq, seg.Nonce, string(seg.Type), seg.Timestamp, body)
	if err != nil {
		return fmt.Errorf("store: insert segment: %w", err)
	}
	return nil
}

// GetSegment fetches the segment at seq for hid, or nil if absent.
func (s *Store) GetSegment(ctx context.Context, hid string, seq int64) (*segment.Segment, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM state_chain WHERE hid = ? AND seq = ?`, hid, seq).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get segment: %w", err)
	}
	return decodeSegment(body)
}

// GetLastSegment fetches the highest-seq segment for hid, or nil if the
// chain is empty.
func (s *Store) GetLastSegment(ctx context.Context, hid string) (*segment.Segment, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM state_chain WHERE hid = ? ORDER BY seq DESC LIMIT 1`, hid).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get last segment: %w", err)
	}
	return decodeSegment(body)
}

// ListSegments returns every segment for hid in ascending seq order, used
// by Chain.RebuildProjections and Integrity.Scan.
func (s *Store) ListSegments(ctx context.Context, hid string) ([]*segment.Segment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM state_chain WHERE hid = ? ORDER BY seq ASC`, hid)
	if err != nil {
		return nil, fmt.Errorf("store: list segments: %w", err)
	}
	defer rows.Close()

	var out []*segment.Segment
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("store: scan segment: %w", err)
		}
		seg, err := decodeSegment(body)
		if err != nil {
			return nil, err
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

// NonceExistsInChain checks the state_chain's unique nonce index directly,
// independent of sync_log (spec.md §8 invariant 3). No package in this
// module calls it; integrity.Scan does not use it.
func (s *Store) NonceExistsInChain(ctx context.Context, hid, nonce string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM state_chain WHERE hid = ? AND nonce = ?`, hid, nonce).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("store: nonce exists in chain: %w", err)
	}
	return count > 0, nil
}

func decodeSegment(body []byte) (*segment.Segment, error) {
	var seg segment.Segment
	if err := json.Unmarshal(body, &seg); err != nil {
		return nil, fmt.Errorf("store: decode segment: %w", err)
	}
	return &seg, nil
}
