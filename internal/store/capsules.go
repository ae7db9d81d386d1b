package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CapsuleRow is the persisted Capsule (spec.md §3).
type CapsuleRow struct {
	ID            string
	HID           string
	SessionID     string
	RichScore     float64
	BusinessScore float64
	ECFScore      float64
	Motivator     string
	Category      string
	ContentHash   string
	Status        string
	Reason        string
	CreatedAt     int64
	MintSeq       *int64
}

// InsertCapsule persists a freshly created or rejected capsule (spec.md
// §4.7 Create).
func (s *Store) InsertCapsule(ctx context.Context, c *CapsuleRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO capsules (id, hid, session_id, rich_score, business_score, ecf_score, motivator, category, content_hash, status, reason, created_at, mint_seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.HID, c.SessionID, c.RichScore, c.BusinessScore, c.ECFScore, c.Motivator, c.Category,
		c.ContentHash, c.Status, c.Reason, c.CreatedAt, c.MintSeq)
	if err != nil {
		return fmt.Errorf("store: insert capsule: %w", err)
	}
	return nil
}

// GetCapsuleTx reads a capsule by id inside tx, locked for update so
// Capsules.Mint's check-then-set is linearized.
func (s *Store) GetCapsuleTx(ctx context.Context, tx *sql.Tx, id string) (*CapsuleRow, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT id, hid, session_id, rich_score, business_score, ecf_score, motivator, category, content_hash, status, reason, created_at, mint_seq
		 FROM capsules WHERE id = ? FOR UPDATE`, id)
	return scanCapsule(row)
}

// GetCapsule reads a capsule by id without locking.
func (s *Store) GetCapsule(ctx context.Context, id string) (*CapsuleRow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, hid, session_id, rich_score, business_score, ecf_score, motivator, category, content_hash, status, reason, created_at, mint_seq
		 FROM capsules WHERE id = ?`, id)
	return scanCapsule(row)
}

func scanCapsule(row *sql.Row) (*CapsuleRow, error) {
	c := &CapsuleRow{}
	err := row.Scan(&c.ID, &c.HID, &c.SessionID, &c.RichScore, &c.BusinessScore, &c.ECFScore,
		&c.Motivator, &c.Category, &c.ContentHash, &c.Status, &c.Reason, &c.CreatedAt, &c.MintSeq)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan capsule: %w", err)
	}
	return c, nil
}

// MarkCapsuleMintedTx flips a capsule to minted and records its chain
// sequence, inside the same transaction as the chain commit it followed
// (spec.md §4.7 Mint).
func (s *Store) MarkCapsuleMintedTx(ctx context.Context, tx *sql.Tx, id string, mintSeq int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE capsules SET status = 'minted', mint_seq = ? WHERE id = ?`, mintSeq, id)
	if err != nil {
		return fmt.Errorf("store: mark capsule minted: %w", err)
	}
	return nil
}

// ListCapsulesBySession returns every capsule created for a session. No
// package in this module calls it; capsules.Similarity compares two rows
// it is handed.
func (s *Store) ListCapsulesBySession(ctx context.Context, sessionID string) ([]*CapsuleRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, hid, session_id, rich_score, business_score, ecf_score, motivator, category, content_hash, status, reason, created_at, mint_seq
		 FROM capsules WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list capsules by session: %w", err)
	}
	defer rows.Close()
	return scanCapsules(rows)
}

// ListMintedCapsules returns every minted capsule owned by hid. No package
// in this module calls it.
func (s *Store) ListMintedCapsules(ctx context.Context, hid string) ([]*CapsuleRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, hid, session_id, rich_score, business_score, ecf_score, motivator, category, content_hash, status, reason, created_at, mint_seq
		 FROM capsules WHERE hid = ? AND status = 'minted'`, hid)
	if err != nil {
		return nil, fmt.Errorf("store: list minted capsules: %w", err)
	}
	defer rows.Close()
	return scanCapsules(rows)
}

func scanCapsules(rows *sql.Rows) ([]*CapsuleRow, error) {
	var out []*CapsuleRow
	for rows.Next() {
		c := &CapsuleRow{}
		if err := rows.Scan(&c.ID, &c.HID, &c.SessionID, &c.RichScore, &c.BusinessScore, &c.ECFScore,
			&c.Motivator, &c.Category, &c.ContentHash, &c.Status, &c.Reason, &c.CreatedAt, &c.MintSeq); err != nil {
			return nil, fmt.Errorf("store: scan capsule: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
