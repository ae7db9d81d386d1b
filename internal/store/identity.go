package store

import (
	"context"
	"database/sql"
	"fmt"
)

// IdentityRecord is the persisted identity row (spec.md §3 Identity).
type IdentityRecord struct {
	HID        string
	Algorithm  string
	PublicKey  string
	CreatedVia string
	CreatedAt  int64
}

// SaveIdentity inserts a new identity row. Identities are immutable after
// creation (spec.md §3 "persisted once, never mutated").
func (s *Store) SaveIdentity(ctx context.Context, rec IdentityRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO identity (hid, algorithm, public_key, created_via, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.HID, rec.Algorithm, rec.PublicKey, rec.CreatedVia, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: save identity: %w", err)
	}
	return nil
}

// GetIdentity fetches an identity by HID, or nil if unknown.
func (s *Store) GetIdentity(ctx context.Context, hid string) (*IdentityRecord, error) {
	rec := &IdentityRecord{}
	err := s.db.QueryRowContext(ctx,
		`SELECT hid, algorithm, public_key, created_via, created_at FROM identity WHERE hid = ?`, hid).
		Scan(&rec.HID, &rec.Algorithm, &rec.PublicKey, &rec.CreatedVia, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get identity: %w", err)
	}
	return rec, nil
}
