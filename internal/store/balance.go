package store

import (
	"context"
	"database/sql"
	"fmt"
)

// GetBalance reads the TVM balance for hid, defaulting to zero for an
// identity that has never minted.
func (s *Store) GetBalance(ctx context.Context, hid string) (float64, error) {
	var balance float64
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM tvm_balance WHERE hid = ?`, hid).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store: get balance: %w", err)
	}
	return balance, nil
}

// IncrementBalanceTx adds delta to hid's TVM balance inside tx (spec.md
// §4.7 Mint: "only addition via mint and transfer is permitted").
func (s *Store) IncrementBalanceTx(ctx context.Context, tx *sql.Tx, hid string, delta float64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO tvm_balance (hid, balance) VALUES (?, ?)
		 ON DUPLICATE KEY UPDATE balance = balance + VALUES(balance)`,
		hid, delta)
	if err != nil {
		return fmt.Errorf("store: increment balance: %w", err)
	}
	return nil
}
