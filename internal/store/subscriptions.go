package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SubscriptionRow is the persisted form of spec.md §6's payment provider
// subscription state, keyed by owning identity.
type SubscriptionRow struct {
	HID           string
	PlanID        string
	Provider      string
	TransactionID string
	ExpiresAt     int64
	ActivatedAt   int64
	AutoRenew     bool
}

// UpsertSubscription records or replaces an identity's active subscription
// (spec.md §6 "payment provider ... persists subscription state").
func (s *Store) UpsertSubscription(ctx context.Context, r *SubscriptionRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (hid, plan_id, provider, transaction_id, expires_at, activated_at, auto_renew)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE plan_id = VALUES(plan_id), provider = VALUES(provider),
		 transaction_id = VALUES(transaction_id), expires_at = VALUES(expires_at),
		 activated_at = VALUES(activated_at), auto_renew = VALUES(auto_renew)`,
		r.HID, r.PlanID, r.Provider, r.TransactionID, r.ExpiresAt, r.ActivatedAt, r.AutoRenew)
	if err != nil {
		return fmt.Errorf("store: upsert subscription: %w", err)
	}
	return nil
}

// GetSubscription returns the current subscription for hid, or nil if none
// exists.
func (s *Store) GetSubscription(ctx context.Context, hid string) (*SubscriptionRow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT hid, plan_id, provider, transaction_id, expires_at, activated_at, auto_renew
		 FROM subscriptions WHERE hid = ?`, hid)
	r := &SubscriptionRow{}
	err := row.Scan(&r.HID, &r.PlanID, &r.Provider, &r.TransactionID, &r.ExpiresAt, &r.ActivatedAt, &r.AutoRenew)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get subscription: %w", err)
	}
	return r, nil
}
