package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CapsRow is the persisted CapsRecord (spec.md §3): four counters and
// three reset timestamps, one row per identity. Spec.md §4.2 describes the
// collection as keyed by `"{period}:{hid}"`; this Store keeps the entity's
// natural shape instead — one row holding all three periods together,
// since the periods are read and reset as a unit by internal/caps — and
// records the deviation in DESIGN.md.
type CapsRow struct {
	HID          string
	DailyCount   int64
	MonthlyCount int64
	YearlyCount  int64
	TotalCount   int64
	DailyReset   int64
	MonthlyReset int64
	YearlyReset  int64
}

// GetCapsTx reads the caps row for hid inside tx, locking it for update so
// Caps.Increment's read-check-write is linearized (spec.md §4.6).
func (s *Store) GetCapsTx(ctx context.Context, tx *sql.Tx, hid string) (*CapsRow, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT hid, daily_count, monthly_count, yearly_count, total_count, daily_reset, monthly_reset, yearly_reset
		 FROM caps WHERE hid = ? FOR UPDATE`, hid)
	return scanCaps(row, hid)
}

// GetCaps reads the caps row for hid without locking, for read-only
// queries (Caps.Available, Caps.UnlockedBalance).
func (s *Store) GetCaps(ctx context.Context, hid string) (*CapsRow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT hid, daily_count, monthly_count, yearly_count, total_count, daily_reset, monthly_reset, yearly_reset
		 FROM caps WHERE hid = ?`, hid)
	return scanCaps(row, hid)
}

func scanCaps(row *sql.Row, hid string) (*CapsRow, error) {
	c := &CapsRow{HID: hid}
	err := row.Scan(&c.HID, &c.DailyCount, &c.MonthlyCount, &c.YearlyCount, &c.TotalCount,
		&c.DailyReset, &c.MonthlyReset, &c.YearlyReset)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan caps: %w", err)
	}
	return c, nil
}

// UpsertCapsTx inserts or overwrites the caps row for hid inside tx, used
// both by reset (zeroing a counter, advancing its boundary) and by
// increment.
func (s *Store) UpsertCapsTx(ctx context.Context, tx *sql.Tx, c *CapsRow) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO caps (hid, daily_count, monthly_count, yearly_count, total_count, daily_reset, monthly_reset, yearly_reset)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE
		   daily_count = VALUES(daily_count), monthly_count = VALUES(monthly_count),
		   yearly_count = VALUES(yearly_count), total_count = VALUES(total_count),
		   daily_reset = VALUES(daily_reset), monthly_reset = VALUES(monthly_reset), yearly_reset = VALUES(yearly_reset)`,
		c.HID, c.DailyCount, c.MonthlyCount, c.YearlyCount, c.TotalCount, c.DailyReset, c.MonthlyReset, c.YearlyReset)
	if err != nil {
		return fmt.Errorf("store: upsert caps: %w", err)
	}
	return nil
}

// WithCapsTx runs fn inside a transaction, handing it to the Store's
// shared TxRunner — used by internal/caps so reset+increment is one
// atomic read-modify-write.
func (s *Store) WithCapsTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return s.txr.WithTx(ctx, fn)
}
