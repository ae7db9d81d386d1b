// Package caps implements the calendar-windowed quota accountant
// (spec.md §4.6): daily/monthly/yearly counters with UTC calendar resets,
// backed by MySQL via internal/store and cached per-identity in Redis,
// grounded on pkg/nonce/redis_store.go's key-per-identity cache shape.
package caps

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	balerrors "github.com/balancechain/core/internal/common/errors"
	"github.com/balancechain/core/internal/protocol"
	"github.com/balancechain/core/internal/store"
)

const (
	cacheKeyPrefix = "caps"
	cacheTTL       = 5 * time.Minute
)

// State is the externally observable snapshot of an identity's caps
// (spec.md §3 CapsRecord).
type State struct {
	Daily        int64 `json:"daily"`
	Monthly      int64 `json:"monthly"`
	Yearly       int64 `json:"yearly"`
	Total        int64 `json:"total"`
	DailyReset   int64 `json:"dailyReset"`
	MonthlyReset int64 `json:"monthlyReset"`
	YearlyReset  int64 `json:"yearlyReset"`
}

// Available is the remaining headroom per period (spec.md §4.6).
type Available struct {
	Daily   int64 `json:"daily"`
	Monthly int64 `json:"monthly"`
	Yearly  int64 `json:"yearly"`
}

// Accountant is the explicit handle for caps operations (spec.md §9 "no
// module-level mutable state").
type Accountant struct {
	store  *store.Store
	redis  *redis.Client
	logger *zap.Logger
}

// New constructs an Accountant. redisClient may be nil, in which case the
// cache is skipped and every read goes to MySQL.
func New(s *store.Store, redisClient *redis.Client, logger *zap.Logger) *Accountant {
	return &Accountant{store: s, redis: redisClient, logger: logger}
}

func cacheKey(hid string) string {
	return fmt.Sprintf("%s:%s", cacheKeyPrefix, hid)
}

func nextDailyBoundary(now time.Time) int64 {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC).UnixMilli()
}

func nextMonthlyBoundary(now time.Time) int64 {
	y, m, _ := now.UTC().Date()
	return time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
}

func nextYearlyBoundary(now time.Time) int64 {
	y, _, _ := now.UTC().Date()
	return time.Date(y+1, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
}

// applyReset zeroes any counter whose reset boundary has passed and
// advances it to the next one, in place (spec.md §4.6 Current).
func applyReset(row *store.CapsRow, now time.Time) {
	nowMs := now.UnixMilli()
	if row.DailyReset == 0 || nowMs >= row.DailyReset {
		row.DailyCount = 0
		row.DailyReset = nextDailyBoundary(now)
	}
	if row.MonthlyReset == 0 || nowMs >= row.MonthlyReset {
		row.MonthlyCount = 0
		row.MonthlyReset = nextMonthlyBoundary(now)
	}
	if row.YearlyReset == 0 || nowMs >= row.YearlyReset {
		row.YearlyCount = 0
		row.YearlyReset = nextYearlyBoundary(now)
	}
}

func rowToState(row *store.CapsRow) *State {
	return &State{
		Daily: row.DailyCount, Monthly: row.MonthlyCount, Yearly: row.YearlyCount, Total: row.TotalCount,
		DailyReset: row.DailyReset, MonthlyReset: row.MonthlyReset, YearlyReset: row.YearlyReset,
	}
}

// Current reads the stored counters, applying any pending calendar reset
// before the caller ever sees them, and persisting the reset so the next
// read is cheap (spec.md §4.6 Current).
func (a *Accountant) Current(ctx context.Context, hid string) (*State, error) {
	if cached, ok := a.readCache(ctx, hid); ok {
		return cached, nil
	}

	var result *State
	err := a.store.WithCapsTx(ctx, func(tx *sql.Tx) error {
		row, err := a.store.GetCapsTx(ctx, tx, hid)
		if err != nil {
			return err
		}
		now := time.Now()
		if row == nil {
			row = &store.CapsRow{HID: hid}
		}
		applyReset(row, now)
		if err := a.store.UpsertCapsTx(ctx, tx, row); err != nil {
			return err
		}
		result = rowToState(row)
		return nil
	})
	if err != nil {
		return nil, balerrors.DBError(err)
	}

	a.writeCache(ctx, hid, result)
	return result, nil
}

// Increment validates that each counter plus n stays within its cap, and
// if so persists the increase (spec.md §4.6 Increment). It fails with the
// same reason codes validator rule 2 uses, so Validator.Caps and
// Accountant.Increment never disagree.
func (a *Accountant) Increment(ctx context.Context, hid string, n int64) (*State, error) {
	var result *State
	err := a.store.WithCapsTx(ctx, func(tx *sql.Tx) error {
		r, err := a.IncrementTx(ctx, tx, hid, n)
		result = r
		return err
	})
	if err != nil {
		if _, ok := balerrors.AsAppError(err); ok {
			return nil, err
		}
		return nil, balerrors.DBError(err)
	}

	a.InvalidateCache(ctx, hid)
	return result, nil
}

// IncrementTx is Increment performed inside a caller-supplied transaction,
// used by internal/chain so the cap increment is part of the same atomic
// commit as the segment/nonce/projection/head writes (spec.md §4.5).
func (a *Accountant) IncrementTx(ctx context.Context, tx *sql.Tx, hid string, n int64) (*State, error) {
	row, err := a.store.GetCapsTx(ctx, tx, hid)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if row == nil {
		row = &store.CapsRow{HID: hid}
	}
	applyReset(row, now)

	if row.DailyCount+n > protocol.DailyCap {
		return nil, balerrors.Validation(2, "daily_cap_exceeded", "daily cap exceeded")
	}
	if row.MonthlyCount+n > protocol.MonthlyCap {
		return nil, balerrors.Validation(2, "monthly_cap_exceeded", "monthly cap exceeded")
	}
	if row.YearlyCount+n > protocol.YearlyCap {
		return nil, balerrors.Validation(2, "yearly_cap_exceeded", "yearly cap exceeded")
	}

	row.DailyCount += n
	row.MonthlyCount += n
	row.YearlyCount += n
	row.TotalCount += n
	if err := a.store.UpsertCapsTx(ctx, tx, row); err != nil {
		return nil, err
	}
	return rowToState(row), nil
}

// Available returns the remaining headroom per period (spec.md §4.6).
func (a *Accountant) Available(ctx context.Context, hid string) (*Available, error) {
	state, err := a.Current(ctx, hid)
	if err != nil {
		return nil, err
	}
	return &Available{
		Daily:   protocol.DailyCap - state.Daily,
		Monthly: protocol.MonthlyCap - state.Monthly,
		Yearly:  protocol.YearlyCap - state.Yearly,
	}, nil
}

// UnlockedBalance is INITIAL_UNLOCKED + total (spec.md §4.6).
func (a *Accountant) UnlockedBalance(ctx context.Context, hid string) (int64, error) {
	state, err := a.Current(ctx, hid)
	if err != nil {
		return 0, err
	}
	return protocol.InitialUnlocked + state.Total, nil
}

// readCache serves the cached snapshot only while all three reset
// boundaries are still in the future. A cached entry whose daily, monthly,
// or yearly boundary has already passed is treated as a miss, so a read
// just after a calendar rollover falls through to Current's DB path and
// gets the zeroed, re-armed counters instead of serving a stale pre-reset
// count for up to cacheTTL.
func (a *Accountant) readCache(ctx context.Context, hid string) (*State, bool) {
	if a.redis == nil {
		return nil, false
	}
	raw, err := a.redis.Get(ctx, cacheKey(hid)).Bytes()
	if err != nil {
		return nil, false
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, false
	}
	nowMs := time.Now().UnixMilli()
	if nowMs >= state.DailyReset || nowMs >= state.MonthlyReset || nowMs >= state.YearlyReset {
		return nil, false
	}
	return &state, true
}

func (a *Accountant) writeCache(ctx context.Context, hid string, state *State) {
	if a.redis == nil {
		return
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return
	}
	if err := a.redis.Set(ctx, cacheKey(hid), raw, cacheTTL).Err(); err != nil {
		a.logger.Warn("caps: cache write failed", zap.String("hid", hid), zap.Error(err))
	}
}

// InvalidateCache drops the cached snapshot whenever a reset fires or an
// increment is applied (spec.md §4.6).
func (a *Accountant) InvalidateCache(ctx context.Context, hid string) {
	if a.redis == nil {
		return
	}
	if err := a.redis.Del(ctx, cacheKey(hid)).Err(); err != nil {
		a.logger.Warn("caps: cache invalidation failed", zap.String("hid", hid), zap.Error(err))
	}
}
