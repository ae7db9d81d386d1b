package caps

import (
	"testing"
	"time"

	"github.com/balancechain/core/internal/protocol"
	"github.com/balancechain/core/internal/store"
)

func TestNextDailyBoundary_IsFollowingUTCMidnight(t *testing.T) {
	now := time.Date(2026, 7, 31, 15, 30, 0, 0, time.UTC)
	got := time.UnixMilli(nextDailyBoundary(now)).UTC()
	want := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNextMonthlyBoundary_IsFirstOfNextMonth(t *testing.T) {
	now := time.Date(2026, 7, 31, 15, 30, 0, 0, time.UTC)
	got := time.UnixMilli(nextMonthlyBoundary(now)).UTC()
	want := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNextYearlyBoundary_IsNextJanFirst(t *testing.T) {
	now := time.Date(2026, 7, 31, 15, 30, 0, 0, time.UTC)
	got := time.UnixMilli(nextYearlyBoundary(now)).UTC()
	want := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestApplyReset_ZeroesExpiredCountersAndAdvances(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour).UnixMilli()
	row := &store.CapsRow{
		HID: "HID-TEST0001",
		DailyCount: 42, MonthlyCount: 100, YearlyCount: 1000, TotalCount: 1000,
		DailyReset: past, MonthlyReset: past, YearlyReset: past,
	}

	applyReset(row, now)

	if row.DailyCount != 0 || row.MonthlyCount != 0 || row.YearlyCount != 0 {
		t.Errorf("expected all counters reset to zero, got %+v", row)
	}
	if row.TotalCount != 1000 {
		t.Errorf("total must never reset, got %d", row.TotalCount)
	}
	if row.DailyReset <= now.UnixMilli() {
		t.Error("expected daily reset advanced to the future")
	}
}

func TestApplyReset_LeavesUnexpiredCountersUntouched(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour).UnixMilli()
	row := &store.CapsRow{
		HID: "HID-TEST0001",
		DailyCount: 42, DailyReset: future,
		MonthlyReset: future, YearlyReset: future,
	}

	applyReset(row, now)

	if row.DailyCount != 42 {
		t.Errorf("expected unexpired daily counter untouched, got %d", row.DailyCount)
	}
}

func TestRowToState_MapsFieldsDirectly(t *testing.T) {
	row := &store.CapsRow{
		HID: "HID-TEST0001", DailyCount: 1, MonthlyCount: 2, YearlyCount: 3, TotalCount: 4,
		DailyReset: 5, MonthlyReset: 6, YearlyReset: 7,
	}
	state := rowToState(row)
	if state.Daily != 1 || state.Monthly != 2 || state.Yearly != 3 || state.Total != 4 {
		t.Errorf("unexpected state: %+v", state)
	}
}

func TestCacheKey_IsNamespacedPerIdentity(t *testing.T) {
	if cacheKey("HID-ABC") == cacheKey("HID-DEF") {
		t.Error("expected distinct cache keys for distinct identities")
	}
	if cacheKey("HID-ABC") != "caps:HID-ABC" {
		t.Errorf("unexpected cache key shape: %q", cacheKey("HID-ABC"))
	}
}

func TestProtocolCapsAreWiredIntoIncrementBounds(t *testing.T) {
	// Sanity check that the package references the spec-fixed cap
	// constants rather than re-declaring its own.
	if protocol.DailyCap != 3600 || protocol.MonthlyCap != 36000 || protocol.YearlyCap != 120000 {
		t.Fatalf("unexpected protocol cap constants: %d %d %d", protocol.DailyCap, protocol.MonthlyCap, protocol.YearlyCap)
	}
}
