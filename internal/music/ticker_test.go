package music

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

func TestCheckActiveSchedules(t *testing.T) {
	hi := scheduleRowData("sch-hi", "biz-1", "pl-1", "2026-09-15", "09:00", "12:00")
	hi[6] = 8
	lo := scheduleRowData("sch-lo", "biz-1", "pl-2", "2026-09-15", "10:00", "11:00")
	lo[6] = 3
	other := scheduleRowData("sch-other", "biz-2", "pl-3", "2026-09-15", "09:30", "10:30")

	// The query orders by priority DESC, so the winner comes first.
	active := [][]any{hi, lo, other}

	var current [][]any
	mockDB := &MockDB{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			if !strings.Contains(sql, "FROM schedules") {
				t.Fatalf("unexpected query: %s", sql)
			}
			return &MockRows{Data: current, Idx: -1}, nil
		},
	}
	srv := NewServer(mockDB, nil)

	now := time.Date(2026, 9, 15, 10, 15, 0, 0, time.UTC)

	// First tick announces the winner per business.
	current = active
	srv.checkActiveSchedules(context.Background(), now)
	if got := srv.activeSchedules["biz-1"]; got != "sch-hi" {
		t.Errorf("biz-1: expected sch-hi active, got %q", got)
	}
	if got := srv.activeSchedules["biz-2"]; got != "sch-other" {
		t.Errorf("biz-2: expected sch-other active, got %q", got)
	}

	// Same winner on the next tick: state is unchanged.
	srv.checkActiveSchedules(context.Background(), now)
	if len(srv.activeSchedules) != 2 {
		t.Errorf("expected 2 active businesses, got %d", len(srv.activeSchedules))
	}

	// Windows closed: businesses are cleared.
	current = nil
	srv.checkActiveSchedules(context.Background(), now.Add(3*time.Hour))
	if len(srv.activeSchedules) != 0 {
		t.Errorf("expected no active schedules, got %v", srv.activeSchedules)
	}
}

func TestCheckActiveSchedules_QueryError(t *testing.T) {
	mockDB := &MockDB{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			return nil, pgx.ErrTxClosed
		},
	}
	srv := NewServer(mockDB, nil)

	// Must not panic or mutate state on a failed tick.
	srv.checkActiveSchedules(context.Background(), time.Now())
	if len(srv.activeSchedules) != 0 {
		t.Errorf("expected no state after failed query, got %v", srv.activeSchedules)
	}
}
