package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestWallClock(t *testing.T) {
	loc := time.FixedZone("EAT", 3*60*60)
	naive := time.Date(2026, 3, 10, 21, 59, 0, 0, time.UTC)
	got := wallClock(naive, loc)
	if h, m, _ := got.Clock(); h != 21 || m != 59 {
		t.Errorf("wallClock clock = %02d:%02d, want 21:59", h, m)
	}
	if got.Location() != loc {
		t.Errorf("wallClock location = %v, want EAT", got.Location())
	}
	if !got.Equal(naive.Add(-3 * time.Hour)) {
		t.Errorf("wallClock instant = %v, want 3h before the UTC reading", got)
	}
}

func TestVehicle_ExitOr(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	parked := Vehicle{EntryTime: now.Add(-time.Hour)}
	if got := parked.ExitOr(now); !got.Equal(now) {
		t.Errorf("ExitOr() for parked vehicle = %v, want now", got)
	}
	exit := now.Add(-10 * time.Minute)
	left := Vehicle{EntryTime: now.Add(-time.Hour), ExitTime: &exit}
	if got := left.ExitOr(now); !got.Equal(exit) {
		t.Errorf("ExitOr() for departed vehicle = %v, want %v", got, exit)
	}
}

// setupTestStore points both facilities at the same database, which must hold a
// transactions table and a check_parking_fee_due(text) function.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("PARKING_TEST_DB_URL")
	if url == "" {
		t.Skip("PARKING_TEST_DB_URL not set")
	}
	ctx := context.Background()
	pool, err := NewPool(ctx, url, 2)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return New(pool, pool, time.UTC)
}

func TestStore_LatestVisitNotFound(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.LatestVisit(context.Background(), "NOSUCHPLATE")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("LatestVisit() error = %v, want ErrNotFound", err)
	}
}

func TestStore_LinkPhoneRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	const plate = "TST001X"
	_, err := s.ridgeways.Exec(ctx, `INSERT INTO transactions (vehicle_number, time_in) VALUES ($1, now())`, plate)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.ridgeways.Exec(context.Background(), `DELETE FROM transactions WHERE vehicle_number = $1`, plate)
	})

	if err := s.LinkPhone(ctx, plate, "254700000001"); err != nil {
		t.Fatalf("LinkPhone() error = %v", err)
	}
	plates, err := s.LinkedVehicles(ctx, "254700000001", 9)
	if err != nil {
		t.Fatalf("LinkedVehicles() error = %v", err)
	}
	if len(plates) != 1 || plates[0] != plate {
		t.Errorf("LinkedVehicles() = %v, want [%s]", plates, plate)
	}
	v, err := s.LatestVisit(ctx, plate)
	if err != nil {
		t.Fatalf("LatestVisit() error = %v", err)
	}
	if v.ExitTime != nil {
		t.Errorf("expected open visit, got exit %v", v.ExitTime)
	}
}
