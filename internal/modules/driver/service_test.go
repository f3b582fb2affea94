package driver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ridehail/internal/apperr"
	"ridehail/internal/cache"
	"ridehail/internal/logger"
	"ridehail/internal/modules/location"
	"ridehail/internal/types"
)

func newTestDriver(id types.ID) Driver {
	return Driver{
		ID:        id,
		Online:    true,
		Verified:  true,
		Available: true,
		Vehicle:   &Vehicle{ID: types.ID("v_" + id), Class: types.ClassEconomy, Active: true, Verified: true},
	}
}

func newTestService(t *testing.T) (*Service, *MemoryStore, *location.Service) {
	t.Helper()
	store := NewMemoryStore()
	locs := location.NewService(location.NewMemoryIndex(), nil, cache.NewMemoryCache(), 5*time.Minute, logger.Nop())
	return NewService(store, locs, logger.Nop()), store, locs
}

func TestToggleOnline_OfflineForcesUnavailable(t *testing.T) {
	svc, store, locs := newTestService(t)
	ctx := context.Background()
	store.Save(newTestDriver("d1"))

	if _, err := svc.UpdateLocation(ctx, "d1", types.Point{Lat: 28.61, Lng: 77.20}); err != nil {
		t.Fatalf("update location: %v", err)
	}

	d, err := svc.ToggleOnline(ctx, "d1")
	if err != nil {
		t.Fatalf("toggle online: %v", err)
	}
	if d.Online || d.Available {
		t.Fatalf("offline driver must be unavailable, got online=%v available=%v", d.Online, d.Available)
	}
	near, _ := locs.Query(ctx, types.Point{Lat: 28.61, Lng: 77.20}, 5)
	if len(near) != 0 {
		t.Fatalf("offline driver still in geo index: %v", near)
	}

	d, err = svc.ToggleOnline(ctx, "d1")
	if err != nil {
		t.Fatalf("toggle online again: %v", err)
	}
	if !d.Online || !d.Available {
		t.Fatalf("driver coming online should be available, got %+v", d)
	}
}

func TestToggleAvailable_RequiresOnline(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	d := newTestDriver("d1")
	d.Online, d.Available = false, false
	store.Save(d)

	if _, err := svc.ToggleAvailable(ctx, "d1"); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("toggle available while offline: got %v, want invalid state", err)
	}
	if _, err := svc.ToggleAvailable(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("toggle unknown driver: got %v, want not found", err)
	}

	if _, err := svc.ToggleOnline(ctx, "d1"); err != nil {
		t.Fatalf("toggle online: %v", err)
	}
	got, err := svc.ToggleAvailable(ctx, "d1")
	if err != nil {
		t.Fatalf("toggle available: %v", err)
	}
	if got.Available {
		t.Fatalf("expected available to flip to false")
	}
}

func TestClaim_SingleWinner(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	store.Save(newTestDriver("d1"))

	const attempts = 16
	var wg sync.WaitGroup
	wins := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := svc.Claim(ctx, "d1")
			if err != nil {
				t.Errorf("claim: %v", err)
			}
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	n := 0
	for ok := range wins {
		if ok {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("expected exactly one successful claim, got %d", n)
	}

	if err := svc.Release(ctx, "d1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	d, _ := svc.Get(ctx, "d1")
	if !d.Available {
		t.Fatalf("released online driver should be available")
	}
}

func TestRelease_KeepsOfflineDriverUnavailable(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	store.Save(newTestDriver("d1"))

	if ok, _ := svc.Claim(ctx, "d1"); !ok {
		t.Fatalf("claim failed")
	}
	if _, err := svc.ToggleOnline(ctx, "d1"); err != nil {
		t.Fatalf("go offline: %v", err)
	}
	if err := svc.Release(ctx, "d1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	d, _ := svc.Get(ctx, "d1")
	if d.Available {
		t.Fatalf("available must imply online")
	}
}

func TestRecordTripAndRating(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	store.Save(newTestDriver("d1"))

	share := types.Money{Amount: 36540, Currency: types.DefaultCurrency}
	if err := svc.RecordTrip(ctx, "d1", share); err != nil {
		t.Fatalf("record trip: %v", err)
	}
	if err := svc.RecordTrip(ctx, "d1", share); err != nil {
		t.Fatalf("record trip: %v", err)
	}
	if err := svc.ApplyRating(ctx, "d1", 4.5, 2); err != nil {
		t.Fatalf("apply rating: %v", err)
	}
	d, _ := svc.Get(ctx, "d1")
	if d.TotalRides != 2 || d.TotalEarnings.Amount != 73080 {
		t.Fatalf("unexpected totals: rides=%d earnings=%d", d.TotalRides, d.TotalEarnings.Amount)
	}
	if d.AverageRating != 4.5 || d.RatingCount != 2 {
		t.Fatalf("unexpected rating: %v (%d)", d.AverageRating, d.RatingCount)
	}
}

func TestCanTakeRides(t *testing.T) {
	base := newTestDriver("d1")
	cases := []struct {
		name   string
		mutate func(d *Driver)
		want   bool
	}{
		{"eligible", func(d *Driver) {}, true},
		{"offline", func(d *Driver) { d.Online = false }, false},
		{"busy", func(d *Driver) { d.Available = false }, false},
		{"unverified", func(d *Driver) { d.Verified = false }, false},
		{"no vehicle", func(d *Driver) { d.Vehicle = nil }, false},
		{"vehicle inactive", func(d *Driver) { d.Vehicle.Active = false }, false},
		{"vehicle unverified", func(d *Driver) { d.Vehicle.Verified = false }, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d := clone(&base)
			c.mutate(d)
			if got := d.CanTakeRides(); got != c.want {
				t.Errorf("CanTakeRides() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestLocationHistory(t *testing.T) {
	store := NewMemoryStore()
	locs := location.NewService(location.NewMemoryIndex(), location.NewMemoryHistory(0), cache.NewMemoryCache(), 5*time.Minute, logger.Nop())
	svc := NewService(store, locs, logger.Nop())
	ctx := context.Background()
	store.Save(newTestDriver("d1"))

	for _, lat := range []float64{28.61, 28.62} {
		if _, err := svc.UpdateLocation(ctx, "d1", types.Point{Lat: lat, Lng: 77.20}); err != nil {
			t.Fatalf("update location: %v", err)
		}
	}
	got, err := svc.LocationHistory(ctx, "d1", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(got) != 2 || got[0].Position.Lat != 28.62 {
		t.Fatalf("unexpected history: %+v", got)
	}
	if _, err := svc.LocationHistory(ctx, "ghost", 10); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("unknown driver: %v", err)
	}
}
