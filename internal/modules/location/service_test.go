package location

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"ridehail/internal/apperr"
	"ridehail/internal/cache"
	"ridehail/internal/logger"
	"ridehail/internal/types"
)

var pickup = types.Point{Lat: 28.6139, Lng: 77.2090}

func newTestService(staleAfter time.Duration) (*Service, *time.Time) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := NewService(NewMemoryIndex(), nil, cache.NewMemoryCache(), staleAfter, logger.Nop())
	svc.now = func() time.Time { return now }
	return svc, &now
}

func TestQuery_SortedAndRadiusBound(t *testing.T) {
	svc, _ := newTestService(5 * time.Minute)
	ctx := context.Background()

	mustUpdate(t, svc, "far", types.Point{Lat: 28.75, Lng: 77.2090})   // ~15 km
	mustUpdate(t, svc, "mid", types.Point{Lat: 28.64, Lng: 77.2090})   // ~2.9 km
	mustUpdate(t, svc, "near", types.Point{Lat: 28.62, Lng: 77.2090})  // ~0.7 km
	mustUpdate(t, svc, "near2", types.Point{Lat: 28.62, Lng: 77.2090}) // tie with near

	got, err := svc.Query(ctx, pickup, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	want := []types.ID{"near", "near2", "mid"}
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d: %+v", len(got), len(want), got)
	}
	for i, id := range want {
		if got[i].DriverID != id {
			t.Errorf("position %d: got %s, want %s", i, got[i].DriverID, id)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].DistanceKm < got[i-1].DistanceKm {
			t.Errorf("results not ascending at %d", i)
		}
	}
}

func TestQuery_ExcludesStaleLocations(t *testing.T) {
	svc, now := newTestService(5 * time.Minute)
	ctx := context.Background()

	mustUpdate(t, svc, "stale", types.Point{Lat: 28.615, Lng: 77.2090})
	*now = now.Add(6 * time.Minute)
	mustUpdate(t, svc, "fresh", types.Point{Lat: 28.62, Lng: 77.2090})

	got, err := svc.Query(ctx, pickup, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].DriverID != "fresh" {
		t.Fatalf("expected only the fresh driver, got %+v", got)
	}
}

func TestQuery_EmptyIsNotAnError(t *testing.T) {
	svc, _ := newTestService(time.Minute)
	got, err := svc.Query(context.Background(), pickup, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestUpdateDriverLocation_Validation(t *testing.T) {
	svc, _ := newTestService(time.Minute)
	ctx := context.Background()

	cases := []types.Point{
		{Lat: 91, Lng: 0},
		{Lat: 0, Lng: -181},
	}
	for _, p := range cases {
		if _, err := svc.UpdateDriverLocation(ctx, "d1", p); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("UpdateDriverLocation(%v) = %v, want validation error", p, err)
		}
	}
	if _, err := svc.Query(ctx, pickup, 0); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("zero radius should be rejected, got %v", err)
	}
}

func TestRemoveDriver(t *testing.T) {
	svc, _ := newTestService(time.Minute)
	ctx := context.Background()
	mustUpdate(t, svc, "d1", types.Point{Lat: 28.62, Lng: 77.2090})

	if _, ok, _ := svc.LastKnown(ctx, "d1"); !ok {
		t.Fatalf("expected cached last known location")
	}
	if err := svc.RemoveDriver(ctx, "d1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	got, _ := svc.Query(ctx, pickup, 10)
	if len(got) != 0 {
		t.Fatalf("removed driver still indexed: %v", got)
	}
	if _, ok, _ := svc.LastKnown(ctx, "d1"); ok {
		t.Fatalf("removed driver still cached")
	}
}

func TestRedisIndex_Nearby(t *testing.T) {
	redisAddr := os.Getenv("RIDEHAIL_TEST_REDIS_ADDR")
	if redisAddr == "" {
		t.Skip("RIDEHAIL_TEST_REDIS_ADDR not set; skipping integration test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()

	ctx := context.Background()
	idx := NewRedisIndex(rdb)
	id := types.ID(fmt.Sprintf("driver_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() { _ = idx.Remove(ctx, id) })

	now := time.Now()
	if err := idx.Upsert(ctx, id, types.Point{Lat: 28.62, Lng: 77.2090}, now); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := idx.Nearby(ctx, pickup, 2)
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	var found bool
	for _, n := range got {
		if n.DriverID == id {
			found = true
			if n.RecordedAt.UnixMilli() != now.UnixMilli() {
				t.Errorf("recorded at = %v, want %v", n.RecordedAt, now)
			}
		}
	}
	if !found {
		t.Fatalf("driver %s not returned by GEOSEARCH", id)
	}
}

func mustUpdate(t *testing.T, svc *Service, id types.ID, p types.Point) {
	t.Helper()
	if _, err := svc.UpdateDriverLocation(context.Background(), id, p); err != nil {
		t.Fatalf("update %s: %v", id, err)
	}
}

func TestHistoryNewestFirstAndBounded(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := NewService(NewMemoryIndex(), NewMemoryHistory(3), cache.NewMemoryCache(), 5*time.Minute, logger.Nop())
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	lats := []float64{28.610, 28.611, 28.612, 28.613, 28.614}
	for _, lat := range lats {
		mustUpdate(t, svc, "d1", types.Point{Lat: lat, Lng: 77.20})
		now = now.Add(time.Second)
	}
	mustUpdate(t, svc, "d2", pickup)

	got, err := svc.History(ctx, "d1", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("kept %d snapshots, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i-1].RecordedAt.After(got[i].RecordedAt) {
			t.Fatalf("history not newest first: %+v", got)
		}
	}
	if got[0].Position.Lat != lats[4] || got[2].Position.Lat != lats[2] {
		t.Fatalf("newest snapshot = %+v", got[0])
	}

	if got, _ := svc.History(ctx, "d1", 1); len(got) != 1 {
		t.Fatalf("limit not applied: %d", len(got))
	}
	noHistory, _ := newTestService(5 * time.Minute)
	if got, err := noHistory.History(ctx, "d1", 10); err != nil || got == nil || len(got) != 0 {
		t.Fatalf("history without store = %v, %v", got, err)
	}
}
