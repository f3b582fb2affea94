package rating

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"ridehail/internal/apperr"
	"ridehail/internal/logger"
	"ridehail/internal/modules/ride"
	"ridehail/internal/types"
)

type driverRatingsStub struct {
	mu    sync.Mutex
	avg   map[types.ID]float64
	count map[types.ID]int
}

func (d *driverRatingsStub) ApplyRating(_ context.Context, id types.ID, avg float64, count int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.avg[id] = avg
	d.count[id] = count
	return nil
}

func newTestService(t *testing.T) (*Service, *ride.MemoryStore, *driverRatingsStub) {
	t.Helper()
	rides := ride.NewMemoryStore()
	drivers := &driverRatingsStub{avg: map[types.ID]float64{}, count: map[types.ID]int{}}
	return NewService(NewMemoryStore(), rides, drivers, logger.Nop()), rides, drivers
}

func addRide(t *testing.T, rides *ride.MemoryStore, id, riderID, driverID types.ID, status ride.Status) {
	t.Helper()
	r := &ride.Ride{
		ID:          id,
		RiderID:     riderID,
		Class:       types.ClassEconomy,
		Status:      status,
		RequestedAt: time.Now(),
	}
	if driverID != "" {
		r.DriverID = &driverID
	}
	if err := rides.Create(context.Background(), r); err != nil {
		t.Fatalf("create ride: %v", err)
	}
}

func TestSubmit(t *testing.T) {
	svc, rides, _ := newTestService(t)
	addRide(t, rides, "R1", "rider_1", "drv_1", ride.StatusCompleted)
	addRide(t, rides, "R2", "rider_1", "drv_1", ride.StatusStarted)

	tests := []struct {
		name    string
		cmd     SubmitCommand
		wantErr error
	}{
		{"unknown ride", SubmitCommand{RideID: "R404", RaterID: "rider_1", Role: types.RoleRider, Score: 5}, apperr.ErrNotFound},
		{"not completed", SubmitCommand{RideID: "R2", RaterID: "rider_1", Role: types.RoleRider, Score: 5}, apperr.ErrInvalidState},
		{"stranger", SubmitCommand{RideID: "R1", RaterID: "rider_2", Role: types.RoleRider, Score: 5}, apperr.ErrUnauthorized},
		{"rider claiming driver side", SubmitCommand{RideID: "R1", RaterID: "rider_1", Role: types.RoleDriver, Score: 5}, apperr.ErrUnauthorized},
		{"admin", SubmitCommand{RideID: "R1", RaterID: "ops", Role: types.RoleAdmin, Score: 5}, apperr.ErrUnauthorized},
		{"score too low", SubmitCommand{RideID: "R1", RaterID: "rider_1", Role: types.RoleRider, Score: 0}, apperr.ErrValidation},
		{"score too high", SubmitCommand{RideID: "R1", RaterID: "rider_1", Role: types.RoleRider, Score: 6}, apperr.ErrValidation},
		{"feedback too long", SubmitCommand{RideID: "R1", RaterID: "rider_1", Role: types.RoleRider, Score: 4, Feedback: strings.Repeat("a", 501)}, apperr.ErrValidation},
		{"rider rates driver", SubmitCommand{RideID: "R1", RaterID: "rider_1", Role: types.RoleRider, Score: 4, Feedback: " smooth ride "}, nil},
		{"duplicate", SubmitCommand{RideID: "R1", RaterID: "rider_1", Role: types.RoleRider, Score: 3}, apperr.ErrAlreadyProcessed},
		{"driver rates rider", SubmitCommand{RideID: "R1", RaterID: "drv_1", Role: types.RoleDriver, Score: 5}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Submit(context.Background(), tt.cmd)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("submit: %v", err)
			}
			if got.ID == "" || got.Score != tt.cmd.Score {
				t.Fatalf("unexpected rating: %+v", got)
			}
		})
	}

	if _, err := svc.ForRide(context.Background(), "R1", "rider_9", types.RoleRider); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("outsider read ride ratings: %v", err)
	}
	all, err := svc.ForRide(context.Background(), "R1", "drv_1", types.RoleDriver)
	if err != nil {
		t.Fatalf("ride ratings: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 ratings for ride, got %d", len(all))
	}
	for _, r := range all {
		if r.Direction == RiderToDriver && (r.RateeID != "drv_1" || r.Feedback != "smooth ride") {
			t.Fatalf("unexpected rider rating: %+v", r)
		}
		if r.Direction == DriverToRider && r.RateeID != "rider_1" {
			t.Fatalf("unexpected driver rating: %+v", r)
		}
	}
}

func TestSubmitRefreshesDriverAverage(t *testing.T) {
	svc, rides, drivers := newTestService(t)
	ctx := context.Background()
	for i, score := range []int{5, 4, 4} {
		id := types.ID(fmt.Sprintf("R%d", i))
		rider := types.ID(fmt.Sprintf("rider_%d", i))
		addRide(t, rides, id, rider, "drv_1", ride.StatusCompleted)
		if _, err := svc.Submit(ctx, SubmitCommand{RideID: id, RaterID: rider, Role: types.RoleRider, Score: score}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	if drivers.avg["drv_1"] != 4.33 || drivers.count["drv_1"] != 3 {
		t.Fatalf("driver average = %v over %d, want 4.33 over 3", drivers.avg["drv_1"], drivers.count["drv_1"])
	}

	st, err := svc.Stats(ctx, "drv_1", types.RoleDriver)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 3 || st.Average != 4.33 || st.Distribution[4] != 2 || st.Distribution[5] != 1 || st.Distribution[1] != 0 {
		t.Fatalf("unexpected stats: %+v", st)
	}

	received, _ := svc.Received(ctx, "drv_1", types.RoleDriver, 2)
	if len(received) != 2 {
		t.Fatalf("expected limit to apply, got %d", len(received))
	}
}

func TestStatsEmpty(t *testing.T) {
	svc, _, _ := newTestService(t)
	st, err := svc.Stats(context.Background(), "nobody", types.RoleRider)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 0 || st.Average != 0 || len(st.Distribution) != 5 {
		t.Fatalf("unexpected empty stats: %+v", st)
	}
}

func TestCanRate(t *testing.T) {
	svc, rides, _ := newTestService(t)
	ctx := context.Background()
	addRide(t, rides, "R1", "rider_1", "drv_1", ride.StatusCompleted)
	addRide(t, rides, "R2", "rider_1", "", ride.StatusCancelled)
	if _, err := svc.Submit(ctx, SubmitCommand{RideID: "R1", RaterID: "drv_1", Role: types.RoleDriver, Score: 5}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	tests := []struct {
		name   string
		ride   types.ID
		user   types.ID
		role   types.Role
		want   bool
		reason string
	}{
		{"rider may rate", "R1", "rider_1", types.RoleRider, true, ""},
		{"driver already rated", "R1", "drv_1", types.RoleDriver, false, "Already rated"},
		{"stranger", "R1", "rider_2", types.RoleRider, false, "Not authorized"},
		{"cancelled ride", "R2", "rider_1", types.RoleRider, false, "Ride not completed"},
		{"unknown ride", "R404", "rider_1", types.RoleRider, false, "Ride not completed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.CanRate(ctx, tt.ride, tt.user, tt.role)
			if err != nil {
				t.Fatalf("can rate: %v", err)
			}
			if got.CanRate != tt.want || got.Reason != tt.reason {
				t.Fatalf("got %+v, want can_rate=%v reason=%q", got, tt.want, tt.reason)
			}
		})
	}
}

func TestConcurrentDuplicateSubmit(t *testing.T) {
	svc, rides, _ := newTestService(t)
	addRide(t, rides, "R1", "rider_1", "drv_1", ride.StatusCompleted)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Submit(context.Background(), SubmitCommand{RideID: "R1", RaterID: "rider_1", Role: types.RoleRider, Score: 5})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, apperr.ErrAlreadyProcessed) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 success, got %d", success)
	}
}
