// README: Ride store contract. Status changes are compare-and-swap on (status, status_version).
package ride

import (
	"context"
	"time"

	"ridehail/internal/apperr"
	"ridehail/internal/types"
)

var (
	ErrNotFound   = apperr.New(apperr.KindNotFound, "ride not found")
	ErrActiveRide = apperr.New(apperr.KindInvalidState, "rider already has an active ride")
)

// StatsWindows are the lower bounds on completed_at for each ride count.
type StatsWindows struct {
	Today time.Time
	Week  time.Time
	Month time.Time
}

type CompletedCounts struct {
	Today int `json:"today_rides"`
	Week  int `json:"week_rides"`
	Month int `json:"month_rides"`
	Total int `json:"total_rides"`
}

type Store interface {
	// Create returns ErrActiveRide if the rider already has a requested,
	// accepted or started ride.
	Create(ctx context.Context, r *Ride) error
	Get(ctx context.Context, id types.ID) (*Ride, error)
	// UpdateStatus applies to and patch only if the ride is still in from at
	// version. It reports false when another writer got there first.
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, patch Patch) (bool, error)
	SetPaymentStatus(ctx context.Context, id types.ID, status PaymentStatus) error
	HasActiveByRider(ctx context.Context, riderID types.ID) (bool, error)
	// CompletedByDriver lists the driver's rides completed at or after since,
	// newest first.
	CompletedByDriver(ctx context.Context, driverID types.ID, since time.Time) ([]*Ride, error)
	CountCompleted(ctx context.Context, driverID types.ID, w StatsWindows) (CompletedCounts, error)
	AppendEvent(ctx context.Context, e *Event) error
	AppendTracking(ctx context.Context, p TrackingPoint) error
	ListTracking(ctx context.Context, rideID types.ID) ([]TrackingPoint, error)
}
