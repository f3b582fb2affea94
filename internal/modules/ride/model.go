// README: Ride aggregate, status flow and tracking points.
package ride

import (
	"time"

	"ridehail/internal/types"
)

type Status string

const (
	StatusNone      Status = "none"
	StatusRequested Status = "requested"
	StatusAccepted  Status = "accepted"
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type Place struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

func (p Place) Point() types.Point { return types.Point{Lat: p.Lat, Lng: p.Lng} }

type Ride struct {
	ID            types.ID            `json:"id"`
	RiderID       types.ID            `json:"rider_id"`
	DriverID      *types.ID           `json:"driver_id,omitempty"`
	VehicleID     *types.ID           `json:"vehicle_id,omitempty"`
	Class         types.RideClass     `json:"ride_class"`
	Status        Status              `json:"status"`
	StatusVersion int                 `json:"status_version"`
	Pickup        Place               `json:"pickup"`
	Drop          Place               `json:"drop"`
	PaymentMethod types.PaymentMethod `json:"payment_method"`
	PaymentStatus PaymentStatus       `json:"payment_status"`

	EstimatedDistanceKm  float64      `json:"estimated_distance_km"`
	EstimatedDurationSec int64        `json:"estimated_duration_sec"`
	EstimatedFare        types.Money  `json:"estimated_fare"`
	ActualDistanceKm     *float64     `json:"actual_distance_km,omitempty"`
	ActualDurationSec    *int64       `json:"actual_duration_sec,omitempty"`
	ActualFare           *types.Money `json:"actual_fare,omitempty"`

	RequestedAt        time.Time   `json:"requested_at"`
	AcceptedAt         *time.Time  `json:"accepted_at,omitempty"`
	StartedAt          *time.Time  `json:"started_at,omitempty"`
	CompletedAt        *time.Time  `json:"completed_at,omitempty"`
	CancelledAt        *time.Time  `json:"cancelled_at,omitempty"`
	CancellationReason *string     `json:"cancellation_reason,omitempty"`
	CancelledBy        *types.Role `json:"cancelled_by,omitempty"`
}

// IsParty reports whether userID is the ride's rider or assigned driver.
func (r *Ride) IsParty(userID types.ID) bool {
	return r.RiderID == userID || r.IsDriver(userID)
}

func (r *Ride) IsDriver(userID types.ID) bool {
	return r.DriverID != nil && *r.DriverID == userID
}

type Event struct {
	ID         int64
	RideID     types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

type TrackingPoint struct {
	RideID     types.ID    `json:"ride_id"`
	Point      types.Point `json:"point"`
	RecordedAt time.Time   `json:"recorded_at"`
}

// Patch carries the columns a transition sets alongside the status.
type Patch struct {
	At                 time.Time
	DriverID           *types.ID
	VehicleID          *types.ID
	ActualDistanceKm   *float64
	ActualDurationSec  *int64
	ActualFare         *types.Money
	CancellationReason *string
	CancelledBy        *types.Role
}

// AllowedTransitions represents the ride state flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusRequested: {StatusAccepted, StatusCancelled},
	StatusAccepted:  {StatusStarted, StatusCancelled},
	StatusStarted:   {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Active reports whether a ride in s still holds the rider and its driver.
func (s Status) Active() bool {
	_, ok := AllowedTransitions[s]
	return ok
}
