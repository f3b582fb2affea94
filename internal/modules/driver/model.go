// README: Driver availability snapshot and vehicle eligibility.
package driver

import (
	"time"

	"ridehail/internal/types"
)

type Vehicle struct {
	ID       types.ID        `json:"id"`
	Class    types.RideClass `json:"vehicle_class"`
	Active   bool            `json:"is_active"`
	Verified bool            `json:"is_verified"`
}

type Location struct {
	Point      types.Point `json:"point"`
	RecordedAt time.Time   `json:"recorded_at"`
}

type Driver struct {
	ID            types.ID    `json:"id"`
	Online        bool        `json:"is_online"`
	Available     bool        `json:"is_available"`
	Verified      bool        `json:"is_verified"`
	Location      *Location   `json:"current_location,omitempty"`
	Vehicle       *Vehicle    `json:"vehicle,omitempty"`
	TotalRides    int         `json:"total_rides"`
	TotalEarnings types.Money `json:"total_earnings"`
	AverageRating float64     `json:"average_rating"`
	RatingCount   int         `json:"rating_count"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// CanTakeRides reports whether the driver may be offered or accept a ride.
func (d *Driver) CanTakeRides() bool {
	if !d.Online || !d.Available || !d.Verified {
		return false
	}
	return d.Vehicle != nil && d.Vehicle.Active && d.Vehicle.Verified
}

// Serves reports whether the driver's vehicle may carry the requested class.
func (d *Driver) Serves(class types.RideClass) bool {
	return d.Vehicle != nil && d.Vehicle.Class.Serves(class)
}
