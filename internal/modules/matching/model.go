// README: Matching candidates and default dispatch limits.
package matching

import (
	"time"

	"ridehail/internal/types"
)

// Candidate is an eligible driver ranked for a pickup.
type Candidate struct {
	DriverID   types.ID        `json:"driver_id"`
	VehicleID  types.ID        `json:"vehicle_id"`
	Class      types.RideClass `json:"vehicle_class"`
	Position   types.Point     `json:"position"`
	DistanceKm float64         `json:"distance_km"`
}

const (
	// DefaultRadiusKm is used when a caller passes a non-positive radius.
	DefaultRadiusKm = 10.0
	// DefaultMaxCandidates is how many drivers are offered a ride.
	DefaultMaxCandidates = 5
	// DefaultCandidateTTL bounds how long an offer list stays readable.
	DefaultCandidateTTL = 5 * time.Minute
)
