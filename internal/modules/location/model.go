// README: Location values: proximity results and driver location history rows.
package location

import (
	"time"

	"ridehail/internal/types"
)

// Nearby is one driver returned by a proximity query.
type Nearby struct {
	DriverID   types.ID
	Point      types.Point
	DistanceKm float64
	RecordedAt time.Time
}

// Snapshot is a persisted driver location ping.
type Snapshot struct {
	ID         int64       `json:"id,omitempty"`
	DriverID   types.ID    `json:"driver_id"`
	Position   types.Point `json:"position"`
	RecordedAt time.Time   `json:"recorded_at"`
}
