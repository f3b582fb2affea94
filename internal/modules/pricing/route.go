package pricing

import (
	"context"

	"ridehail/internal/types"
)

// RouteProvider returns road distance and driving time between two points.
type RouteProvider interface {
	Route(ctx context.Context, from, to types.Point) (distanceKm float64, durationSec int64, err error)
}
