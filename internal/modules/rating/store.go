package rating

import (
	"context"

	"ridehail/internal/types"
)

type Store interface {
	// Create returns ErrDuplicate when the rater already rated the ride.
	Create(ctx context.Context, r *Rating) error
	Exists(ctx context.Context, rideID, raterID types.ID) (bool, error)
	Stats(ctx context.Context, rateeID types.ID, dir Direction) (Stats, error)
	ListForUser(ctx context.Context, rateeID types.ID, dir Direction, limit int) ([]Rating, error)
	ListForRide(ctx context.Context, rideID types.ID) ([]Rating, error)
}
