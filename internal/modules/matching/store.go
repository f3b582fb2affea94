// README: Candidate-set store keyed by ride, backed by the shared TTL cache.
package matching

import (
	"context"
	"time"

	"ridehail/internal/cache"
	"ridehail/internal/types"
)

type Store struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewStore(c cache.Cache, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultCandidateTTL
	}
	return &Store{cache: c, ttl: ttl}
}

// RecordOffer overwrites the candidate set for a ride.
func (s *Store) RecordOffer(ctx context.Context, rideID types.ID, driverIDs []types.ID) error {
	return cache.SetJSON(ctx, s.cache, candidatesKey(rideID), driverIDs, s.ttl)
}

// Offered returns the candidate set, or ok=false once it has expired.
func (s *Store) Offered(ctx context.Context, rideID types.ID) ([]types.ID, bool, error) {
	var ids []types.ID
	ok, err := cache.GetJSON(ctx, s.cache, candidatesKey(rideID), &ids)
	if err != nil || !ok {
		return nil, false, err
	}
	return ids, true, nil
}

func (s *Store) Clear(ctx context.Context, rideID types.ID) error {
	return s.cache.Delete(ctx, candidatesKey(rideID))
}

func candidatesKey(rideID types.ID) string {
	return "ride_drivers_" + string(rideID)
}
