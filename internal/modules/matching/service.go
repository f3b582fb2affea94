// README: Matching service ranks nearby eligible drivers and publishes the offer list for a ride.
package matching

import (
	"context"
	"fmt"

	"ridehail/internal/apperr"
	"ridehail/internal/config"
	"ridehail/internal/logger"
	"ridehail/internal/modules/driver"
	"ridehail/internal/modules/location"
	"ridehail/internal/types"
)

type LocationQuerier interface {
	Query(ctx context.Context, center types.Point, radiusKm float64) ([]location.Nearby, error)
}

type DriverDirectory interface {
	GetMany(ctx context.Context, ids []types.ID) (map[types.ID]*driver.Driver, error)
}

type Service struct {
	locations LocationQuerier
	drivers   DriverDirectory
	store     *Store
	cfg       config.MatchingConfig
	log       logger.ILogger
}

func NewService(locations LocationQuerier, drivers DriverDirectory, store *Store, cfg config.MatchingConfig, log logger.ILogger) *Service {
	if cfg.RadiusKm <= 0 {
		cfg.RadiusKm = DefaultRadiusKm
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = DefaultMaxCandidates
	}
	return &Service{locations: locations, drivers: drivers, store: store, cfg: cfg, log: log}
}

// RequireOffer reports whether accepts must come from the published candidate set.
func (s *Service) RequireOffer() bool { return s.cfg.RequireOffer }

// FindCandidates returns eligible drivers serving class within maxDistanceKm of
// pickup, nearest first. An empty slice is a valid result.
func (s *Service) FindCandidates(ctx context.Context, pickup types.Point, class types.RideClass, maxDistanceKm float64) ([]Candidate, error) {
	if !class.Valid() {
		return nil, apperr.Validation("ride_class", "unknown class")
	}
	if maxDistanceKm <= 0 {
		maxDistanceKm = s.cfg.RadiusKm
	}
	nearby, err := s.locations.Query(ctx, pickup, maxDistanceKm)
	if err != nil {
		return nil, err
	}
	if len(nearby) == 0 {
		return []Candidate{}, nil
	}

	ids := make([]types.ID, len(nearby))
	for i, n := range nearby {
		ids[i] = n.DriverID
	}
	drivers, err := s.drivers.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load candidate drivers: %w", err)
	}

	// nearby is already ordered by distance then id, so filtering keeps the order.
	out := make([]Candidate, 0, len(nearby))
	for _, n := range nearby {
		d, ok := drivers[n.DriverID]
		if !ok || !d.CanTakeRides() || !d.Serves(class) {
			continue
		}
		out = append(out, Candidate{
			DriverID:   d.ID,
			VehicleID:  d.Vehicle.ID,
			Class:      d.Vehicle.Class,
			Position:   n.Point,
			DistanceKm: n.DistanceKm,
		})
	}
	return out, nil
}

// Dispatch finds candidates for a ride and stores the top of the list as its
// offer set. It returns the offered driver ids.
func (s *Service) Dispatch(ctx context.Context, rideID types.ID, pickup types.Point, class types.RideClass) ([]types.ID, error) {
	candidates, err := s.FindCandidates(ctx, pickup, class, s.cfg.RadiusKm)
	if err != nil {
		return nil, err
	}
	if len(candidates) > s.cfg.MaxCandidates {
		candidates = candidates[:s.cfg.MaxCandidates]
	}
	ids := make([]types.ID, len(candidates))
	for i, c := range candidates {
		ids[i] = c.DriverID
	}
	if err := s.store.RecordOffer(ctx, rideID, ids); err != nil {
		return nil, fmt.Errorf("record offer for ride %s: %w", rideID, err)
	}
	s.log.Info("ride dispatched",
		logger.String("ride_id", string(rideID)),
		logger.String("class", string(class)),
		logger.Int("offered", len(ids)),
	)
	return ids, nil
}

func (s *Service) Offered(ctx context.Context, rideID types.ID) ([]types.ID, error) {
	ids, _, err := s.store.Offered(ctx, rideID)
	return ids, err
}

// WasOffered reports whether driverID is in the live offer set for rideID.
func (s *Service) WasOffered(ctx context.Context, rideID, driverID types.ID) (bool, error) {
	ids, ok, err := s.store.Offered(ctx, rideID)
	if err != nil || !ok {
		return false, err
	}
	for _, id := range ids {
		if id == driverID {
			return true, nil
		}
	}
	return false, nil
}

// Clear drops the offer set once the ride has left requested.
func (s *Service) Clear(ctx context.Context, rideID types.ID) error {
	return s.store.Clear(ctx, rideID)
}
