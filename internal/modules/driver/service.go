// README: Driver service owns availability toggles and feeds location pings to the geo index.
package driver

import (
	"context"

	"ridehail/internal/logger"
	"ridehail/internal/modules/location"
	"ridehail/internal/types"
)

type LocationIndexer interface {
	UpdateDriverLocation(ctx context.Context, driverID types.ID, p types.Point) (location.Snapshot, error)
	RemoveDriver(ctx context.Context, driverID types.ID) error
	History(ctx context.Context, driverID types.ID, limit int) ([]location.Snapshot, error)
}

type Service struct {
	store     Store
	locations LocationIndexer
	log       logger.ILogger
}

func NewService(store Store, locations LocationIndexer, log logger.ILogger) *Service {
	return &Service{store: store, locations: locations, log: log}
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Driver, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) GetMany(ctx context.Context, ids []types.ID) (map[types.ID]*Driver, error) {
	return s.store.GetMany(ctx, ids)
}

// ToggleOnline flips the driver's online flag. Going offline also drops the
// driver from the geo index so they stop appearing in proximity queries.
func (s *Service) ToggleOnline(ctx context.Context, id types.ID) (*Driver, error) {
	d, err := s.store.ToggleOnline(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.Online {
		if err := s.locations.RemoveDriver(ctx, id); err != nil {
			s.log.Warning("remove offline driver from index failed", logger.String("driver_id", string(id)), logger.Error(err))
		}
	}
	s.log.Info("driver online toggled",
		logger.String("driver_id", string(id)),
		logger.Bool("online", d.Online),
		logger.Bool("available", d.Available),
	)
	return d, nil
}

func (s *Service) ToggleAvailable(ctx context.Context, id types.ID) (*Driver, error) {
	d, err := s.store.ToggleAvailable(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info("driver availability toggled",
		logger.String("driver_id", string(id)),
		logger.Bool("available", d.Available),
	)
	return d, nil
}

func (s *Service) UpdateLocation(ctx context.Context, id types.ID, p types.Point) (location.Snapshot, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return location.Snapshot{}, err
	}
	snap, err := s.locations.UpdateDriverLocation(ctx, id, p)
	if err != nil {
		return location.Snapshot{}, err
	}
	if err := s.store.SetLocation(ctx, id, Location{Point: snap.Position, RecordedAt: snap.RecordedAt}); err != nil {
		return location.Snapshot{}, err
	}
	return snap, nil
}

func (s *Service) LocationHistory(ctx context.Context, id types.ID, limit int) ([]location.Snapshot, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.locations.History(ctx, id, limit)
}

func (s *Service) Claim(ctx context.Context, id types.ID) (bool, error) {
	return s.store.Claim(ctx, id)
}

func (s *Service) Release(ctx context.Context, id types.ID) error {
	return s.store.Release(ctx, id)
}

func (s *Service) RecordTrip(ctx context.Context, id types.ID, earnings types.Money) error {
	return s.store.RecordTrip(ctx, id, earnings)
}

func (s *Service) ApplyRating(ctx context.Context, id types.ID, avg float64, count int) error {
	return s.store.SetRating(ctx, id, avg, count)
}
