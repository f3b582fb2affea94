// README: Location service handles high-frequency driver pings and proximity queries.
package location

import (
	"context"
	"fmt"
	"time"

	"ridehail/internal/apperr"
	"ridehail/internal/cache"
	"ridehail/internal/logger"
	"ridehail/internal/types"
)

// lastKnownTTL bounds how long a driver's cached position is served.
const lastKnownTTL = 5 * time.Minute

type HistoryStore interface {
	AppendSnapshot(ctx context.Context, snap Snapshot) error
	ListSnapshots(ctx context.Context, driverID types.ID, limit int) ([]Snapshot, error)
}

type Service struct {
	index      Index
	history    HistoryStore
	cache      cache.Cache
	staleAfter time.Duration
	log        logger.ILogger
	now        func() time.Time
}

// NewService wires the index. history may be nil when no database is configured.
func NewService(index Index, history HistoryStore, c cache.Cache, staleAfter time.Duration, log logger.ILogger) *Service {
	return &Service{
		index:      index,
		history:    history,
		cache:      c,
		staleAfter: staleAfter,
		log:        log,
		now:        time.Now,
	}
}

func (s *Service) UpdateDriverLocation(ctx context.Context, driverID types.ID, p types.Point) (Snapshot, error) {
	if driverID == "" {
		return Snapshot{}, apperr.Validation("driver_id", "is required")
	}
	if !p.Valid() {
		return Snapshot{}, apperr.Validation("location", "coordinates out of range")
	}
	snap := Snapshot{DriverID: driverID, Position: p, RecordedAt: s.now()}
	if err := s.index.Upsert(ctx, driverID, p, snap.RecordedAt); err != nil {
		return Snapshot{}, fmt.Errorf("index driver %s: %w", driverID, err)
	}
	if err := cache.SetJSON(ctx, s.cache, lastKnownKey(driverID), snap, lastKnownTTL); err != nil {
		s.log.Warning("cache driver location failed", logger.String("driver_id", string(driverID)), logger.Error(err))
	}
	if s.history != nil {
		if err := s.history.AppendSnapshot(ctx, snap); err != nil {
			s.log.Warning("append location history failed", logger.String("driver_id", string(driverID)), logger.Error(err))
		}
	}
	return snap, nil
}

func (s *Service) RemoveDriver(ctx context.Context, driverID types.ID) error {
	if err := s.index.Remove(ctx, driverID); err != nil {
		return fmt.Errorf("remove driver %s from index: %w", driverID, err)
	}
	return s.cache.Delete(ctx, lastKnownKey(driverID))
}

// Query returns drivers within radiusKm of center whose last ping is inside
// the staleness window, nearest first with ties ordered by driver id.
func (s *Service) Query(ctx context.Context, center types.Point, radiusKm float64) ([]Nearby, error) {
	if !center.Valid() {
		return nil, apperr.Validation("location", "coordinates out of range")
	}
	if radiusKm <= 0 {
		return nil, apperr.Validation("radius_km", "must be positive")
	}
	raw, err := s.index.Nearby(ctx, center, radiusKm)
	if err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-s.staleAfter)
	out := make([]Nearby, 0, len(raw))
	for _, n := range raw {
		if s.staleAfter > 0 && n.RecordedAt.Before(cutoff) {
			continue
		}
		n.DistanceKm = Distance(center, n.Point)
		if n.DistanceKm > radiusKm {
			continue
		}
		out = append(out, n)
	}
	sortByDistance(out,
		func(n Nearby) float64 { return n.DistanceKm },
		func(n Nearby) types.ID { return n.DriverID },
	)
	return out, nil
}

// LastKnown returns the cached position of a driver, if still fresh.
func (s *Service) LastKnown(ctx context.Context, driverID types.ID) (Snapshot, bool, error) {
	var snap Snapshot
	ok, err := cache.GetJSON(ctx, s.cache, lastKnownKey(driverID), &snap)
	return snap, ok, err
}

// History returns the driver's recorded pings, newest first.
func (s *Service) History(ctx context.Context, driverID types.ID, limit int) ([]Snapshot, error) {
	if s.history == nil {
		return []Snapshot{}, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.history.ListSnapshots(ctx, driverID, limit)
}

func lastKnownKey(driverID types.ID) string {
	return "driver_location_" + string(driverID)
}
