// README: Driver position index backed by Redis GEO plus a hash of last-seen timestamps.
package location

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"ridehail/internal/types"
)

const (
	driverGeoKey  = "location:drivers"
	driverSeenKey = "location:drivers:seen"
)

type RedisIndex struct {
	redis *redis.Client
}

func NewRedisIndex(redis *redis.Client) *RedisIndex {
	return &RedisIndex{redis: redis}
}

func (s *RedisIndex) Upsert(ctx context.Context, driverID types.ID, p types.Point, recordedAt time.Time) error {
	pipe := s.redis.TxPipeline()
	pipe.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      string(driverID),
		Longitude: p.Lng,
		Latitude:  p.Lat,
	})
	pipe.HSet(ctx, driverSeenKey, string(driverID), recordedAt.UnixMilli())
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisIndex) Remove(ctx context.Context, driverID types.ID) error {
	pipe := s.redis.TxPipeline()
	pipe.ZRem(ctx, driverGeoKey, string(driverID))
	pipe.HDel(ctx, driverSeenKey, string(driverID))
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisIndex) Nearby(ctx context.Context, center types.Point, radiusKm float64) ([]Nearby, error) {
	locs, err := s.redis.GeoSearchLocation(ctx, driverGeoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  center.Lng,
			Latitude:   center.Lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geo search: %w", err)
	}
	if len(locs) == 0 {
		return nil, nil
	}

	names := make([]string, len(locs))
	for i, l := range locs {
		names[i] = l.Name
	}
	seen, err := s.redis.HMGet(ctx, driverSeenKey, names...).Result()
	if err != nil {
		return nil, fmt.Errorf("load last seen: %w", err)
	}

	out := make([]Nearby, len(locs))
	for i, l := range locs {
		out[i] = Nearby{
			DriverID:   types.ID(l.Name),
			Point:      types.Point{Lat: l.Latitude, Lng: l.Longitude},
			DistanceKm: l.Dist,
			RecordedAt: parseMillis(seen[i]),
		}
	}
	return out, nil
}

// parseMillis returns the zero time for missing or malformed entries, which
// the service then treats as stale.
func parseMillis(v interface{}) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
