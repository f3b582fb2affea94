// README: Pricing service turns a pickup/drop pair into a fare quote.
package pricing

import (
	"context"
	"math"

	"ridehail/internal/apperr"
	"ridehail/internal/logger"
	"ridehail/internal/modules/location"
	"ridehail/internal/types"
)

const defaultAvgSpeedKmh = 20.0

type Service struct {
	estimator   *Estimator
	routes      RouteProvider
	avgSpeedKmh float64
	log         logger.ILogger
}

// NewService builds the quote service. routes may be nil, in which case
// straight-line distance and the average speed are used.
func NewService(estimator *Estimator, routes RouteProvider, avgSpeedKmh float64, log logger.ILogger) *Service {
	if avgSpeedKmh <= 0 {
		avgSpeedKmh = defaultAvgSpeedKmh
	}
	return &Service{estimator: estimator, routes: routes, avgSpeedKmh: avgSpeedKmh, log: log}
}

func (s *Service) EstimateTrip(ctx context.Context, pickup, drop types.Point, class types.RideClass) (Quote, error) {
	if !pickup.Valid() {
		return Quote{}, apperr.Validation("pickup", "coordinates out of range")
	}
	if !drop.Valid() {
		return Quote{}, apperr.Validation("drop", "coordinates out of range")
	}
	if !class.Valid() {
		return Quote{}, apperr.Validation("ride_class", "must be economy, comfort or premium")
	}

	distanceKm := location.Distance(pickup, drop)
	durationSec := s.travelSeconds(distanceKm)
	if s.routes != nil {
		km, sec, err := s.routes.Route(ctx, pickup, drop)
		if err == nil && Validate(km, sec) == nil {
			distanceKm, durationSec = km, sec
		} else {
			s.log.Warning("road route unavailable, using straight-line estimate", logger.Error(err))
		}
	}

	return Quote{
		DistanceKm:  distanceKm,
		DurationSec: durationSec,
		Fare:        s.estimator.Estimate(distanceKm, durationSec, class),
		Class:       class,
	}, nil
}

// Fare prices a finished trip with the same tariff used for quotes.
func (s *Service) Fare(distanceKm float64, durationSec int64, class types.RideClass) types.Money {
	return s.estimator.Estimate(distanceKm, durationSec, class)
}

func (s *Service) travelSeconds(distanceKm float64) int64 {
	return int64(math.Round(distanceKm / s.avgSpeedKmh * 3600))
}
