// README: Driver earnings and ride statistics over completed rides.
package ride

import (
	"context"
	"time"

	"ridehail/internal/apperr"
	"ridehail/internal/modules/driver"
	"ridehail/internal/types"
)

type Period string

const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

type EarningsRide struct {
	RideID      types.ID    `json:"ride_id"`
	Fare        types.Money `json:"fare"`
	DriverShare types.Money `json:"driver_share"`
	DistanceKm  float64     `json:"distance_km"`
	DurationSec int64       `json:"duration_sec"`
	CompletedAt time.Time   `json:"completed_at"`
}

type Earnings struct {
	DriverID         types.ID       `json:"driver_id"`
	Period           Period         `json:"period"`
	Since            time.Time      `json:"since"`
	TotalRides       int            `json:"total_rides"`
	TotalFares       types.Money    `json:"total_fares"`
	TotalEarnings    types.Money    `json:"total_earnings"`
	TotalDistanceKm  float64        `json:"total_distance_km"`
	TotalDurationSec int64          `json:"total_duration_sec"`
	AveragePerRide   types.Money    `json:"average_earnings_per_ride"`
	Rides            []EarningsRide `json:"rides"`
}

type DriverStats struct {
	Driver     *driver.Driver  `json:"driver"`
	Statistics CompletedCounts `json:"statistics"`
}

// since returns the start of p relative to now. Week and month are rolling.
func (p Period) since(now time.Time) (time.Time, error) {
	switch p {
	case PeriodToday:
		return startOfDay(now), nil
	case PeriodWeek, "":
		return now.AddDate(0, 0, -7), nil
	case PeriodMonth:
		return now.AddDate(0, -1, 0), nil
	}
	return time.Time{}, apperr.Validation("period", "must be today, week or month")
}

// DriverEarnings totals the rides driverID completed within period. Earnings
// are the driver's share after commission.
func (s *Service) DriverEarnings(ctx context.Context, driverID types.ID, period Period) (*Earnings, error) {
	now := s.now()
	since, err := period.since(now)
	if err != nil {
		return nil, err
	}
	if period == "" {
		period = PeriodWeek
	}
	if _, err := s.drivers.Get(ctx, driverID); err != nil {
		return nil, err
	}
	rides, err := s.store.CompletedByDriver(ctx, driverID, since)
	if err != nil {
		return nil, err
	}

	out := &Earnings{DriverID: driverID, Period: period, Since: since, Rides: make([]EarningsRide, 0, len(rides))}
	for _, r := range rides {
		fare := types.Money{Currency: r.EstimatedFare.Currency}
		if r.ActualFare != nil {
			fare = *r.ActualFare
		}
		_, share := s.settler.Split(fare)
		er := EarningsRide{RideID: r.ID, Fare: fare, DriverShare: share, CompletedAt: *r.CompletedAt}
		if r.ActualDistanceKm != nil {
			er.DistanceKm = *r.ActualDistanceKm
		}
		if r.ActualDurationSec != nil {
			er.DurationSec = *r.ActualDurationSec
		}
		out.Rides = append(out.Rides, er)

		out.TotalRides++
		out.TotalFares.Amount += fare.Amount
		out.TotalFares.Currency = fare.Currency
		out.TotalEarnings.Amount += share.Amount
		out.TotalEarnings.Currency = share.Currency
		out.TotalDistanceKm += er.DistanceKm
		out.TotalDurationSec += er.DurationSec
	}
	out.AveragePerRide.Currency = out.TotalEarnings.Currency
	if out.TotalRides > 0 {
		out.AveragePerRide.Amount = out.TotalEarnings.Amount / int64(out.TotalRides)
	}
	return out, nil
}

// DriverStats counts completed rides since the start of today, the week
// (Sunday) and the month, plus the lifetime total.
func (s *Service) DriverStats(ctx context.Context, driverID types.ID) (*DriverStats, error) {
	d, err := s.drivers.Get(ctx, driverID)
	if err != nil {
		return nil, err
	}
	today := startOfDay(s.now())
	counts, err := s.store.CountCompleted(ctx, driverID, StatsWindows{
		Today: today,
		Week:  today.AddDate(0, 0, -int(today.Weekday())),
		Month: time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location()),
	})
	if err != nil {
		return nil, err
	}
	return &DriverStats{Driver: d, Statistics: counts}, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
