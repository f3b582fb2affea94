// README: Pure fare function shared by booking estimates and final settlement.
package pricing

import (
	"math"

	"ridehail/internal/apperr"
	"ridehail/internal/types"
)

type Estimator struct {
	rates Rates
}

func NewEstimator(rates Rates) *Estimator {
	if rates.Currency == "" {
		rates.Currency = types.DefaultCurrency
	}
	return &Estimator{rates: rates}
}

// Estimate computes round(base*m + km*perKm*m + min*perMin*m) in whole
// currency units, where m is the class multiplier. Inputs must already have
// passed Validate.
func (e *Estimator) Estimate(distanceKm float64, durationSec int64, class types.RideClass) types.Money {
	m := e.multiplier(class)
	minutes := float64(durationSec) / 60
	fare := math.Round(e.rates.BaseFare*m + distanceKm*e.rates.PerKm*m + minutes*e.rates.PerMinute*m)
	return types.FromMajor(int64(fare), e.rates.Currency)
}

func (e *Estimator) multiplier(class types.RideClass) float64 {
	if m, ok := e.rates.Multipliers[class]; ok {
		return m
	}
	return 1.0
}

// Validate rejects negative and non-finite trip measurements.
func Validate(distanceKm float64, durationSec int64) error {
	if math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) || distanceKm < 0 {
		return apperr.Validation("distance_km", "must be a non-negative number")
	}
	if durationSec < 0 {
		return apperr.Validation("duration_sec", "must be non-negative")
	}
	return nil
}
