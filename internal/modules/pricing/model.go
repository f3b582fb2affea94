// README: Fare rate definition and trip quote types.
package pricing

import "ridehail/internal/types"

type Rates struct {
	BaseFare    float64
	PerKm       float64
	PerMinute   float64
	Multipliers map[types.RideClass]float64
	Currency    string
}

// DefaultRates are the stock tariff in whole rupees.
func DefaultRates() Rates {
	return Rates{
		BaseFare:  50,
		PerKm:     12,
		PerMinute: 2,
		Multipliers: map[types.RideClass]float64{
			types.ClassEconomy: 1.0,
			types.ClassComfort: 1.2,
			types.ClassPremium: 1.5,
		},
		Currency: types.DefaultCurrency,
	}
}

// Quote is the pre-booking estimate for a trip.
type Quote struct {
	DistanceKm  float64         `json:"distance_km"`
	DurationSec int64           `json:"duration_sec"`
	Fare        types.Money     `json:"fare"`
	Class       types.RideClass `json:"ride_class"`
}
