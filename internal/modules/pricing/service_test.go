package pricing

import (
	"context"
	"errors"
	"math"
	"testing"

	"ridehail/internal/apperr"
	"ridehail/internal/logger"
	"ridehail/internal/types"
)

func TestEstimator_Estimate(t *testing.T) {
	e := NewEstimator(DefaultRates())

	tests := []struct {
		name        string
		distanceKm  float64
		durationSec int64
		class       types.RideClass
		wantRupees  int64
	}{
		{name: "floor economy", class: types.ClassEconomy, wantRupees: 50},
		{name: "floor comfort", class: types.ClassComfort, wantRupees: 60},
		{name: "floor premium", class: types.ClassPremium, wantRupees: 75},
		{
			name:       "distance only (10km -> 50 + 120)",
			distanceKm: 10, class: types.ClassEconomy,
			wantRupees: 170,
		},
		{
			name:        "time only (15 min -> 50 + 30)",
			durationSec: 900, class: types.ClassEconomy,
			wantRupees: 80,
		},
		{
			// (50 + 5*12 + 10*2) * 1.2 = 156
			name:       "comfort multiplier applies to every component",
			distanceKm: 5, durationSec: 600, class: types.ClassComfort,
			wantRupees: 156,
		},
		{
			// (50 + 3.3*12 + 7.5*2) * 1.5 = 156.9 -> 157
			name:       "premium rounds to nearest rupee",
			distanceKm: 3.3, durationSec: 450, class: types.ClassPremium,
			wantRupees: 157,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Estimate(tt.distanceKm, tt.durationSec, tt.class)
			if got.Amount != tt.wantRupees*100 {
				t.Errorf("Estimate() = %d paise, want %d", got.Amount, tt.wantRupees*100)
			}
			if got.Currency != types.DefaultCurrency {
				t.Errorf("currency = %q", got.Currency)
			}
		})
	}
}

func TestEstimator_FareFloor(t *testing.T) {
	rates := DefaultRates()
	e := NewEstimator(rates)
	for class, m := range rates.Multipliers {
		want := int64(math.Round(rates.BaseFare*m)) * 100
		if got := e.Estimate(0, 0, class).Amount; got != want {
			t.Errorf("floor for %s = %d, want %d", class, got, want)
		}
	}
}

func TestEstimator_Deterministic(t *testing.T) {
	e := NewEstimator(DefaultRates())
	first := e.Estimate(12.345, 1234, types.ClassComfort)
	for i := 0; i < 100; i++ {
		if got := e.Estimate(12.345, 1234, types.ClassComfort); got != first {
			t.Fatalf("estimate changed between calls: %v vs %v", got, first)
		}
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		km  float64
		sec int64
		ok  bool
	}{
		{0, 0, true},
		{12.5, 600, true},
		{-1, 0, false},
		{math.NaN(), 0, false},
		{math.Inf(1), 0, false},
		{1, -5, false},
	}
	for _, c := range cases {
		err := Validate(c.km, c.sec)
		if (err == nil) != c.ok {
			t.Errorf("Validate(%v, %v) = %v, want ok=%v", c.km, c.sec, err, c.ok)
		}
		if err != nil && !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("Validate error kind = %q", apperr.KindOf(err))
		}
	}
}

// TestEstimateTrip_DelhiScenario books Connaught Place to Noida in economy
// and checks distance, duration and fare against the tariff formula.
func TestEstimateTrip_DelhiScenario(t *testing.T) {
	svc := NewService(NewEstimator(DefaultRates()), nil, 20, logger.Nop())
	q, err := svc.EstimateTrip(context.Background(),
		types.Point{Lat: 28.6139, Lng: 77.2090},
		types.Point{Lat: 28.5355, Lng: 77.3910},
		types.ClassEconomy,
	)
	if err != nil {
		t.Fatalf("estimate trip: %v", err)
	}
	if math.Abs(q.DistanceKm-19.7954) > 0.001 {
		t.Fatalf("distance = %v, want ~19.7954", q.DistanceKm)
	}
	wantDuration := int64(math.Round(q.DistanceKm / 20 * 3600))
	if q.DurationSec != wantDuration || q.DurationSec != 3563 {
		t.Fatalf("duration = %d, want %d", q.DurationSec, wantDuration)
	}
	wantFare := int64(math.Round(50+q.DistanceKm*12+float64(q.DurationSec)/60*2)) * 100
	if q.Fare.Amount != wantFare || q.Fare.Amount != 40600 {
		t.Fatalf("fare = %d, want %d", q.Fare.Amount, wantFare)
	}
}

type stubRoutes struct {
	km  float64
	sec int64
	err error
}

func (s stubRoutes) Route(context.Context, types.Point, types.Point) (float64, int64, error) {
	return s.km, s.sec, s.err
}

func TestEstimateTrip_RouteProvider(t *testing.T) {
	a := types.Point{Lat: 28.6139, Lng: 77.2090}
	b := types.Point{Lat: 28.5355, Lng: 77.3910}

	svc := NewService(NewEstimator(DefaultRates()), stubRoutes{km: 25, sec: 3000}, 20, logger.Nop())
	q, err := svc.EstimateTrip(context.Background(), a, b, types.ClassEconomy)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if q.DistanceKm != 25 || q.DurationSec != 3000 {
		t.Fatalf("road route not used: %+v", q)
	}

	svc = NewService(NewEstimator(DefaultRates()), stubRoutes{err: errors.New("quota")}, 20, logger.Nop())
	q, err = svc.EstimateTrip(context.Background(), a, b, types.ClassEconomy)
	if err != nil {
		t.Fatalf("estimate with failing provider: %v", err)
	}
	if math.Abs(q.DistanceKm-19.7954) > 0.001 {
		t.Fatalf("expected straight-line fallback, got %+v", q)
	}
}

func TestEstimateTrip_Validation(t *testing.T) {
	svc := NewService(NewEstimator(DefaultRates()), nil, 20, logger.Nop())
	ok := types.Point{Lat: 28.6, Lng: 77.2}
	cases := []struct {
		name   string
		pickup types.Point
		drop   types.Point
		class  types.RideClass
	}{
		{"bad pickup", types.Point{Lat: 100, Lng: 0}, ok, types.ClassEconomy},
		{"bad drop", ok, types.Point{Lat: 0, Lng: 200}, types.ClassEconomy},
		{"bad class", ok, ok, "luxury"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := svc.EstimateTrip(context.Background(), c.pickup, c.drop, c.class)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("got %v, want validation error", err)
			}
		})
	}
}
