// README: Google Maps Directions client used as an optional road-distance source for fare quotes.
package maps

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"googlemaps.github.io/maps"

	"ridehail/internal/types"
)

// RouteService handles interactions with Google Maps API.
type RouteService struct {
	client *maps.Client
	region string
}

// NewRouteService creates a new RouteService with the given API Key.
func NewRouteService(apiKey, region string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client, region: region}, nil
}

// Route returns the driving distance in km and duration in seconds of the
// first leg of the first suggested route.
func (s *RouteService) Route(ctx context.Context, from, to types.Point) (float64, int64, error) {
	r := &maps.DirectionsRequest{
		Origin:      formatLatLng(from),
		Destination: formatLatLng(to),
		Mode:        maps.TravelModeDriving,
		Region:      s.region,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return 0, 0, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, 0, fmt.Errorf("no route found")
	}

	leg := routes[0].Legs[0]
	return float64(leg.Distance.Meters) / 1000, int64(math.Round(leg.Duration.Seconds())), nil
}

func formatLatLng(p types.Point) string {
	return strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 6, 64)
}
