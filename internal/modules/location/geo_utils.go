// Package location: geo_utils holds pure geographic helpers: haversine distance, path length and distance ordering.
package location

import (
	"math"

	"ridehail/internal/types"
)

const earthRadiusKm = 6371.0

// Distance returns the great-circle distance in kilometres between a and b
// on a spherical Earth. It is symmetric and Distance(a, a) == 0.
func Distance(a, b types.Point) float64 {
	return haversineKm(a.Lat, a.Lng, b.Lat, b.Lng)
}

// PathLength sums the leg distances of an ordered track. Fewer than two
// points yields 0.
func PathLength(points []types.Point) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}
	return total
}

func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLng := degreesToRadians(lng2 - lng1)

	rLat1 := degreesToRadians(lat1)
	rLat2 := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// sortByDistance performs an insertion sort (fine for small N) on any slice
// where each element exposes a distance and an id. Equal distances are
// ordered by id ascending so results are deterministic.
func sortByDistance[T any](items []T, dist func(T) float64, id func(T) types.ID) {
	less := func(a, b T) bool {
		da, db := dist(a), dist(b)
		if da != db {
			return da < db
		}
		return id(a) < id(b)
	}
	for i := 1; i < len(items); i++ {
		key := items[i]
		j := i - 1
		for j >= 0 && less(key, items[j]) {
			items[j+1] = items[j]
			j--
		}
		items[j+1] = key
	}
}
