// Package geo holds the coordinate value type and great-circle distance helpers
// shared by candidate lookup and ETA estimation.
package geo

import (
	"math"
	"sort"
	"strconv"
)

// EarthRadiusMeters is the mean Earth radius. The candidate SQL query uses the
// same constant so ranking and the ETA fallback agree.
const EarthRadiusMeters = 6371000.0

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether p is a finite coordinate within latitude/longitude bounds.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// String formats p as "lat,lng" with full float precision, the form routing
// APIs accept for origin and destination.
func (p Point) String() string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lng, 'f', -1, 64)
}

// Distance returns the haversine great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// DistanceKm is Distance expressed in kilometres.
func DistanceKm(a, b Point) float64 {
	return Distance(a, b) / 1000
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// SortByDistance stably orders items by ascending distance, breaking ties with
// the key accessor so results are deterministic.
func SortByDistance[T any](items []T, dist func(T) float64, key func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		di, dj := dist(items[i]), dist(items[j])
		if di != dj {
			return di < dj
		}
		return key(items[i]) < key(items[j])
	})
}
