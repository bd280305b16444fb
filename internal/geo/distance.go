// Package geo provides the spatial helpers used by the deduplication scan:
// great-circle distance, EWKB point encoding for the postgres geom column and
// geohash bucketing.
package geo

import "math"

const earthRadiusM = 6371000.0

// DistanceM returns the haversine distance in meters between two WGS84 points.
func DistanceM(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)

	return earthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
