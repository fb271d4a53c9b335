// Package geo provides the great-circle distance estimate, the
// travel-time approximation derived from it, and the polyline codec
// used to decode route geometry returned by a routing collaborator.
package geo

import (
	"math"

	"schoolbus-router/internal/models"
)

// HaversineKm returns the great-circle distance between two points in
// kilometers, using Earth radius earthRadiusKm.
func HaversineKm(a, b models.Point, earthRadiusKm float64) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	sinDLat := math.Sin(dLat / 2)
	sinDLng := math.Sin(dLng / 2)
	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLng*sinDLng
	c := 2 * math.Asin(math.Sqrt(h))

	return earthRadiusKm * c
}

// EstimateTravelTimeSeconds converts a distance in kilometers to an
// estimated travel time in seconds, assuming avgSpeedKmh average speed.
func EstimateTravelTimeSeconds(km float64, avgSpeedKmh float64) float64 {
	hours := km / avgSpeedKmh
	return hours * 3600
}
