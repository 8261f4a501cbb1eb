package geo

import (
	"math"

	"github.com/example/ride-dispatch/internal/models"
)

const (
	earthRadiusKm = 6371.0

	// FallbackSpeedKmh is the assumed average city speed used when no live
	// routing data is available.
	FallbackSpeedKmh = 20.0
)

// DistanceKm returns the great-circle distance in kilometres between two
// points given in decimal degrees.
func DistanceKm(a, b models.Coord) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// EtaMinutes converts a distance to a travel-time estimate assuming the
// fixed fallback speed.
func EtaMinutes(distanceKm float64) float64 {
	return distanceKm / FallbackSpeedKmh * 60.0
}

func toRad(deg float64) float64 { return deg * math.Pi / 180.0 }
