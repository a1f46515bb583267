// Package geo provides great-circle distance math for the geofencing checks.
package geo

import (
	"math"

	"carshare/internal/app/model"
)

// EarthRadiusKm is the mean Earth radius used by the Haversine formula.
const EarthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance in kilometers between two
// coordinates given in decimal degrees.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(a))
}

// Between returns the distance in kilometers between two locations.
func Between(a, b model.Location) float64 {
	return DistanceKm(a.Lat, a.Lon, b.Lat, b.Lon)
}

// RoundKm rounds a distance to 3 decimal places for transport.
func RoundKm(km float64) float64 {
	return math.Round(km*1000) / 1000
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
