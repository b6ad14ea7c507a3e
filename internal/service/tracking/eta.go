package tracking

import (
	"fmt"
	"math"

	"farmnook-dispatch/internal/domain"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// Haversine returns the great-circle distance between a and b in kilometres.
func Haversine(a, b domain.LatLng) float64 {
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1)*math.Cos(lat2)

	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// ETA estimates the minutes needed to cover the distance from pos to dest
// at speedKmh. ok is false when either position is missing or the speed is
// not positive.
func ETA(pos, dest *domain.LatLng, speedKmh float64) (minutes int, ok bool) {
	if pos == nil || dest == nil || !(speedKmh > 0) {
		return 0, false
	}
	return minutesFor(Haversine(*pos, *dest), speedKmh), true
}

func minutesFor(distanceKm, speedKmh float64) int {
	return int(math.Round(distanceKm / speedKmh * 60))
}

// FormatETA renders an estimate for display.
func FormatETA(minutes int, ok bool) string {
	switch {
	case !ok:
		return "Calculating…"
	case minutes < 1:
		return "Arriving now"
	case minutes >= 60:
		return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
	default:
		return fmt.Sprintf("%d minutes", minutes)
	}
}
