package domain

import "math"

const earthRadiusMeters = 6371000.0

// HaversineMeters is the great-circle distance between two points.
func HaversineMeters(a, b Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// TravelSeconds converts a distance into a duration at a constant speed.
func TravelSeconds(meters, speedKph float64) float64 {
	if speedKph <= 0 {
		return 0
	}
	return meters / (speedKph * 1000 / 3600)
}

// Interpolate returns the point a fraction t of the way from a to b, t clamped to [0,1].
func Interpolate(a, b Coordinates, t float64) Coordinates {
	t = math.Max(0, math.Min(1, t))
	return Coordinates{Lat: a.Lat + (b.Lat-a.Lat)*t, Lng: a.Lng + (b.Lng-a.Lng)*t}
}

// InterpolatePath walks a polyline and returns the point at fraction t of its
// haversine length. Paths with fewer than two points return the first point.
func InterpolatePath(path []Coordinates, t float64) Coordinates {
	if len(path) == 0 {
		return Coordinates{}
	}
	if len(path) == 1 {
		return path[0]
	}
	t = math.Max(0, math.Min(1, t))

	total := 0.0
	for i := 1; i < len(path); i++ {
		total += HaversineMeters(path[i-1], path[i])
	}
	if total == 0 {
		return path[0]
	}

	target := total * t
	walked := 0.0
	for i := 1; i < len(path); i++ {
		seg := HaversineMeters(path[i-1], path[i])
		if walked+seg >= target {
			if seg == 0 {
				return path[i]
			}
			return Interpolate(path[i-1], path[i], (target-walked)/seg)
		}
		walked += seg
	}
	return path[len(path)-1]
}
