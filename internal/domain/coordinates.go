package domain

import "fmt"

// Immutable geographic coordinates (latitude, longitude in decimal degrees).
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Return coordinates as [lng, lat] for external API compatibility (GeoJSON order).
func (c Coordinates) CoordsToList() []float64 { return []float64{c.Lng, c.Lat} }

// Key returns a stable string form usable as a cache or lookup key.
// Six decimals is roughly 0.1m of precision.
func (c Coordinates) Key() string { return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng) }

func (c Coordinates) String() string { return c.Key() }

// Valid reports whether the coordinates are inside the WGS84 range.
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}
