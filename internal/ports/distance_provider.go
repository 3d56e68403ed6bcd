package ports

import (
	"context"
	"fleet-route-service/internal/domain"
)

// Distance and travel duration between two locations.
// Degraded is set when the value is a haversine estimate standing in for an
// unavailable road backend.
type DistanceResult struct {
	DistanceMeters  float64              `json:"distanceMeters"`
	DurationSeconds float64              `json:"durationSeconds"`
	Geometry        []domain.Coordinates `json:"geometry,omitempty"`
	Degraded        bool                 `json:"degraded,omitempty"`
}

// Contract for retrieving travel distance and duration between locations.
type DistanceProvider interface {
	// Return travel distance and estimated duration between two locations.
	GetDistance(ctx context.Context, origin, destination domain.Coordinates) (DistanceResult, error)
}
