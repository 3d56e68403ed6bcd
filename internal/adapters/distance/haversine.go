package distance

import (
	"context"

	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/ports"
)

const DefaultSpeedKph = 40.0

// HaversineProvider estimates distance along the great circle and duration at a
// constant speed. It never fails and needs no network.
type HaversineProvider struct {
	speedKph float64
}

func NewHaversineProvider(speedKph float64) *HaversineProvider {
	if speedKph <= 0 {
		speedKph = DefaultSpeedKph
	}
	return &HaversineProvider{speedKph: speedKph}
}

func (h *HaversineProvider) SpeedKph() float64 { return h.speedKph }

func (h *HaversineProvider) Estimate(origin, destination domain.Coordinates) ports.DistanceResult {
	meters := domain.HaversineMeters(origin, destination)
	return ports.DistanceResult{
		DistanceMeters:  meters,
		DurationSeconds: domain.TravelSeconds(meters, h.speedKph),
	}
}

func (h *HaversineProvider) GetDistance(_ context.Context, origin, destination domain.Coordinates) (ports.DistanceResult, error) {
	return h.Estimate(origin, destination), nil
}

func (h *HaversineProvider) GetDistances(_ context.Context, origin domain.Coordinates, destinations []domain.Coordinates) ([]ports.DistanceResult, error) {
	out := make([]ports.DistanceResult, len(destinations))
	for i, d := range destinations {
		out[i] = h.Estimate(origin, d)
	}
	return out, nil
}
