package distance

import (
	"context"
	"time"

	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/platform/logger"
	"fleet-route-service/internal/platform/obs"
	"fleet-route-service/internal/ports"
)

const DefaultTimeout = 10 * time.Second

// FallbackProvider wraps a road backend so that it never fails the caller.
// Each call is bounded by timeout; on any error the haversine estimate is
// returned with Degraded set.
type FallbackProvider struct {
	primary   ports.DistanceProvider
	haversine *HaversineProvider
	timeout   time.Duration
	backend   string
	log       logger.Logger
}

func NewFallbackProvider(
	primary ports.DistanceProvider,
	haversine *HaversineProvider,
	timeout time.Duration,
	backend string,
	log logger.Logger,
) *FallbackProvider {
	if haversine == nil {
		haversine = NewHaversineProvider(DefaultSpeedKph)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &FallbackProvider{primary: primary, haversine: haversine, timeout: timeout, backend: backend, log: log}
}

func (f *FallbackProvider) GetDistance(ctx context.Context, origin, destination domain.Coordinates) (ports.DistanceResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	r, err := f.primary.GetDistance(callCtx, origin, destination)
	if err == nil {
		return r, nil
	}

	f.degrade(1, err)
	est := f.haversine.Estimate(origin, destination)
	est.Degraded = true
	return est, nil
}

// GetDistances uses the primary's batched path when it has one and degrades the
// whole row on failure.
func (f *FallbackProvider) GetDistances(ctx context.Context, origin domain.Coordinates, destinations []domain.Coordinates) ([]ports.DistanceResult, error) {
	if mp, ok := f.primary.(ports.DistanceMatrixProvider); ok {
		callCtx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()

		row, err := mp.GetDistances(callCtx, origin, destinations)
		if err == nil && len(row) == len(destinations) {
			return row, nil
		}
		f.degrade(len(destinations), err)

		out := make([]ports.DistanceResult, len(destinations))
		for i, d := range destinations {
			out[i] = f.haversine.Estimate(origin, d)
			out[i].Degraded = true
		}
		return out, nil
	}

	out := make([]ports.DistanceResult, len(destinations))
	for i, d := range destinations {
		out[i], _ = f.GetDistance(ctx, origin, d)
	}
	return out, nil
}

func (f *FallbackProvider) degrade(pairs int, err error) {
	obs.DistanceFallbacks.WithLabelValues(f.backend).Add(float64(pairs))
	f.log.Warnf("%s backend unavailable, using haversine for %d pairs: %v", f.backend, pairs, err)
}
