package distance

import (
	"context"
	"fmt"

	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/platform/logger"
	"fleet-route-service/internal/ports"
)

// CachedProvider checks a persistent cache before calling the inner provider.
// Degraded results are never written back. Cache errors are logged and
// treated as misses.
type CachedProvider struct {
	inner ports.DistanceProvider
	cache ports.DistanceCache
	log   logger.Logger
}

func NewCachedProvider(inner ports.DistanceProvider, cache ports.DistanceCache, log logger.Logger) *CachedProvider {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &CachedProvider{inner: inner, cache: cache, log: log}
}

func (c *CachedProvider) GetDistance(ctx context.Context, origin, destination domain.Coordinates) (ports.DistanceResult, error) {
	row, err := c.GetDistances(ctx, origin, []domain.Coordinates{destination})
	if err != nil {
		return ports.DistanceResult{}, err
	}
	return row[0], nil
}

func (c *CachedProvider) GetDistances(ctx context.Context, origin domain.Coordinates, destinations []domain.Coordinates) ([]ports.DistanceResult, error) {
	originKey := origin.Key()
	keys := make([]string, len(destinations))
	for i, d := range destinations {
		keys[i] = d.Key()
	}

	hits, err := c.cache.GetMany(ctx, originKey, keys)
	if err != nil {
		c.log.Warnf("distance cache read failed: %v", err)
		hits = nil
	}

	out := make([]ports.DistanceResult, len(destinations))
	missIdx := make([]int, 0, len(destinations))
	missCoords := make([]domain.Coordinates, 0, len(destinations))
	for i, k := range keys {
		if r, ok := hits[k]; ok {
			out[i] = r
			continue
		}
		missIdx = append(missIdx, i)
		missCoords = append(missCoords, destinations[i])
	}

	if len(missIdx) == 0 {
		return out, nil
	}

	fetched, err := c.fetch(ctx, origin, missCoords)
	if err != nil {
		return nil, err
	}
	if len(fetched) != len(missCoords) {
		return nil, fmt.Errorf("cached distances: inner provider returned %d results for %d destinations", len(fetched), len(missCoords))
	}

	fresh := make(map[string]ports.DistanceResult, len(fetched))
	for k, i := range missIdx {
		out[i] = fetched[k]
		if !fetched[k].Degraded {
			fresh[keys[i]] = fetched[k]
		}
	}

	if len(fresh) > 0 {
		if err := c.cache.PutMany(ctx, originKey, fresh); err != nil {
			c.log.Warnf("distance cache write failed: %v", err)
		}
	}

	return out, nil
}

func (c *CachedProvider) fetch(ctx context.Context, origin domain.Coordinates, destinations []domain.Coordinates) ([]ports.DistanceResult, error) {
	if mp, ok := c.inner.(ports.DistanceMatrixProvider); ok {
		return mp.GetDistances(ctx, origin, destinations)
	}
	out := make([]ports.DistanceResult, len(destinations))
	for i, d := range destinations {
		r, err := c.inner.GetDistance(ctx, origin, d)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}
