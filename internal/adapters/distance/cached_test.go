package distance

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/ports"
)

type memoryCache struct {
	mu      sync.Mutex
	data    map[string]ports.DistanceResult
	failGet bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string]ports.DistanceResult)}
}

func (m *memoryCache) GetMany(_ context.Context, origin string, destinations []string) (map[string]ports.DistanceResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, errors.New("cache down")
	}
	out := map[string]ports.DistanceResult{}
	for _, d := range destinations {
		if r, ok := m.data[origin+"|"+d]; ok {
			out[d] = r
		}
	}
	return out, nil
}

func (m *memoryCache) PutMany(_ context.Context, origin string, results map[string]ports.DistanceResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for d, r := range results {
		m.data[origin+"|"+d] = r
	}
	return nil
}

func TestCachedProviderServesHits(t *testing.T) {
	mock := NewMockDistanceProvider([]MockPair{
		{From: depot, To: stopA, Meters: 1000, Seconds: 90},
		{From: depot, To: stopB, Meters: 2000, Seconds: 180},
	})
	cache := newMemoryCache()
	c := NewCachedProvider(mock, cache, nil)
	ctx := context.Background()

	first, err := c.GetDistances(ctx, depot, []domain.Coordinates{stopA, stopB})
	require.NoError(t, err)
	assert.Equal(t, 2, mock.Calls())

	second, err := c.GetDistances(ctx, depot, []domain.Coordinates{stopA, stopB})
	require.NoError(t, err)
	assert.Equal(t, 2, mock.Calls(), "second lookup should be served from cache")
	assert.Equal(t, first, second)

	r, err := c.GetDistance(ctx, depot, stopB)
	require.NoError(t, err)
	assert.Equal(t, 2000.0, r.DistanceMeters)
}

func TestCachedProviderSkipsDegraded(t *testing.T) {
	f := NewFallbackProvider(NewMockDistanceProvider(nil), nil, 0, "mock", nil)
	cache := newMemoryCache()
	c := NewCachedProvider(f, cache, nil)

	r, err := c.GetDistance(context.Background(), depot, stopA)
	require.NoError(t, err)
	assert.True(t, r.Degraded)
	assert.Empty(t, cache.data)
}

func TestCachedProviderToleratesCacheErrors(t *testing.T) {
	mock := NewMockDistanceProvider([]MockPair{{From: depot, To: stopA, Meters: 1000, Seconds: 90}})
	cache := newMemoryCache()
	cache.failGet = true
	c := NewCachedProvider(mock, cache, nil)

	r, err := c.GetDistance(context.Background(), depot, stopA)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, r.DistanceMeters)
}
