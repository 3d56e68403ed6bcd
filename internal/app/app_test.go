package app

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-route-service/internal/adapters/distance"
	"fleet-route-service/internal/adapters/repositories"
	"fleet-route-service/internal/config"
	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/platform/logger"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Fleet.Vehicles = []domain.Vehicle{{ID: "v1", PackageCapacity: 4}}
	cfg.SetDefaults()
	return cfg
}

func TestNewDefaultsToHaversineAndMemory(t *testing.T) {
	a, err := New(context.Background(), testConfig(), logger.NopLogger{})
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &distance.HaversineProvider{}, a.Provider)
	assert.IsType(t, &repositories.MemorySolutionRepository{}, a.Solutions)
	assert.Nil(t, a.DB)
	assert.Nil(t, a.Redis)

	s := a.Runner.State()
	require.Len(t, s.Vehicles, 1)
	assert.Equal(t, "depot", s.Depot.ID)
	assert.Equal(t, 3, s.AutoReoptimizeThreshold)
	assert.Equal(t, 1000, int(a.TickInterval().Milliseconds()))
	assert.Equal(t, 250, a.Metrics().MonthlyRouteCount)
}

func TestNewWiresFallbackAndRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Distance.Backend = "ors"
	cfg.Distance.ORS.APIKey = "key"
	cfg.Distance.Cache = "redis"
	cfg.Redis.URL = "redis://" + mr.Addr()
	require.NoError(t, cfg.Validate())

	a, err := New(context.Background(), cfg, logger.NopLogger{})
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &distance.CachedProvider{}, a.Provider)
	assert.NotNil(t, a.Redis)
}
