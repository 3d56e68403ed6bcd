package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSavingsAreClamped(t *testing.T) {
	assert.Equal(t, 0.0, DistanceSaved(1000, 1200))
	assert.Equal(t, 200.0, DistanceSaved(1200, 1000))
	assert.Equal(t, 0.0, TimeSaved(60, 90))
	assert.Equal(t, 0.0, ImprovementPercent(0, 0))
	assert.Equal(t, 0.0, ImprovementPercent(1000, 1500))
	assert.InDelta(t, 25.0, ImprovementPercent(1000, 750), 1e-9)
	assert.Equal(t, 100.0, ImprovementPercent(1000, 0))
}

func TestCompareRoutes(t *testing.T) {
	cfg := MetricsConfig{FuelRatePerKm: 0.1, FuelPrice: 2, CO2FactorPerKm: 0.25}

	got := CompareRoutes(12000, 1800, 10000, 1500, cfg)

	assert.Equal(t, 2000.0, got.DistanceSavedMeters)
	assert.Equal(t, 300.0, got.TimeSavedSeconds)
	assert.InDelta(t, 0.4, got.FuelCostSaved, 1e-9)
	assert.InDelta(t, 0.5, got.CO2SavedKg, 1e-9)

	// Monthly count falls back to 250 routes.
	assert.InDelta(t, 500.0, got.Monthly.DistanceSavedKm, 1e-9)
	assert.InDelta(t, 100.0, got.Monthly.FuelCostSaved, 1e-9)
	assert.InDelta(t, 125.0, got.Monthly.CO2SavedKg, 1e-9)
	assert.InDelta(t, 250.0/12, got.Monthly.TimeSavedHours, 1e-9)
}

func TestDefaultMetricsConfig(t *testing.T) {
	cfg := DefaultMetricsConfig()
	assert.Equal(t, 250, cfg.MonthlyRouteCount)
	assert.Positive(t, cfg.FuelRatePerKm)
}
