package services

import "math"

const defaultMonthlyRouteCount = 250

// Cost factors used to translate saved distance into money and emissions.
type MetricsConfig struct {
	FuelRatePerKm     float64 `json:"fuelRatePerKm"`  // litres per km
	FuelPrice         float64 `json:"fuelPrice"`      // currency per litre
	CO2FactorPerKm    float64 `json:"co2FactorPerKm"` // kg per km
	MonthlyRouteCount int     `json:"monthlyRouteCount"`
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		FuelRatePerKm:     0.12,
		FuelPrice:         1.6,
		CO2FactorPerKm:    0.27,
		MonthlyRouteCount: defaultMonthlyRouteCount,
	}
}

type MonthlyProjection struct {
	DistanceSavedKm float64 `json:"distanceSavedKm"`
	TimeSavedHours  float64 `json:"timeSavedHours"`
	FuelCostSaved   float64 `json:"fuelCostSaved"`
	CO2SavedKg      float64 `json:"co2SavedKg"`
}

type RouteComparison struct {
	DistanceSavedMeters float64           `json:"distanceSavedMeters"`
	TimeSavedSeconds    float64           `json:"timeSavedSeconds"`
	ImprovementPercent  float64           `json:"improvementPercent"`
	FuelCostSaved       float64           `json:"fuelCostSaved"`
	CO2SavedKg          float64           `json:"co2SavedKg"`
	Monthly             MonthlyProjection `json:"monthly"`
}

func DistanceSaved(originalMeters, optimizedMeters float64) float64 {
	return math.Max(0, originalMeters-optimizedMeters)
}

func TimeSaved(originalSeconds, optimizedSeconds float64) float64 {
	return math.Max(0, originalSeconds-optimizedSeconds)
}

// ImprovementPercent is the saved share of the original distance, in [0,100].
func ImprovementPercent(originalMeters, optimizedMeters float64) float64 {
	if originalMeters <= 0 {
		return 0
	}
	p := DistanceSaved(originalMeters, optimizedMeters) / originalMeters * 100
	return math.Max(0, math.Min(100, p))
}

func FuelCostSaved(distanceSavedMeters float64, cfg MetricsConfig) float64 {
	return distanceSavedMeters / 1000 * cfg.FuelRatePerKm * cfg.FuelPrice
}

func CO2Saved(distanceSavedMeters float64, cfg MetricsConfig) float64 {
	return distanceSavedMeters / 1000 * cfg.CO2FactorPerKm
}

// CompareRoutes turns a before/after pair of route totals into business metrics.
func CompareRoutes(originalMeters, originalSeconds, optimizedMeters, optimizedSeconds float64, cfg MetricsConfig) RouteComparison {
	if cfg.MonthlyRouteCount <= 0 {
		cfg.MonthlyRouteCount = defaultMonthlyRouteCount
	}

	saved := DistanceSaved(originalMeters, optimizedMeters)
	timeSaved := TimeSaved(originalSeconds, optimizedSeconds)
	fuel := FuelCostSaved(saved, cfg)
	co2 := CO2Saved(saved, cfg)
	months := float64(cfg.MonthlyRouteCount)

	return RouteComparison{
		DistanceSavedMeters: saved,
		TimeSavedSeconds:    timeSaved,
		ImprovementPercent:  ImprovementPercent(originalMeters, optimizedMeters),
		FuelCostSaved:       fuel,
		CO2SavedKg:          co2,
		Monthly: MonthlyProjection{
			DistanceSavedKm: saved / 1000 * months,
			TimeSavedHours:  timeSaved / 3600 * months,
			FuelCostSaved:   fuel * months,
			CO2SavedKg:      co2 * months,
		},
	}
}
