// Package app builds the service graph from configuration. It is shared by
// the HTTP server and the fleetctl CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fleet-route-service/internal/adapters/cache"
	"fleet-route-service/internal/adapters/distance"
	"fleet-route-service/internal/adapters/events"
	"fleet-route-service/internal/adapters/repositories"
	"fleet-route-service/internal/config"
	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/platform/db"
	"fleet-route-service/internal/platform/logger"
	"fleet-route-service/internal/ports"
	"fleet-route-service/internal/services"
	"fleet-route-service/internal/simulation"
)

const distanceCacheTTL = 7 * 24 * time.Hour

type App struct {
	Config *config.Config

	DB    *sql.DB
	Redis *redis.Client

	Provider       ports.DistanceProvider
	RouteOptimizer *services.RouteOptimizer
	FleetOptimizer *services.FleetOptimizer
	Solutions      ports.SolutionRepository

	Bus       *events.Bus
	Runner    *simulation.Runner
	Generator *simulation.TicketGenerator
}

// New opens the configured stores and wires providers, optimizers and the
// simulation runner. Close releases what New opened.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (_ *App, err error) {
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.Database.URL != "" {
		if a.DB, err = db.Open(cfg.Database.URL); err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		if err = repositories.InitSchema(ctx, a.DB); err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
	}
	if cfg.Redis.URL != "" {
		if a.Redis, err = events.NewRedisClient(cfg.Redis.URL); err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		if err = a.Redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("app: ping redis: %w", err)
		}
	}

	if a.Provider, err = a.distanceProvider(log); err != nil {
		return nil, err
	}

	opts := []services.Option{
		services.WithWorkers(cfg.Distance.Workers),
		services.WithMaxStops(cfg.Optimizer.MaxStops),
		services.WithLogger(log),
	}
	a.RouteOptimizer = services.NewRouteOptimizer(a.Provider, opts...)
	a.FleetOptimizer = services.NewFleetOptimizer(a.Provider, opts...)

	if a.DB != nil {
		a.Solutions = repositories.NewPostgresSolutionRepository(a.DB)
	} else {
		a.Solutions = repositories.NewMemorySolutionRepository()
	}

	a.Bus = events.NewBus(16)
	publishers := []ports.SnapshotPublisher{a.Bus}
	if a.Redis != nil {
		publishers = append(publishers, events.NewRedisPublisher(a.Redis, cfg.Redis.Channel))
	}

	initial := simulation.NewState(domain.FleetSolution{}, cfg.Fleet.Domain(), a.SimulationOptions())
	a.Runner = simulation.NewRunner(initial,
		simulation.NewEngine(a.FleetOptimizer, log),
		simulation.WithPublishers(publishers...),
		simulation.WithRunnerLogger(log),
	)

	tg := cfg.Simulation.TicketGeneration
	a.Generator = simulation.NewTicketGenerator(a.Runner, simulation.GeneratorConfig{
		Interval:    time.Duration(tg.IntervalSeconds) * time.Second,
		RadiusKm:    tg.RadiusKm,
		MaxPackages: tg.MaxPackages,
		UrgentShare: 0.1,
		Seed:        tg.Seed,
	}, log)

	return a, nil
}

// distanceProvider stacks backend, haversine fallback and cache.
func (a *App) distanceProvider(log logger.Logger) (ports.DistanceProvider, error) {
	d := a.Config.Distance
	haversine := distance.NewHaversineProvider(d.SpeedKph)

	var provider ports.DistanceProvider = haversine
	switch d.Backend {
	case "ors":
		ors, err := distance.NewORSProvider(d.ORS.APIKey,
			distance.WithORSBaseURL(d.ORS.BaseURL),
			distance.WithORSProfile(d.ORS.Profile),
			distance.WithORSRateLimit(d.RateLimit.PerSecond, d.RateLimit.Burst),
			distance.WithORSLogger(log),
		)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		provider = distance.NewFallbackProvider(ors, haversine, a.Config.DistanceTimeout(), "ors", log)
	case "google":
		g, err := distance.NewGoogleProvider(d.Google.APIKey, d.RateLimit.PerSecond, d.RateLimit.Burst)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		provider = distance.NewFallbackProvider(g, haversine, a.Config.DistanceTimeout(), "google", log)
	}

	switch d.Cache {
	case "postgres":
		if a.DB == nil {
			return nil, errors.New("app: postgres distance cache needs database.url")
		}
		provider = distance.NewCachedProvider(provider, cache.NewSQLDistanceCache(a.DB), log)
	case "redis":
		if a.Redis == nil {
			return nil, errors.New("app: redis distance cache needs redis.url")
		}
		provider = distance.NewCachedProvider(provider, cache.NewRedisDistanceCache(a.Redis, distanceCacheTTL), log)
	}

	log.Infof("distance provider: backend=%s cache=%s speed=%.0fkph", d.Backend, d.Cache, d.SpeedKph)
	return provider, nil
}

// SimulationOptions turns the simulation config into state options.
func (a *App) SimulationOptions() simulation.Options {
	s := a.Config.Simulation
	return simulation.Options{
		SimulationSpeed:         s.Speed,
		ServiceDuration:         time.Duration(s.ServiceSeconds) * time.Second,
		SpeedKph:                a.Config.Distance.SpeedKph,
		AutoReoptimizeThreshold: s.AutoReoptimizeThreshold,
		TicketGenerationEnabled: s.TicketGeneration.Enabled,
	}
}

func (a *App) Metrics() services.MetricsConfig {
	m := a.Config.Metrics
	return services.MetricsConfig{
		FuelRatePerKm:     m.FuelRatePerKm,
		FuelPrice:         m.FuelPrice,
		CO2FactorPerKm:    m.CO2FactorPerKm,
		MonthlyRouteCount: m.MonthlyRouteCount,
	}
}

func (a *App) TickInterval() time.Duration {
	return time.Duration(a.Config.Simulation.TickMillis) * time.Millisecond
}

func (a *App) Close() {
	if a.Bus != nil {
		a.Bus.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}
