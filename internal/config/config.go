package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"fleet-route-service/internal/domain"
)

// EnvPrefix is the prefix for environment overrides. Nested keys use "__",
// e.g. FLEET_DISTANCE__BACKEND=ors.
const EnvPrefix = "FLEET_"

type Config struct {
	HTTP       HTTPConfig       `json:"http"`
	Database   DatabaseConfig   `json:"database"`
	Redis      RedisConfig      `json:"redis"`
	Logging    LoggingConfig    `json:"logging"`
	Distance   DistanceConfig   `json:"distance"`
	Optimizer  OptimizerConfig  `json:"optimizer"`
	Simulation SimulationConfig `json:"simulation"`
	Metrics    MetricsConfig    `json:"metrics"`
	Fleet      FleetConfig      `json:"fleet"`
}

type HTTPConfig struct {
	Addr string `json:"addr"`
}

type DatabaseConfig struct {
	URL string `json:"url"`
}

type RedisConfig struct {
	URL     string `json:"url"`
	Channel string `json:"channel"`
}

type LoggingConfig struct {
	Level string `json:"level"`
}

type ORSConfig struct {
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl"`
	Profile string `json:"profile"`
}

type GoogleConfig struct {
	APIKey string `json:"apiKey"`
}

type RateLimitConfig struct {
	PerSecond float64 `json:"perSecond"`
	Burst     int     `json:"burst"`
}

type DistanceConfig struct {
	// Backend is one of haversine, ors, google.
	Backend        string  `json:"backend"`
	SpeedKph       float64 `json:"speedKph"`
	TimeoutSeconds int     `json:"timeoutSeconds"`
	Workers        int     `json:"workers"`

	// Cache is one of none, postgres, redis.
	Cache     string          `json:"cache"`
	ORS       ORSConfig       `json:"ors"`
	Google    GoogleConfig    `json:"google"`
	RateLimit RateLimitConfig `json:"rateLimit"`
}

type OptimizerConfig struct {
	MaxStops int `json:"maxStops"`
}

type TicketGenerationConfig struct {
	Enabled         bool    `json:"enabled"`
	IntervalSeconds int     `json:"intervalSeconds"`
	RadiusKm        float64 `json:"radiusKm"`
	MaxPackages     int     `json:"maxPackages"`
	Seed            int64   `json:"seed"`
}

type SimulationConfig struct {
	TickMillis              int                    `json:"tickMillis"`
	Speed                   float64                `json:"speed"`
	ServiceSeconds          int                    `json:"serviceSeconds"`
	AutoReoptimizeThreshold int                    `json:"autoReoptimizeThreshold"`
	TicketGeneration        TicketGenerationConfig `json:"ticketGeneration"`
}

type MetricsConfig struct {
	FuelRatePerKm     float64 `json:"fuelRatePerKm"`
	FuelPrice         float64 `json:"fuelPrice"`
	CO2FactorPerKm    float64 `json:"co2FactorPerKm"`
	MonthlyRouteCount int     `json:"monthlyRouteCount"`
}

type FleetConfig struct {
	Depot         domain.Stop      `json:"depot"`
	Vehicles      []domain.Vehicle `json:"vehicles"`
	ReturnToDepot bool             `json:"returnToDepot"`
}

// Domain converts the configured fleet into the optimizer input shape.
func (f FleetConfig) Domain() domain.FleetConfig {
	return domain.FleetConfig{Vehicles: f.Vehicles, Depot: f.Depot, ReturnToDepot: f.ReturnToDepot}
}

// Load reads the optional config file at path, then applies FLEET_ environment
// overrides, defaults and validation. An empty path loads from the environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		var parser koanf.Parser
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("load config: unsupported config format: %s", filepath.Ext(path))
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load config: read %q: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, "__", envKey), nil); err != nil {
		return nil, fmt.Errorf("load config: env overrides: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("load config: unmarshal: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return &cfg, nil
}

// envKey maps FLEET_DISTANCE__SPEEDKPH to distance.speedkph. koanf matches
// keys case-insensitively when unmarshalling.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

func (c *Config) SetDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = "fleet:simulation"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	d := &c.Distance
	if d.Backend == "" {
		d.Backend = "haversine"
	}
	if d.SpeedKph <= 0 {
		d.SpeedKph = 40
	}
	if d.TimeoutSeconds <= 0 {
		d.TimeoutSeconds = 10
	}
	if d.Workers <= 0 {
		d.Workers = 5
	}
	if d.Cache == "" {
		d.Cache = "none"
	}
	if d.ORS.BaseURL == "" {
		d.ORS.BaseURL = "https://api.openrouteservice.org"
	}
	if d.ORS.Profile == "" {
		d.ORS.Profile = "driving-car"
	}
	if d.RateLimit.PerSecond <= 0 {
		d.RateLimit.PerSecond = 5
	}
	if d.RateLimit.Burst <= 0 {
		d.RateLimit.Burst = 5
	}

	if c.Optimizer.MaxStops <= 0 {
		c.Optimizer.MaxStops = 50
	}

	s := &c.Simulation
	if s.TickMillis <= 0 {
		s.TickMillis = 1000
	}
	if s.Speed <= 0 {
		s.Speed = 1
	}
	if s.ServiceSeconds <= 0 {
		s.ServiceSeconds = 120
	}
	if s.AutoReoptimizeThreshold <= 0 {
		s.AutoReoptimizeThreshold = 3
	}
	if s.TicketGeneration.IntervalSeconds <= 0 {
		s.TicketGeneration.IntervalSeconds = 30
	}
	if s.TicketGeneration.RadiusKm <= 0 {
		s.TicketGeneration.RadiusKm = 5
	}
	if s.TicketGeneration.MaxPackages <= 0 {
		s.TicketGeneration.MaxPackages = 3
	}

	m := &c.Metrics
	if m.FuelRatePerKm <= 0 {
		m.FuelRatePerKm = 0.12
	}
	if m.FuelPrice <= 0 {
		m.FuelPrice = 1.6
	}
	if m.CO2FactorPerKm <= 0 {
		m.CO2FactorPerKm = 0.27
	}
	if m.MonthlyRouteCount <= 0 {
		m.MonthlyRouteCount = 250
	}

	if c.Fleet.Depot.ID == "" {
		c.Fleet.Depot.ID = "depot"
	}
}

func (c *Config) Validate() error {
	switch c.Distance.Backend {
	case "haversine":
	case "ors":
		if strings.TrimSpace(c.Distance.ORS.APIKey) == "" {
			return errors.New("distance.ors.apiKey is required for the ors backend")
		}
	case "google":
		if strings.TrimSpace(c.Distance.Google.APIKey) == "" {
			return errors.New("distance.google.apiKey is required for the google backend")
		}
	default:
		return fmt.Errorf("unknown distance backend %q", c.Distance.Backend)
	}

	switch c.Distance.Cache {
	case "none":
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url is required for the postgres distance cache")
		}
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("redis.url is required for the redis distance cache")
		}
	default:
		return fmt.Errorf("unknown distance cache %q", c.Distance.Cache)
	}

	if c.Optimizer.MaxStops < 2 {
		return fmt.Errorf("optimizer.maxStops must be >= 2 (got %d)", c.Optimizer.MaxStops)
	}

	return nil
}

// DistanceTimeout is the per-request bound for road backends.
func (c *Config) DistanceTimeout() time.Duration {
	return time.Duration(c.Distance.TimeoutSeconds) * time.Second
}

// Get returns the environment value for key or fallback when unset.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
