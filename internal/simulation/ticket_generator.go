package simulation

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/platform/logger"
)

const metersPerDegreeLat = 111320.0

type GeneratorConfig struct {
	Interval    time.Duration
	RadiusKm    float64
	MaxPackages int
	// UrgentShare is the probability of an urgent ticket, in [0,1].
	UrgentShare float64
	Seed        int64
}

// TicketGenerator produces random delivery tickets around the depot on its own
// timer. It only ever appends to the runner's queue.
type TicketGenerator struct {
	runner *Runner
	cfg    GeneratorConfig
	log    logger.Logger

	mu  sync.Mutex
	rng *rand.Rand
	seq int
}

func NewTicketGenerator(runner *Runner, cfg GeneratorConfig, log logger.Logger) *TicketGenerator {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.RadiusKm <= 0 {
		cfg.RadiusKm = 5
	}
	if cfg.MaxPackages <= 0 {
		cfg.MaxPackages = 3
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &TicketGenerator{runner: runner, cfg: cfg, log: log, rng: rand.New(rand.NewSource(seed))}
}

// Generate draws one ticket uniformly from the disc around center.
func (g *TicketGenerator) Generate(center domain.Coordinates) QueuedTicket {
	g.mu.Lock()
	defer g.mu.Unlock()

	r := g.cfg.RadiusKm * 1000 * math.Sqrt(g.rng.Float64())
	theta := 2 * math.Pi * g.rng.Float64()
	dLat := r * math.Cos(theta) / metersPerDegreeLat
	dLng := r * math.Sin(theta) / (metersPerDegreeLat * math.Cos(center.Lat*math.Pi/180))

	id, err := uuid.NewRandomFromReader(g.rng)
	if err != nil {
		id = uuid.New()
	}
	g.seq++

	priority := PriorityNormal
	if g.rng.Float64() < g.cfg.UrgentShare {
		priority = PriorityUrgent
	}

	return QueuedTicket{
		ID:       id.String(),
		Priority: priority,
		Stop: domain.Stop{
			ID:           id.String(),
			Address:      fmt.Sprintf("Generated ticket %d", g.seq),
			Coordinates:  domain.Coordinates{Lat: center.Lat + dLat, Lng: center.Lng + dLng},
			Type:         domain.StopTypeDelivery,
			PackageCount: 1 + g.rng.Intn(g.cfg.MaxPackages),
		},
	}
}

// Tick adds a ticket when generation is enabled and the user has not paused
// the simulation.
func (g *TicketGenerator) Tick() (QueuedTicket, bool) {
	center, ok := g.runner.acceptsGenerated()
	if !ok {
		return QueuedTicket{}, false
	}
	t, err := g.runner.AddTicket(g.Generate(center))
	if err != nil {
		g.log.Warnf("generated ticket rejected: %v", err)
		return QueuedTicket{}, false
	}
	g.log.Debugw("ticket generated", map[string]any{"ticket": t.ID, "packages": t.Stop.PackageCount})
	return t, true
}

func (g *TicketGenerator) Run(ctx context.Context) error {
	ticker := time.NewTicker(g.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			g.Tick()
		}
	}
}
