package services

import (
	"context"
	"fmt"

	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/platform/logger"
	"fleet-route-service/internal/platform/obs"
	"fleet-route-service/internal/ports"
)

// Distances closer than this (1e-6 km) are treated as ties.
const tieEpsilonMeters = 1e-3

// Progress phases reported by the single-route optimizer, in order.
const (
	PhaseComputingDistances = "computing_distances"
	PhaseBuildingRoute      = "building_route"
	PhaseCalculatingMetrics = "calculating_metrics"
)

var routePhases = []struct {
	name    string
	message string
}{
	{PhaseComputingDistances, "distance matrix computed"},
	{PhaseBuildingRoute, "route sequence built"},
	{PhaseCalculatingMetrics, "route metrics calculated"},
}

type RouteOptions struct {
	// Start is the fixed starting point, usually the depot. When nil the first
	// stop is the start and stays first.
	Start             *domain.Stop
	IsRoundTrip       bool
	EnforcePrecedence bool
	Progress          ports.ProgressFunc
}

// Result of a single-route optimization. Original* values are measured on
// the input order, Stops on the optimized order.
type OptimizedRoute struct {
	Start                   domain.Stop   `json:"start"`
	Stops                   []domain.Stop `json:"stops"`
	Legs                    []domain.Leg  `json:"legs"`
	DistanceMeters          float64       `json:"distanceMeters"`
	DurationSeconds         float64       `json:"durationSeconds"`
	OriginalDistanceMeters  float64       `json:"originalDistanceMeters"`
	OriginalDurationSeconds float64       `json:"originalDurationSeconds"`
	DistanceSavedMeters     float64       `json:"distanceSavedMeters"`
	TimeSavedSeconds        float64       `json:"timeSavedSeconds"`
	ImprovementPercent      float64       `json:"improvementPercent"`
	Degraded                bool          `json:"degraded"`
	Warnings                []string      `json:"warnings,omitempty"`
}

// Option configures the optimizers.
type Option func(*optimizerOptions)

type optimizerOptions struct {
	workers  int
	maxStops int
	log      logger.Logger
}

// WithWorkers bounds concurrent distance lookups during matrix builds.
func WithWorkers(n int) Option { return func(o *optimizerOptions) { o.workers = n } }

// WithMaxStops bounds the fleet optimizer input size.
func WithMaxStops(n int) Option { return func(o *optimizerOptions) { o.maxStops = n } }

func WithLogger(l logger.Logger) Option { return func(o *optimizerOptions) { o.log = l } }

func buildOptions(opts []Option) optimizerOptions {
	o := optimizerOptions{workers: defaultWorkers, maxStops: defaultMaxStops, log: logger.NopLogger{}}
	for _, fn := range opts {
		fn(&o)
	}
	if o.log == nil {
		o.log = logger.NopLogger{}
	}
	return o
}

// RouteOptimizer builds one vehicle's tour with a greedy nearest-neighbor pass.
// It holds no mutable state, so one instance may serve concurrent requests.
type RouteOptimizer struct {
	provider ports.DistanceProvider
	opts     optimizerOptions
}

func NewRouteOptimizer(provider ports.DistanceProvider, opts ...Option) *RouteOptimizer {
	return &RouteOptimizer{provider: provider, opts: buildOptions(opts)}
}

// Optimize orders stops greedily by distance from the current position.
//
// The algorithm is deterministic but not optimal: ties within 1e-6 km go to the
// lower input index, and with precedence enabled a dropoff is only eligible once
// its pickup has been visited.
func (o *RouteOptimizer) Optimize(ctx context.Context, stops []domain.Stop, opts RouteOptions) (res *OptimizedRoute, err error) {
	defer obs.Time(ctx, "optimize_route")(&err)
	defer func() { obs.Optimizations.WithLabelValues("route", outcome(err)).Inc() }()

	const op = "optimize route"
	if err := validateStops(op, stops); err != nil {
		return nil, err
	}
	if opts.EnforcePrecedence {
		if err := missingPairs(op, stops); err != nil {
			return nil, err
		}
		if opts.Start == nil && len(stops) > 0 && stops[0].IsDropoff() {
			return nil, domain.NewError(domain.KindPrecedenceViolation, op,
				fmt.Sprintf("start stop %q is a dropoff", stops[0].ID))
		}
	}

	report := phaseReporter(opts.Progress)

	if len(stops) == 0 {
		res := &OptimizedRoute{Stops: []domain.Stop{}, Legs: []domain.Leg{}}
		if opts.Start != nil {
			res.Start = *opts.Start
		}
		for i := range routePhases {
			report(i)
		}
		return res, nil
	}

	// Node 0 is always the start; with an explicit start the stops follow it.
	nodes := make([]domain.Stop, 0, len(stops)+1)
	if opts.Start != nil {
		nodes = append(nodes, *opts.Start)
	}
	nodes = append(nodes, stops...)

	points := make([]domain.Coordinates, len(nodes))
	for i, s := range nodes {
		points[i] = s.Coordinates
	}

	m, err := BuildDistanceMatrix(ctx, o.provider, points, o.opts.workers)
	if err != nil {
		return nil, domain.WrapError(domain.KindOptimizerFailure, op, err)
	}
	report(0)

	candidates := make([]int, 0, len(nodes)-1)
	for i := 1; i < len(nodes); i++ {
		candidates = append(candidates, i)
	}

	pickups := pickupIndex(nodes)
	order, err := nearestNeighborOrder(m, 0, candidates, nodes, pickups, opts.EnforcePrecedence)
	if err != nil {
		return nil, err
	}
	report(1)

	original := append([]int{0}, candidates...)
	optimized := append([]int{0}, order...)
	if opts.IsRoundTrip && len(nodes) > 1 {
		original = append(original, 0)
		optimized = append(optimized, 0)
	}

	origDist, origDur := m.pathCost(original)
	optDist, optDur := m.pathCost(optimized)

	res = &OptimizedRoute{
		Start:                   nodes[0],
		Stops:                   make([]domain.Stop, 0, len(stops)),
		Legs:                    buildLegs(m, nodes, optimized),
		DistanceMeters:          optDist,
		DurationSeconds:         optDur,
		OriginalDistanceMeters:  origDist,
		OriginalDurationSeconds: origDur,
		DistanceSavedMeters:     DistanceSaved(origDist, optDist),
		TimeSavedSeconds:        TimeSaved(origDur, optDur),
		ImprovementPercent:      ImprovementPercent(origDist, optDist),
		Degraded:                m.Degraded(),
		Warnings:                m.Warnings(),
	}
	if opts.Start == nil {
		res.Stops = append(res.Stops, nodes[0])
	}
	for _, idx := range order {
		res.Stops = append(res.Stops, nodes[idx])
	}
	report(2)

	o.opts.log.Debugf("route optimized: stops=%d distance=%.0fm saved=%.0fm degraded=%t",
		len(stops), optDist, res.DistanceSavedMeters, res.Degraded)

	return res, nil
}

func phaseReporter(fn ports.ProgressFunc) func(step int) {
	return func(step int) {
		if fn == nil {
			return
		}
		total := len(routePhases)
		fn(ports.Progress{
			Phase:       routePhases[step].name,
			CurrentStep: step + 1,
			TotalSteps:  total,
			Percent:     (step + 1) * 100 / total,
			Message:     routePhases[step].message,
		})
	}
}

// pickupIndex maps each dropoff node to its pickup node within nodes.
func pickupIndex(nodes []domain.Stop) map[int]int {
	byID := make(map[string]int, len(nodes))
	for i, s := range nodes {
		byID[s.ID] = i
	}
	out := make(map[int]int)
	for i, s := range nodes {
		if !s.IsDropoff() {
			continue
		}
		if p, ok := byID[s.PairedStopID]; ok {
			out[i] = p
		}
	}
	return out
}

// nearestNeighborOrder visits every candidate once, starting from start.
// Candidates are scanned in ascending index order so ties keep the lower index.
func nearestNeighborOrder(
	m *DistanceMatrix,
	start int,
	candidates []int,
	nodes []domain.Stop,
	pickups map[int]int,
	enforce bool,
) ([]int, error) {
	visited := map[int]bool{start: true}
	order := make([]int, 0, len(candidates))
	current := start

	for len(order) < len(candidates) {
		best := -1
		bestDist := 0.0

		for _, c := range candidates {
			if visited[c] {
				continue
			}
			if enforce {
				if p, ok := pickups[c]; ok && !visited[p] {
					continue
				}
			}
			d := m.Distance(current, c)
			if best == -1 || d < bestDist-tieEpsilonMeters {
				best = c
				bestDist = d
			}
		}

		if best == -1 {
			return nil, domain.NewError(domain.KindPrecedenceViolation, "nearest neighbor",
				fmt.Sprintf("no feasible next stop after %q", nodes[current].ID))
		}

		visited[best] = true
		order = append(order, best)
		current = best
	}

	return order, nil
}

// buildLegs materializes the legs along a node sequence.
func buildLegs(m *DistanceMatrix, nodes []domain.Stop, seq []int) []domain.Leg {
	legs := make([]domain.Leg, 0, len(seq))
	for i := 1; i < len(seq); i++ {
		a, b := seq[i-1], seq[i]
		legs = append(legs, domain.Leg{
			FromStopID:      nodes[a].ID,
			ToStopID:        nodes[b].ID,
			DistanceMeters:  m.Distance(a, b),
			DurationSeconds: m.Duration(a, b),
			Geometry:        m.Geometry(a, b),
		})
	}
	return legs
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
