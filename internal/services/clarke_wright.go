package services

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/platform/obs"
	"fleet-route-service/internal/ports"
)

const (
	minFleetStops   = 2
	defaultMaxStops = 50
)

type saving struct {
	i, j  int
	value float64
}

// FleetOptimizer splits stops across a capacity-constrained fleet with the
// Clarke-Wright savings heuristic. Like RouteOptimizer it keeps no state
// between calls.
type FleetOptimizer struct {
	provider ports.DistanceProvider
	opts     optimizerOptions
}

func NewFleetOptimizer(provider ports.DistanceProvider, opts ...Option) *FleetOptimizer {
	return &FleetOptimizer{provider: provider, opts: buildOptions(opts)}
}

// Optimize returns one route per configured vehicle, in configuration order.
//
// Every stop starts on its own depot round trip (a pickup shares one with its
// dropoffs). Routes are then merged in descending savings order when the
// joined stops are route endpoints, the merged demand fits the largest
// vehicle, precedence holds and the merge does not leave more demand unpacked
// than before. The surviving routes are bin packed onto vehicles and each
// vehicle's sequence is re-run through nearest neighbor, keeping the shorter.
func (o *FleetOptimizer) Optimize(ctx context.Context, stops []domain.Stop, fleet domain.FleetConfig) (sol *domain.FleetSolution, err error) {
	defer obs.Time(ctx, "optimize_fleet")(&err)
	defer func() { obs.Optimizations.WithLabelValues("fleet", outcome(err)).Inc() }()

	const op = "optimize fleet"
	if len(stops) < minFleetStops {
		return nil, domain.NewError(domain.KindValidation, op,
			fmt.Sprintf("at least %d stops are required (got %d)", minFleetStops, len(stops)))
	}
	if len(stops) > o.opts.maxStops {
		return nil, domain.NewError(domain.KindValidation, op,
			fmt.Sprintf("at most %d stops are supported (got %d)", o.opts.maxStops, len(stops)))
	}
	if err := fleet.Validate(); err != nil {
		return nil, err
	}
	if err := validateStops(op, stops); err != nil {
		return nil, err
	}
	for _, s := range stops {
		if s.ID == fleet.Depot.ID {
			return nil, domain.NewError(domain.KindValidation, op,
				fmt.Sprintf("stop id %q collides with the depot id", s.ID))
		}
	}
	if err := missingPairs(op, stops); err != nil {
		return nil, err
	}

	nodes := make([]domain.Stop, 0, len(stops)+1)
	nodes = append(nodes, fleet.Depot)
	nodes = append(nodes, stops...)

	points := make([]domain.Coordinates, len(nodes))
	for i, s := range nodes {
		points[i] = s.Coordinates
	}

	m, err := BuildDistanceMatrix(ctx, o.provider, points, o.opts.workers)
	if err != nil {
		return nil, domain.WrapError(domain.KindOptimizerFailure, op, err)
	}

	pickups := pickupIndex(nodes)
	unassigned := make(map[int]string)

	maxCap := fleet.MaxCapacity()
	for i := 1; i < len(nodes); i++ {
		if nodes[i].Demand() > maxCap {
			unassigned[i] = domain.ReasonUnassignableStop
		}
	}
	// A dropoff cannot travel without its pickup.
	for d, p := range pickups {
		if _, ok := unassigned[p]; ok {
			unassigned[d] = domain.ReasonUnassignableStop
		}
	}

	arena, uf, routeOf := initialRoutes(nodes, pickups, unassigned)
	live := make([]int, len(arena))
	for i := range arena {
		live[i] = i
	}

	savings := computeSavings(m, len(nodes), unassigned)
	_, _, unpackedDemand := packRoutes(arena, live, fleet.Vehicles)

	for _, s := range savings {
		ri, rj := routeOf[uf.find(s.i)], routeOf[uf.find(s.j)]
		if ri == rj {
			continue
		}
		a, b := arena[ri], arena[rj]
		if a.finalized || b.finalized {
			continue
		}
		if !isEndpoint(a, s.i) || !isEndpoint(b, s.j) {
			continue
		}
		demand := a.demand + b.demand
		if demand > maxCap {
			continue
		}

		seq := orientMerge(a, b, s.i, s.j, nodes, pickups)
		if seq == nil {
			continue
		}

		merged := &cwRoute{nodes: seq, demand: demand, finalized: demand == maxCap}
		candidate := append(arena[:len(arena):len(arena)], merged)
		nextLive := make([]int, 0, len(live)-1)
		for _, idx := range live {
			if idx != ri && idx != rj {
				nextLive = append(nextLive, idx)
			}
		}
		nextLive = append(nextLive, len(candidate)-1)

		_, _, nextUnpacked := packRoutes(candidate, nextLive, fleet.Vehicles)
		if nextUnpacked > unpackedDemand {
			continue
		}

		arena, live, unpackedDemand = candidate, nextLive, nextUnpacked
		routeOf[uf.union(s.i, s.j)] = len(arena) - 1
	}

	loads, unpacked, _ := packRoutes(arena, live, fleet.Vehicles)
	for _, idx := range unpacked {
		for _, n := range arena[idx].nodes {
			unassigned[n] = domain.ReasonNoCapacityLeft
		}
	}

	sol = &domain.FleetSolution{
		Routes:   make([]domain.Route, 0, len(loads)),
		Degraded: m.Degraded(),
		Warnings: slices.Clone(m.Warnings()),
	}

	for _, load := range loads {
		route, err := o.sequenceVehicle(m, nodes, pickups, load, arena, fleet.ReturnToDepot)
		if err != nil {
			return nil, err
		}
		if !route.IsEmpty {
			sol.VehiclesUsed++
		}
		sol.TotalDistanceMeters += route.DistanceMeters
		sol.TotalDurationSeconds += route.DurationSeconds
		sol.Routes = append(sol.Routes, route)
	}

	unassignedIdx := make([]int, 0, len(unassigned))
	for idx := range unassigned {
		unassignedIdx = append(unassignedIdx, idx)
	}
	slices.Sort(unassignedIdx)
	for _, idx := range unassignedIdx {
		sol.Unassigned = append(sol.Unassigned, domain.UnassignedStop{StopID: nodes[idx].ID, Reason: unassigned[idx]})
	}
	if len(sol.Unassigned) > 0 {
		sol.Warnings = append(sol.Warnings, fmt.Sprintf("%d stops could not be assigned", len(sol.Unassigned)))
	}

	sol.Graph = buildGraph(m, nodes, sol.Routes, unassignedIdx)

	o.opts.log.Infof("fleet optimized: stops=%d vehicles_used=%d/%d distance=%.0fm unassigned=%d degraded=%t",
		len(stops), sol.VehiclesUsed, len(fleet.Vehicles), sol.TotalDistanceMeters, len(sol.Unassigned), sol.Degraded)

	return sol, nil
}

// initialRoutes puts every stop on its own route, except that a pickup and its
// dropoffs share one, pickup first.
func initialRoutes(nodes []domain.Stop, pickups map[int]int, skip map[int]string) ([]*cwRoute, *unionFind, map[int]int) {
	uf := newUnionFind(len(nodes))
	for d, p := range pickups {
		if _, ok := skip[d]; !ok {
			uf.union(d, p)
		}
	}

	groups := make(map[int][]int)
	roots := []int{}
	for i := 1; i < len(nodes); i++ {
		if _, ok := skip[i]; ok {
			continue
		}
		r := uf.find(i)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], i)
	}

	arena := make([]*cwRoute, 0, len(roots))
	routeOf := make(map[int]int, len(roots))
	for _, r := range roots {
		members := groups[r]
		slices.SortStableFunc(members, func(a, b int) int {
			if nodes[a].IsDropoff() != nodes[b].IsDropoff() {
				if nodes[a].IsDropoff() {
					return 1
				}
				return -1
			}
			return cmp.Compare(a, b)
		})
		demand := 0
		for _, n := range members {
			demand += nodes[n].Demand()
		}
		routeOf[r] = len(arena)
		arena = append(arena, &cwRoute{nodes: members, demand: demand})
	}

	return arena, uf, routeOf
}

// computeSavings lists positive savings for every assignable pair, sorted by
// descending value with ties on ascending (i, j).
func computeSavings(m *DistanceMatrix, n int, skip map[int]string) []saving {
	out := []saving{}
	for i := 1; i < n; i++ {
		if _, ok := skip[i]; ok {
			continue
		}
		for j := i + 1; j < n; j++ {
			if _, ok := skip[j]; ok {
				continue
			}
			v := m.Distance(0, i) + m.Distance(0, j) - m.Distance(i, j)
			if v > tieEpsilonMeters {
				out = append(out, saving{i: i, j: j, value: v})
			}
		}
	}

	slices.SortStableFunc(out, func(a, b saving) int {
		if c := cmp.Compare(b.value, a.value); c != 0 {
			return c
		}
		if c := cmp.Compare(a.i, b.i); c != 0 {
			return c
		}
		return cmp.Compare(a.j, b.j)
	})
	return out
}

// isEndpoint reports whether node sits next to the depot in r.
func isEndpoint(r *cwRoute, node int) bool {
	return r.first() == node || r.last() == node
}

// orientMerge joins a and b so that i and j become adjacent. Orientations that
// keep both routes' direction are tried before reversing ones; the first one
// that keeps every pickup ahead of its dropoff wins.
func orientMerge(a, b *cwRoute, i, j int, nodes []domain.Stop, pickups map[int]int) []int {
	var candidates [][]int
	if a.last() == i && b.first() == j {
		candidates = append(candidates, concat(a.nodes, b.nodes))
	}
	if b.last() == j && a.first() == i {
		candidates = append(candidates, concat(b.nodes, a.nodes))
	}
	if a.last() == i && b.last() == j {
		candidates = append(candidates, concat(a.nodes, reversed(b.nodes)))
	}
	if a.first() == i && b.first() == j {
		candidates = append(candidates, concat(reversed(a.nodes), b.nodes))
	}

	for _, seq := range candidates {
		if precedenceHolds(seq, pickups) {
			return seq
		}
	}
	return nil
}

func precedenceHolds(seq []int, pickups map[int]int) bool {
	pos := make(map[int]int, len(seq))
	for k, n := range seq {
		pos[n] = k
	}
	for k, n := range seq {
		p, ok := pickups[n]
		if !ok {
			continue
		}
		pp, present := pos[p]
		if !present || pp > k {
			return false
		}
	}
	return true
}

func concat(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	return append(append(out, a...), b...)
}

func reversed(s []int) []int {
	out := slices.Clone(s)
	slices.Reverse(out)
	return out
}

// sequenceVehicle turns a vehicle's packed routes into its final Route.
func (o *FleetOptimizer) sequenceVehicle(
	m *DistanceMatrix,
	nodes []domain.Stop,
	pickups map[int]int,
	load vehicleLoad,
	arena []*cwRoute,
	returnToDepot bool,
) (domain.Route, error) {
	route := domain.Route{VehicleID: load.vehicle.ID, Stops: []domain.Stop{}, Legs: []domain.Leg{}}

	var seq []int
	for _, idx := range load.routes {
		seq = append(seq, arena[idx].nodes...)
	}
	if len(seq) == 0 {
		route.IsEmpty = true
		return route, nil
	}

	closeTour := func(s []int) []int {
		full := append([]int{0}, s...)
		if returnToDepot {
			full = append(full, 0)
		}
		return full
	}

	chosen := closeTour(seq)
	chosenDist, _ := m.pathCost(chosen)

	candidates := slices.Clone(seq)
	slices.Sort(candidates)
	if nn, err := nearestNeighborOrder(m, 0, candidates, nodes, pickups, true); err == nil {
		full := closeTour(nn)
		if d, _ := m.pathCost(full); d < chosenDist-tieEpsilonMeters {
			chosen, chosenDist = full, d
		}
	}

	demand := 0
	for _, n := range seq {
		demand += nodes[n].Demand()
	}
	if demand > load.vehicle.PackageCapacity || !precedenceHolds(chosen, pickups) {
		return domain.Route{}, domain.NewError(domain.KindOptimizerFailure, "optimize fleet",
			fmt.Sprintf("vehicle %q route breaks capacity or precedence", load.vehicle.ID))
	}

	route.Legs = buildLegs(m, nodes, chosen)
	for _, n := range chosen {
		if n != 0 {
			route.Stops = append(route.Stops, nodes[n])
		}
	}
	for _, l := range route.Legs {
		route.DistanceMeters += l.DistanceMeters
		route.DurationSeconds += l.DurationSeconds
		route.Geometry = append(route.Geometry, l.Geometry...)
	}

	return route, nil
}

func buildGraph(m *DistanceMatrix, nodes []domain.Stop, routes []domain.Route, unassigned []int) domain.Graph {
	g := domain.Graph{
		Nodes: make([]domain.GraphNode, 0, len(nodes)),
		Edges: []domain.GraphEdge{},
	}
	for i, s := range nodes {
		n := domain.GraphNode{ID: s.ID, Coordinates: s.Coordinates, IsDepot: i == 0}
		if i != 0 {
			n.Type = s.EffectiveType()
		}
		g.Nodes = append(g.Nodes, n)
	}

	for _, r := range routes {
		for _, l := range r.Legs {
			g.Edges = append(g.Edges, domain.GraphEdge{
				From:           l.FromStopID,
				To:             l.ToStopID,
				VehicleID:      r.VehicleID,
				Assigned:       true,
				DistanceMeters: l.DistanceMeters,
			})
		}
	}
	for _, idx := range unassigned {
		g.Edges = append(g.Edges, domain.GraphEdge{
			From:           nodes[0].ID,
			To:             nodes[idx].ID,
			DistanceMeters: m.Distance(0, idx),
		})
	}
	return g
}
