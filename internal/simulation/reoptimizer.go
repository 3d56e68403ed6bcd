package simulation

import (
	"context"
	"fmt"
	"slices"

	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/platform/logger"
	"fleet-route-service/internal/platform/obs"
)

// Planner solves a fleet problem; services.FleetOptimizer satisfies it.
type Planner interface {
	Optimize(ctx context.Context, stops []domain.Stop, fleet domain.FleetConfig) (*domain.FleetSolution, error)
}

// Outcome describes a successful reoptimization.
type Outcome struct {
	AssignedTickets     []string
	UnassignableTickets []string
	VehiclesReplanned   []string
	Solution            *domain.FleetSolution
}

type Engine struct {
	planner Planner
	log     logger.Logger
}

func NewEngine(planner Planner, log logger.Logger) *Engine {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Engine{planner: planner, log: log}
}

// Reoptimize replans the unvisited work of every active vehicle together with
// the queued tickets and merges the result into a copy of s.
//
// Stops a vehicle is already committed to stay at the head of its suffix: the
// stop it is driving to and the dropoffs of packages it carries. Everything
// else is handed to the planner, which sees each vehicle with the capacity
// left after its committed stops. Completed stops are never touched.
//
// On error the returned state is s with IsRunning set, nothing else changes.
func (e *Engine) Reoptimize(ctx context.Context, s State) (next State, out Outcome, err error) {
	defer obs.Time(ctx, "simulation.Reoptimize")(&err)
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		obs.Reoptimizations.WithLabelValues(result).Inc()
	}()

	fail := func(err error) (State, Outcome, error) {
		prior := s.Clone()
		prior.IsRunning = true
		return prior, Outcome{}, domain.WrapError(domain.KindReoptimizationFailure, "reoptimize", err)
	}

	problem := buildProblem(s)
	if len(problem.stops) == 0 {
		next = s.Clone()
		next.IsRunning = true
		return next, Outcome{}, nil
	}

	var sol *domain.FleetSolution
	if len(problem.stops) == 1 {
		sol = placeLoneStop(problem, s.SpeedKph)
	} else {
		sol, err = e.planner.Optimize(ctx, problem.stops, problem.fleet)
		if err != nil {
			return fail(err)
		}
	}

	for _, u := range sol.Unassigned {
		if !problem.ticketStop[u.StopID] {
			return fail(fmt.Errorf("planned stop %q could not be reassigned: %s", u.StopID, u.Reason))
		}
	}

	next = s.Clone()
	for _, id := range problem.included {
		i := next.Vehicle(id)
		route, _ := sol.RouteFor(id)
		mergeSuffix(&next.Vehicles[i], problem.pinned[id], route)
		out.VehiclesReplanned = append(out.VehiclesReplanned, id)
	}

	queue := make([]QueuedTicket, 0, len(next.TicketQueue))
	for _, t := range next.TicketQueue {
		if sol.IsUnassigned(t.Stop.ID) {
			queue = append(queue, t)
			out.UnassignableTickets = append(out.UnassignableTickets, t.ID)
			continue
		}
		out.AssignedTickets = append(out.AssignedTickets, t.ID)
	}
	next.TicketQueue = queue
	next.IsRunning = true
	out.Solution = sol

	e.log.Infof("reoptimized %d vehicles: %d tickets assigned, %d left queued",
		len(out.VehiclesReplanned), len(out.AssignedTickets), len(out.UnassignableTickets))

	return next, out, nil
}

type reducedProblem struct {
	stops      []domain.Stop
	fleet      domain.FleetConfig
	included   []string
	pinned     map[string][]domain.Stop
	ticketStop map[string]bool
}

func buildProblem(s State) reducedProblem {
	p := reducedProblem{
		fleet:      domain.FleetConfig{Depot: s.Depot, ReturnToDepot: s.ReturnToDepot},
		pinned:     map[string][]domain.Stop{},
		ticketStop: map[string]bool{},
	}

	for _, v := range s.Vehicles {
		if v.Status == StatusReturning || v.Status == StatusCompleted {
			continue
		}
		pinned := committedStops(v)
		p.included = append(p.included, v.ID)
		p.pinned[v.ID] = pinned

		residual := v.Vehicle
		residual.PackageCapacity -= v.Load()
		for _, st := range pinned {
			residual.PackageCapacity -= st.Demand()
		}
		if residual.PackageCapacity > 0 {
			p.fleet.Vehicles = append(p.fleet.Vehicles, residual)
		}

		for _, st := range v.RemainingStops {
			if !containsStop(pinned, st.ID) {
				p.stops = append(p.stops, st)
			}
		}
	}

	// Urgent tickets first so deterministic tie-breaks favour them.
	urgent := func(t QueuedTicket) bool { return t.Priority == PriorityUrgent }
	for _, pass := range []bool{true, false} {
		for _, t := range s.TicketQueue {
			if urgent(t) == pass {
				p.stops = append(p.stops, t.Stop)
				p.ticketStop[t.Stop.ID] = true
			}
		}
	}

	return p
}

// committedStops returns the unvisited stops a vehicle cannot hand over: the
// stop it is driving to (with its dropoff, when it is a pickup) and the
// dropoffs of packages already on board. Order follows the current plan.
func committedStops(v SimulatedVehicle) []domain.Stop {
	keep := map[string]bool{}
	if v.Status == StatusEnRoute && len(v.RemainingStops) > 0 {
		target := v.RemainingStops[0]
		keep[target.ID] = true
		if target.IsPickup() {
			for _, st := range v.RemainingStops {
				if st.IsDropoff() && st.PairedStopID == target.ID {
					keep[st.ID] = true
				}
			}
		}
	}
	for _, c := range v.CompletedStops {
		if !c.IsPickup() {
			continue
		}
		for _, st := range v.RemainingStops {
			if st.IsDropoff() && st.PairedStopID == c.ID {
				keep[st.ID] = true
			}
		}
	}

	var out []domain.Stop
	for _, st := range v.RemainingStops {
		if keep[st.ID] {
			out = append(out, st)
		}
	}
	return out
}

// placeLoneStop solves a one-stop problem without the planner, which needs at
// least two stops. The stop goes to the vehicle with the most residual
// capacity, earliest in fleet order on ties.
func placeLoneStop(p reducedProblem, speedKph float64) *domain.FleetSolution {
	st := p.stops[0]
	best := -1
	for i, v := range p.fleet.Vehicles {
		if best == -1 || v.PackageCapacity > p.fleet.Vehicles[best].PackageCapacity {
			best = i
		}
	}

	sol := &domain.FleetSolution{}
	if best == -1 || st.Demand() > p.fleet.Vehicles[best].PackageCapacity {
		sol.Unassigned = []domain.UnassignedStop{{StopID: st.ID, Reason: domain.ReasonNoCapacityLeft}}
		return sol
	}

	meters := domain.HaversineMeters(p.fleet.Depot.Coordinates, st.Coordinates)
	if p.fleet.ReturnToDepot {
		meters *= 2
	}
	for i, v := range p.fleet.Vehicles {
		r := domain.Route{VehicleID: v.ID, IsEmpty: true}
		if i == best {
			r = domain.Route{
				VehicleID:       v.ID,
				Stops:           []domain.Stop{st},
				DistanceMeters:  meters,
				DurationSeconds: domain.TravelSeconds(meters, speedKph),
			}
			sol.TotalDistanceMeters = r.DistanceMeters
			sol.TotalDurationSeconds = r.DurationSeconds
		}
		sol.Routes = append(sol.Routes, r)
	}
	sol.VehiclesUsed = 1
	return sol
}

func containsStop(stops []domain.Stop, id string) bool {
	return slices.ContainsFunc(stops, func(s domain.Stop) bool { return s.ID == id })
}

// mergeSuffix swaps the unvisited part of v's plan for pinned followed by the
// planner's route. The prefix of completed stops is kept as is.
func mergeSuffix(v *SimulatedVehicle, pinned []domain.Stop, route domain.Route) {
	suffix := make([]domain.Stop, 0, len(pinned)+len(route.Stops))
	suffix = append(suffix, pinned...)
	suffix = append(suffix, route.Stops...)

	legs := slices.Clone(v.AssignedRoute.Legs)
	known := v.AssignedRoute.LegIndex()
	for _, l := range route.Legs {
		if _, ok := known[domain.LegKey(l.FromStopID, l.ToStopID)]; !ok {
			legs = append(legs, l)
		}
	}

	v.RemainingStops = suffix
	v.AssignedRoute = domain.Route{
		VehicleID:       v.ID,
		Stops:           append(slices.Clone(v.CompletedStops), suffix...),
		Legs:            legs,
		Geometry:        route.Geometry,
		DistanceMeters:  route.DistanceMeters,
		DurationSeconds: route.DurationSeconds,
		IsEmpty:         len(v.CompletedStops)+len(suffix) == 0,
	}

	// A waiting vehicle that loses its stops stays WAITING until new work
	// arrives; IDLE is only ever left, never re-entered.
	if v.Status == StatusIdle && len(suffix) > 0 {
		v.Status = StatusWaiting
	}
}
