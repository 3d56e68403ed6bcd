package simulation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-route-service/internal/adapters/distance"
	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/services"
)

func haversinePlanner() Planner {
	return services.NewFleetOptimizer(distance.NewHaversineProvider(40))
}

type plannerFunc func(ctx context.Context, stops []domain.Stop, fleet domain.FleetConfig) (*domain.FleetSolution, error)

func (f plannerFunc) Optimize(ctx context.Context, stops []domain.Stop, fleet domain.FleetConfig) (*domain.FleetSolution, error) {
	return f(ctx, stops, fleet)
}

// plannedFleet plans four deliveries on two vehicles that have not left yet.
func plannedFleet(t *testing.T) State {
	t.Helper()
	stops := []domain.Stop{
		delivery("a", 0.01, 0, 2),
		delivery("b", 0.02, 0, 2),
		delivery("c", 0, 0.01, 2),
		delivery("d", 0, 0.02, 2),
	}
	fleet := domain.FleetConfig{
		Depot:         depot,
		ReturnToDepot: true,
		Vehicles: []domain.Vehicle{
			{ID: "v1", PackageCapacity: 6},
			{ID: "v2", PackageCapacity: 6},
		},
	}
	sol, err := haversinePlanner().Optimize(context.Background(), stops, fleet)
	require.NoError(t, err)
	require.Empty(t, sol.Unassigned)

	return NewState(*sol, fleet, Options{ServiceDuration: 30 * time.Second, AutoReoptimizeThreshold: 3})
}

// runningFleet is plannedFleet three simulated minutes in, mid-route.
func runningFleet(t *testing.T) State {
	t.Helper()
	return Advance(plannedFleet(t), 3*time.Minute)
}

func TestReoptimizeDrainsAssignedTickets(t *testing.T) {
	s := runningFleet(t)
	before := s.Clone()

	s = AddTicketToQueue(s, QueuedTicket{ID: "t1", Stop: delivery("x1", 0.015, 0.005, 1)})
	s = AddTicketToQueue(s, QueuedTicket{ID: "t2", Stop: delivery("x2", -0.01, 0, 1)})
	assert.False(t, ShouldReoptimize(s))
	s = AddTicketToQueue(s, QueuedTicket{ID: "t3", Stop: delivery("x3", 0, -0.01, 20)})
	require.True(t, ShouldReoptimize(s))
	s.IsRunning = false

	next, out, err := NewEngine(haversinePlanner(), nil).Reoptimize(context.Background(), s)
	require.NoError(t, err)

	assert.True(t, next.IsRunning, "simulation resumes after reoptimization")
	require.Len(t, next.TicketQueue, 1, "only the unassignable ticket stays queued")
	assert.Equal(t, "t3", next.TicketQueue[0].ID)
	assert.ElementsMatch(t, []string{"t1", "t2"}, out.AssignedTickets)
	assert.Equal(t, []string{"t3"}, out.UnassignableTickets)

	seen := map[string]int{}
	for i, v := range next.Vehicles {
		prior := before.Vehicles[i]
		assert.Equal(t, prior.CompletedStops, v.CompletedStops, "completed stops of %s unchanged", v.ID)
		assert.Equal(t, prior.Position, v.Position)

		demand := 0
		for _, st := range v.RemainingStops {
			demand += st.Demand()
		}
		assert.LessOrEqual(t, demand+v.Load(), v.Vehicle.PackageCapacity, "vehicle %s over capacity", v.ID)
		assert.Equal(t, append(stopIDs(v.CompletedStops), stopIDs(v.RemainingStops)...), stopIDs(v.AssignedRoute.Stops))

		if v.Status == StatusEnRoute {
			assert.Equal(t, prior.RemainingStops[0].ID, v.RemainingStops[0].ID, "vehicle %s keeps its current target", v.ID)
		}
		for _, st := range append(v.CompletedStops, v.RemainingStops...) {
			seen[st.ID]++
		}
	}
	for _, id := range []string{"a", "b", "c", "d", "x1", "x2"} {
		assert.Equal(t, 1, seen[id], "stop %s planned exactly once", id)
	}
	assert.Zero(t, seen["x3"])
}

func TestReoptimizeFailureIsANoOp(t *testing.T) {
	s := runningFleet(t)
	s = AddTicketToQueue(s, QueuedTicket{ID: "t1", Stop: delivery("x1", 0.015, 0.005, 1)})
	s.IsRunning = false
	before := s.Clone()

	boom := plannerFunc(func(context.Context, []domain.Stop, domain.FleetConfig) (*domain.FleetSolution, error) {
		return nil, domain.NewError(domain.KindOptimizerFailure, "optimize fleet", "boom")
	})
	next, _, err := NewEngine(boom, nil).Reoptimize(context.Background(), s)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrReoptimizationFailure))
	assert.True(t, next.IsRunning)
	next.IsRunning = false
	assert.Equal(t, before, next, "state is untouched apart from resuming")
	assert.False(t, s.IsRunning, "input is not mutated")
}

func TestReoptimizeRejectsDroppedPlannedStops(t *testing.T) {
	s := plannedFleet(t)
	s = AddTicketToQueue(s, QueuedTicket{ID: "t1", Stop: delivery("x1", 0.015, 0.005, 1)})
	const planned = "a"

	dropping := plannerFunc(func(ctx context.Context, stops []domain.Stop, fleet domain.FleetConfig) (*domain.FleetSolution, error) {
		sol, err := haversinePlanner().Optimize(ctx, stops, fleet)
		if err != nil {
			return nil, err
		}
		sol.Unassigned = append(sol.Unassigned, domain.UnassignedStop{StopID: planned, Reason: domain.ReasonNoCapacityLeft})
		return sol, nil
	})
	next, _, err := NewEngine(dropping, nil).Reoptimize(context.Background(), s)

	require.ErrorIs(t, err, domain.ErrReoptimizationFailure)
	assert.Len(t, next.TicketQueue, 1)
	for i, v := range next.Vehicles {
		assert.Equal(t, s.Vehicles[i].RemainingStops, v.RemainingStops)
	}
}

func TestReoptimizeWithNothingToPlan(t *testing.T) {
	sol, fleet := oneStopPlan(true)
	s := NewState(sol, fleet, Options{})
	s = Advance(s, time.Second)
	s.IsRunning = false

	calls := 0
	counting := plannerFunc(func(context.Context, []domain.Stop, domain.FleetConfig) (*domain.FleetSolution, error) {
		calls++
		return &domain.FleetSolution{}, nil
	})
	next, _, err := NewEngine(counting, nil).Reoptimize(context.Background(), s)

	require.NoError(t, err)
	assert.Zero(t, calls, "the only stop is the current target, nothing is handed to the planner")
	assert.True(t, next.IsRunning)
}

func TestReoptimizePlacesALoneTicket(t *testing.T) {
	sol, fleet := oneStopPlan(true)
	s := NewState(sol, fleet, Options{AutoReoptimizeThreshold: 1})
	s = Advance(s, 10*time.Minute)
	require.Equal(t, StatusCompleted, s.Vehicles[0].Status)
	require.Equal(t, StatusIdle, s.Vehicles[1].Status)

	calls := 0
	counting := plannerFunc(func(context.Context, []domain.Stop, domain.FleetConfig) (*domain.FleetSolution, error) {
		calls++
		return nil, errors.New("unexpected planner call")
	})
	engine := NewEngine(counting, nil)

	fits := AddTicketToQueue(s, QueuedTicket{ID: "t1", Stop: delivery("x1", 0.01, 0.01, 2)})
	require.True(t, ShouldReoptimize(fits))
	next, out, err := engine.Reoptimize(context.Background(), fits)
	require.NoError(t, err)
	assert.Zero(t, calls)
	assert.Empty(t, next.TicketQueue)
	assert.Equal(t, []string{"t1"}, out.AssignedTickets)
	assert.Equal(t, []string{"x1"}, stopIDs(next.Vehicles[1].RemainingStops))
	assert.Equal(t, StatusWaiting, next.Vehicles[1].Status)
	assert.Equal(t, StatusCompleted, next.Vehicles[0].Status, "completed vehicles are left alone")

	next = Advance(next, time.Second)
	assert.Equal(t, StatusEnRoute, next.Vehicles[1].Status)

	tooBig := AddTicketToQueue(s, QueuedTicket{ID: "t2", Stop: delivery("x2", 0.01, 0.01, 9)})
	next, out, err = engine.Reoptimize(context.Background(), tooBig)
	require.NoError(t, err)
	assert.Zero(t, calls)
	assert.Equal(t, []string{"t2"}, out.UnassignableTickets)
	require.Len(t, next.TicketQueue, 1)
	assert.Empty(t, next.Vehicles[1].RemainingStops)
}

func TestPlaceLoneStopPrefersSpareCapacityThenFleetOrder(t *testing.T) {
	p := reducedProblem{
		stops: []domain.Stop{delivery("x", 0.01, 0, 3)},
		fleet: domain.FleetConfig{Depot: depot, Vehicles: []domain.Vehicle{
			{ID: "v10", PackageCapacity: 2},
			{ID: "v2", PackageCapacity: 4},
			{ID: "v1", PackageCapacity: 4},
		}},
	}
	sol := placeLoneStop(p, DefaultSpeedKph)
	require.Empty(t, sol.Unassigned)
	require.Len(t, sol.Routes, 3)
	route, ok := sol.RouteFor("v2")
	require.True(t, ok)
	assert.Equal(t, []string{"x"}, stopIDs(route.Stops))
	assert.Greater(t, route.DistanceMeters, 0.0)
	assert.Equal(t, 1, sol.VehiclesUsed)
}

func TestMergeSuffixKeepsWaitingVehicleWaiting(t *testing.T) {
	v := SimulatedVehicle{ID: "v1", Status: StatusWaiting, RemainingStops: []domain.Stop{delivery("a", 0.01, 0, 1)}}
	mergeSuffix(&v, nil, domain.Route{VehicleID: "v1", IsEmpty: true})
	assert.Empty(t, v.RemainingStops)
	assert.Equal(t, StatusWaiting, v.Status)

	idle := SimulatedVehicle{ID: "v2", Status: StatusIdle}
	mergeSuffix(&idle, nil, domain.Route{VehicleID: "v2", Stops: []domain.Stop{delivery("b", 0, 0.01, 1)}})
	assert.Equal(t, StatusWaiting, idle.Status)
}

func TestCommittedStops(t *testing.T) {
	p1 := domain.Stop{ID: "p1", Type: domain.StopTypePickup, PackageCount: 2}
	d1 := domain.Stop{ID: "d1", Type: domain.StopTypeDropoff, PairedStopID: "p1", PackageCount: 2}
	p2 := domain.Stop{ID: "p2", Type: domain.StopTypePickup, PackageCount: 1}
	d2 := domain.Stop{ID: "d2", Type: domain.StopTypeDropoff, PairedStopID: "p2", PackageCount: 1}
	x := delivery("x", 0, 0, 1)

	enRoute := SimulatedVehicle{Status: StatusEnRoute, RemainingStops: []domain.Stop{p2, x, d2}, CompletedStops: []domain.Stop{p1}}
	enRoute.RemainingStops = append(enRoute.RemainingStops, d1)
	assert.Equal(t, []string{"p2", "d2", "d1"}, stopIDs(committedStops(enRoute)))

	servicing := SimulatedVehicle{Status: StatusServicing, CompletedStops: []domain.Stop{p1}, RemainingStops: []domain.Stop{x, d1}}
	assert.Equal(t, []string{"d1"}, stopIDs(committedStops(servicing)))

	waiting := SimulatedVehicle{Status: StatusWaiting, RemainingStops: []domain.Stop{p2, d2}}
	assert.Empty(t, committedStops(waiting))
}

func TestBuildProblem(t *testing.T) {
	p1 := domain.Stop{ID: "p1", Type: domain.StopTypePickup, PackageCount: 2}
	d1 := domain.Stop{ID: "d1", Type: domain.StopTypeDropoff, PairedStopID: "p1", PackageCount: 2}

	s := State{
		Depot: depot,
		Vehicles: []SimulatedVehicle{
			{ID: "v1", Vehicle: domain.Vehicle{ID: "v1", PackageCapacity: 5}, Status: StatusServicing,
				CompletedStops: []domain.Stop{p1}, RemainingStops: []domain.Stop{d1, delivery("a", 0, 0.01, 1)}},
			{ID: "v2", Vehicle: domain.Vehicle{ID: "v2", PackageCapacity: 2}, Status: StatusEnRoute,
				RemainingStops: []domain.Stop{delivery("b", 0.01, 0, 2)}},
			{ID: "v3", Vehicle: domain.Vehicle{ID: "v3", PackageCapacity: 4}, Status: StatusReturning},
		},
		TicketQueue: []QueuedTicket{
			{ID: "t1", Stop: delivery("n1", 0.02, 0, 1), Priority: PriorityNormal},
			{ID: "t2", Stop: delivery("u1", 0.03, 0, 1), Priority: PriorityUrgent},
			{ID: "t3", Stop: delivery("n2", 0.04, 0, 1)},
		},
	}

	p := buildProblem(s)
	assert.Equal(t, []string{"v1", "v2"}, p.included, "returning vehicles keep their plan")
	assert.Equal(t, []string{"a", "u1", "n1", "n2"}, stopIDs(p.stops), "urgent tickets ahead of normal ones")
	require.Len(t, p.fleet.Vehicles, 1, "v2 has no capacity left after its target")
	assert.Equal(t, "v1", p.fleet.Vehicles[0].ID)
	assert.Equal(t, 3, p.fleet.Vehicles[0].PackageCapacity, "on-board packages reduce capacity")
	assert.Equal(t, []string{"d1"}, stopIDs(p.pinned["v1"]))
	assert.Equal(t, []string{"b"}, stopIDs(p.pinned["v2"]))
	assert.True(t, p.ticketStop["u1"])
	assert.False(t, p.ticketStop["a"])
}
