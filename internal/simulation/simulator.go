package simulation

import (
	"math"
	"time"

	"github.com/google/uuid"

	"fleet-route-service/internal/domain"
)

const DefaultSpeedKph = 40.0

type Options struct {
	SimulationSpeed         float64
	ServiceDuration         time.Duration
	SpeedKph                float64
	AutoReoptimizeThreshold int
	TicketGenerationEnabled bool
}

// NewState seeds a simulation from an optimized plan. Every vehicle starts at
// the depot; vehicles with stops wait for departure, the rest are idle.
func NewState(sol domain.FleetSolution, fleet domain.FleetConfig, opts Options) State {
	if opts.SimulationSpeed <= 0 {
		opts.SimulationSpeed = 1
	}
	if opts.ServiceDuration < 0 {
		opts.ServiceDuration = 0
	}
	if opts.SpeedKph <= 0 {
		opts.SpeedKph = DefaultSpeedKph
	}

	s := State{
		Vehicles:                make([]SimulatedVehicle, 0, len(fleet.Vehicles)),
		TicketQueue:             []QueuedTicket{},
		IsRunning:               true,
		SimulationSpeed:         opts.SimulationSpeed,
		TicketGenerationEnabled: opts.TicketGenerationEnabled,
		AutoReoptimizeThreshold: opts.AutoReoptimizeThreshold,
		Depot:                   fleet.Depot,
		ReturnToDepot:           fleet.ReturnToDepot,
		ServiceDuration:         opts.ServiceDuration,
		SpeedKph:                opts.SpeedKph,
	}

	for _, v := range fleet.Vehicles {
		route, ok := sol.RouteFor(v.ID)
		if !ok {
			route = domain.Route{VehicleID: v.ID, IsEmpty: true}
		}
		sv := SimulatedVehicle{
			ID:             v.ID,
			Vehicle:        v,
			Position:       fleet.Depot.Coordinates,
			Status:         StatusIdle,
			AssignedRoute:  route,
			CompletedStops: []domain.Stop{},
			RemainingStops: append([]domain.Stop{}, route.Stops...),
		}
		if len(sv.RemainingStops) > 0 {
			sv.Status = StatusWaiting
		}
		s.Vehicles = append(s.Vehicles, sv.clone())
	}

	return s
}

// Advance moves the simulation forward by delta of wall time, scaled by the
// simulation speed. Nothing moves while the simulation is paused.
//
// Each vehicle spends the elapsed time walking its state machine: a tick can
// finish a leg, the dwell at the stop and part of the next leg.
func Advance(s State, delta time.Duration) State {
	next := s.Clone()
	if !next.IsRunning || delta <= 0 {
		return next
	}

	step := time.Duration(float64(delta) * next.SimulationSpeed)
	next.CurrentTime += step

	for i := range next.Vehicles {
		advanceVehicle(&next, &next.Vehicles[i], step)
		v := &next.Vehicles[i]
		switch v.Status {
		case StatusEnRoute, StatusReturning:
			v.EstimatedArrival = next.CurrentTime + (v.segment.Duration - v.segment.Elapsed)
		case StatusServicing:
			v.EstimatedArrival = next.CurrentTime
		default:
			v.EstimatedArrival = 0
		}
	}

	return next
}

func advanceVehicle(s *State, v *SimulatedVehicle, budget time.Duration) {
	for {
		switch v.Status {
		case StatusWaiting:
			if len(v.RemainingStops) == 0 {
				return
			}
			startSegment(s, v, lastStopID(s, v), v.Position, v.RemainingStops[0])
			v.Status = StatusEnRoute

		case StatusEnRoute, StatusReturning:
			left := v.segment.Duration - v.segment.Elapsed
			if budget < left {
				v.segment.Elapsed += budget
				v.Position = positionOnSegment(v.segment)
				return
			}
			budget -= left
			v.segment.Elapsed = v.segment.Duration
			v.Position = v.segment.To

			if v.Status == StatusReturning {
				v.Status = StatusCompleted
				v.segment = segment{}
				return
			}

			v.CompletedStops = append(v.CompletedStops, v.RemainingStops[0])
			v.RemainingStops = v.RemainingStops[1:]
			v.Status = StatusServicing
			v.ServiceRemaining = s.ServiceDuration

		case StatusServicing:
			if budget < v.ServiceRemaining {
				v.ServiceRemaining -= budget
				return
			}
			budget -= v.ServiceRemaining
			v.ServiceRemaining = 0
			departFromStop(s, v)

		default:
			return
		}
	}
}

// departFromStop picks the state after a finished dwell.
func departFromStop(s *State, v *SimulatedVehicle) {
	from := lastStopID(s, v)
	switch {
	case len(v.RemainingStops) > 0:
		startSegment(s, v, from, v.Position, v.RemainingStops[0])
		v.Status = StatusEnRoute
	case s.ReturnToDepot:
		startSegment(s, v, from, v.Position, s.Depot)
		v.Status = StatusReturning
	default:
		v.Status = StatusCompleted
		v.segment = segment{}
	}
}

func lastStopID(s *State, v *SimulatedVehicle) string {
	if n := len(v.CompletedStops); n > 0 {
		return v.CompletedStops[n-1].ID
	}
	return s.Depot.ID
}

// startSegment begins a leg toward to. The planned leg is used when the vehicle
// is leaving a known node; otherwise the duration is a haversine estimate.
func startSegment(s *State, v *SimulatedVehicle, fromID string, from domain.Coordinates, to domain.Stop) {
	seg := segment{FromID: fromID, ToID: to.ID, From: from, To: to.Coordinates}

	if fromID != "" {
		if leg, ok := v.AssignedRoute.LegIndex()[domain.LegKey(fromID, to.ID)]; ok && leg.DurationSeconds > 0 {
			seg.Duration = time.Duration(leg.DurationSeconds * float64(time.Second))
			seg.Geometry = leg.Geometry
		}
	}
	if seg.Duration == 0 {
		meters := domain.HaversineMeters(from, to.Coordinates)
		seg.Duration = time.Duration(domain.TravelSeconds(meters, s.SpeedKph) * float64(time.Second))
	}

	v.segment = seg
}

func positionOnSegment(seg segment) domain.Coordinates {
	if seg.Duration <= 0 {
		return seg.To
	}
	t := math.Max(0, math.Min(1, float64(seg.Elapsed)/float64(seg.Duration)))
	if len(seg.Geometry) >= 2 {
		return domain.InterpolatePath(seg.Geometry, t)
	}
	return domain.Interpolate(seg.From, seg.To, t)
}

// AddTicketToQueue appends a ticket, preserving arrival order. A missing id or
// priority is filled in.
func AddTicketToQueue(s State, t QueuedTicket) State {
	next := s.Clone()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Priority == "" {
		t.Priority = PriorityNormal
	}
	t.AddedAt = next.CurrentTime
	next.TicketQueue = append(next.TicketQueue, t)
	return next
}

// ShouldReoptimize reports whether enough tickets are queued. A threshold of
// zero or less disables automatic reoptimization.
func ShouldReoptimize(s State) bool {
	return s.AutoReoptimizeThreshold > 0 && len(s.TicketQueue) >= s.AutoReoptimizeThreshold
}
