package simulation

import (
	"slices"
	"time"

	"fleet-route-service/internal/domain"
)

// VehicleStatus follows IDLE → WAITING → EN_ROUTE → SERVICING → EN_ROUTE … →
// RETURNING → COMPLETED, with RETURNING skipped when the fleet does not go
// back to the depot. A WAITING vehicle whose stops were all handed to
// another vehicle stays WAITING with an empty plan until new stops arrive.
type VehicleStatus string

const (
	StatusIdle      VehicleStatus = "IDLE"
	StatusWaiting   VehicleStatus = "WAITING"
	StatusEnRoute   VehicleStatus = "EN_ROUTE"
	StatusServicing VehicleStatus = "SERVICING"
	StatusReturning VehicleStatus = "RETURNING"
	StatusCompleted VehicleStatus = "COMPLETED"
)

var AllStatuses = []VehicleStatus{
	StatusIdle, StatusWaiting, StatusEnRoute, StatusServicing, StatusReturning, StatusCompleted,
}

type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityUrgent Priority = "urgent"
)

// QueuedTicket is a stop waiting to be merged into the running plan.
// AddedAt is simulation time, not wall time.
type QueuedTicket struct {
	ID       string
	Stop     domain.Stop
	AddedAt  time.Duration
	Priority Priority
}

// segment is the leg a vehicle is currently driving.
type segment struct {
	FromID   string
	ToID     string
	From     domain.Coordinates
	To       domain.Coordinates
	Geometry []domain.Coordinates
	Duration time.Duration
	Elapsed  time.Duration
}

type SimulatedVehicle struct {
	ID               string
	Vehicle          domain.Vehicle
	Position         domain.Coordinates
	Status           VehicleStatus
	AssignedRoute    domain.Route
	CompletedStops   []domain.Stop
	RemainingStops   []domain.Stop
	EstimatedArrival time.Duration
	ServiceRemaining time.Duration

	segment segment
}

// Load is the number of packages picked up but not yet dropped off.
func (v SimulatedVehicle) Load() int {
	done := make(map[string]bool, len(v.CompletedStops))
	for _, s := range v.CompletedStops {
		done[s.ID] = true
	}
	load := 0
	for _, s := range v.RemainingStops {
		if s.IsDropoff() && done[s.PairedStopID] {
			load += s.PackageCount
		}
	}
	return load
}

// Target is the stop the vehicle is driving to, if any.
func (v SimulatedVehicle) Target() string {
	if v.Status == StatusEnRoute || v.Status == StatusReturning {
		return v.segment.ToID
	}
	return ""
}

func (v SimulatedVehicle) clone() SimulatedVehicle {
	c := v
	c.AssignedRoute.Stops = slices.Clone(v.AssignedRoute.Stops)
	c.AssignedRoute.Legs = slices.Clone(v.AssignedRoute.Legs)
	c.AssignedRoute.Geometry = slices.Clone(v.AssignedRoute.Geometry)
	c.CompletedStops = slices.Clone(v.CompletedStops)
	c.RemainingStops = slices.Clone(v.RemainingStops)
	c.segment.Geometry = slices.Clone(v.segment.Geometry)
	return c
}

// State is the whole simulated fleet. It is a value: every operation in this
// package returns a new State and leaves its input untouched.
type State struct {
	Vehicles                []SimulatedVehicle
	TicketQueue             []QueuedTicket
	CurrentTime             time.Duration
	IsRunning               bool
	SimulationSpeed         float64
	TicketGenerationEnabled bool
	AutoReoptimizeThreshold int

	Depot           domain.Stop
	ReturnToDepot   bool
	ServiceDuration time.Duration
	SpeedKph        float64
}

func (s State) Clone() State {
	c := s
	c.Vehicles = make([]SimulatedVehicle, len(s.Vehicles))
	for i, v := range s.Vehicles {
		c.Vehicles[i] = v.clone()
	}
	c.TicketQueue = slices.Clone(s.TicketQueue)
	return c
}

// Vehicle returns the index of the vehicle with id, or -1.
func (s State) Vehicle(id string) int {
	for i, v := range s.Vehicles {
		if v.ID == id {
			return i
		}
	}
	return -1
}

// StatusCounts tallies vehicles per status, including zero counts.
func (s State) StatusCounts() map[VehicleStatus]int {
	out := make(map[VehicleStatus]int, len(AllStatuses))
	for _, st := range AllStatuses {
		out[st] = 0
	}
	for _, v := range s.Vehicles {
		out[v.Status]++
	}
	return out
}
