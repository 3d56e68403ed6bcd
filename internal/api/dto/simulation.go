package dto

import (
	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/simulation"
)

type StartSimulationRequest struct {
	Stops                   []domain.Stop       `json:"stops"`
	Fleet                   *domain.FleetConfig `json:"fleet"`
	SimulationSpeed         float64             `json:"simulationSpeed"`
	ServiceSeconds          *int                `json:"serviceSeconds"`
	AutoReoptimizeThreshold *int                `json:"autoReoptimizeThreshold"`
	TicketGenerationEnabled *bool               `json:"ticketGenerationEnabled"`
}

type StartSimulationResponse struct {
	Solution domain.FleetSolution `json:"solution"`
	Snapshot simulation.Snapshot  `json:"snapshot"`
}

type AddTicketRequest struct {
	ID       string              `json:"id"`
	Stop     domain.Stop         `json:"stop"`
	Priority simulation.Priority `json:"priority"`
}

// ControlRequest changes only the fields that are present.
type ControlRequest struct {
	IsRunning               *bool    `json:"isRunning"`
	SimulationSpeed         *float64 `json:"simulationSpeed"`
	TicketGenerationEnabled *bool    `json:"ticketGenerationEnabled"`
	AutoReoptimizeThreshold *int     `json:"autoReoptimizeThreshold"`
}

type ReoptimizeResponse struct {
	AssignedTickets     []string            `json:"assignedTickets"`
	UnassignableTickets []string            `json:"unassignableTickets"`
	VehiclesReplanned   []string            `json:"vehiclesReplanned"`
	Snapshot            simulation.Snapshot `json:"snapshot"`
}
