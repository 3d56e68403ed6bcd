package simulation

import (
	"time"

	"fleet-route-service/internal/domain"
)

type VehicleSnapshot struct {
	ID                 string             `json:"id"`
	Label              string             `json:"label,omitempty"`
	Color              string             `json:"color,omitempty"`
	Position           domain.Coordinates `json:"position"`
	Status             VehicleStatus      `json:"status"`
	NextStopID         string             `json:"nextStopId,omitempty"`
	CompletedStops     []string           `json:"completedStops"`
	RemainingStops     []string           `json:"remainingStops"`
	EstimatedArrivalMs int64              `json:"estimatedArrivalMs,omitempty"`
	Load               int                `json:"load"`
	Capacity           int                `json:"capacity"`
}

type TicketSnapshot struct {
	ID        string      `json:"id"`
	Stop      domain.Stop `json:"stop"`
	AddedAtMs int64       `json:"addedAtMs"`
	Priority  Priority    `json:"priority"`
}

// Snapshot is the observer-facing view of a State. Times are milliseconds of
// simulation time.
type Snapshot struct {
	CurrentTimeMs           int64             `json:"currentTimeMs"`
	IsRunning               bool              `json:"isRunning"`
	Reoptimizing            bool              `json:"reoptimizing"`
	SimulationSpeed         float64           `json:"simulationSpeed"`
	TicketGenerationEnabled bool              `json:"ticketGenerationEnabled"`
	AutoReoptimizeThreshold int               `json:"autoReoptimizeThreshold"`
	Vehicles                []VehicleSnapshot `json:"vehicles"`
	TicketQueue             []TicketSnapshot  `json:"ticketQueue"`
}

func NewSnapshot(s State, reoptimizing bool) Snapshot {
	snap := Snapshot{
		CurrentTimeMs:           ms(s.CurrentTime),
		IsRunning:               s.IsRunning,
		Reoptimizing:            reoptimizing,
		SimulationSpeed:         s.SimulationSpeed,
		TicketGenerationEnabled: s.TicketGenerationEnabled,
		AutoReoptimizeThreshold: s.AutoReoptimizeThreshold,
		Vehicles:                make([]VehicleSnapshot, 0, len(s.Vehicles)),
		TicketQueue:             make([]TicketSnapshot, 0, len(s.TicketQueue)),
	}

	for _, v := range s.Vehicles {
		vs := VehicleSnapshot{
			ID:                 v.ID,
			Label:              v.Vehicle.Label,
			Color:              v.Vehicle.Color,
			Position:           v.Position,
			Status:             v.Status,
			NextStopID:         v.Target(),
			CompletedStops:     stopIDs(v.CompletedStops),
			RemainingStops:     stopIDs(v.RemainingStops),
			EstimatedArrivalMs: ms(v.EstimatedArrival),
			Load:               v.Load(),
			Capacity:           v.Vehicle.PackageCapacity,
		}
		snap.Vehicles = append(snap.Vehicles, vs)
	}
	for _, t := range s.TicketQueue {
		snap.TicketQueue = append(snap.TicketQueue, TicketSnapshot{
			ID: t.ID, Stop: t.Stop, AddedAtMs: ms(t.AddedAt), Priority: t.Priority,
		})
	}

	return snap
}

func ms(d time.Duration) int64 { return d.Milliseconds() }

func stopIDs(stops []domain.Stop) []string {
	out := make([]string, len(stops))
	for i, s := range stops {
		out[i] = s.ID
	}
	return out
}
