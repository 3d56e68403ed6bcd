package dto

import "fleet-route-service/internal/domain"

// OptimizeFleetRequest falls back to the configured fleet when Fleet is nil.
type OptimizeFleetRequest struct {
	Stops []domain.Stop       `json:"stops"`
	Fleet *domain.FleetConfig `json:"fleet"`
}

type FleetSolutionResponse struct {
	ID       string               `json:"id,omitempty"`
	Solution domain.FleetSolution `json:"solution"`
}
