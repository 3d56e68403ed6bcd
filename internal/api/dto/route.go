package dto

import (
	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/ports"
	"fleet-route-service/internal/services"
)

type ValidateRouteRequest struct {
	Stops []domain.Stop `json:"stops"`
}

type OptimizeRouteRequest struct {
	Stops             []domain.Stop `json:"stops"`
	Start             *domain.Stop  `json:"start"`
	IsRoundTrip       bool          `json:"isRoundTrip"`
	EnforcePrecedence bool          `json:"enforcePrecedence"`
}

type OptimizeRouteResponse struct {
	Route      *services.OptimizedRoute `json:"route"`
	Comparison services.RouteComparison `json:"comparison"`
	Progress   []ports.Progress         `json:"progress"`
}
