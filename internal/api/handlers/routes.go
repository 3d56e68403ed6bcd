package handlers

import (
	"context"
	"net/http"

	"fleet-route-service/internal/api/dto"
	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/ports"
	"fleet-route-service/internal/services"
)

// RoutePlanner sequences the stops of one vehicle.
type RoutePlanner interface {
	Optimize(ctx context.Context, stops []domain.Stop, opts services.RouteOptions) (*services.OptimizedRoute, error)
}

type RouteHandler struct {
	Planner RoutePlanner
	Metrics services.MetricsConfig
}

// Validate reports pickup/dropoff violations in the given stop order.
func (h *RouteHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req dto.ValidateRouteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, r, http.StatusOK, services.ValidatePrecedence(req.Stops))
}

func (h *RouteHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	var req dto.OptimizeRouteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var progress []ports.Progress
	route, err := h.Planner.Optimize(r.Context(), req.Stops, services.RouteOptions{
		Start:             req.Start,
		IsRoundTrip:       req.IsRoundTrip,
		EnforcePrecedence: req.EnforcePrecedence,
		Progress:          func(p ports.Progress) { progress = append(progress, p) },
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	res := dto.OptimizeRouteResponse{
		Route: route,
		Comparison: services.CompareRoutes(
			route.OriginalDistanceMeters, route.OriginalDurationSeconds,
			route.DistanceMeters, route.DurationSeconds, h.Metrics,
		),
		Progress: progress,
	}
	writeJSON(w, r, http.StatusOK, res)
}
