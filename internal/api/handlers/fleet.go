package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"fleet-route-service/internal/api/dto"
	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/ports"
)

// FleetPlanner assigns stops to a fleet.
type FleetPlanner interface {
	Optimize(ctx context.Context, stops []domain.Stop, fleet domain.FleetConfig) (*domain.FleetSolution, error)
}

type FleetHandler struct {
	Planner FleetPlanner
	// Solutions is optional; without it solutions are not kept.
	Solutions    ports.SolutionRepository
	DefaultFleet domain.FleetConfig
}

func (h *FleetHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	var req dto.OptimizeFleetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	fleet := h.DefaultFleet
	if req.Fleet != nil {
		fleet = *req.Fleet
	}

	sol, err := h.Planner.Optimize(r.Context(), req.Stops, fleet)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	res := dto.FleetSolutionResponse{Solution: *sol}
	if h.Solutions != nil {
		id := uuid.NewString()
		if err := h.Solutions.SaveSolution(r.Context(), id, *sol); err != nil {
			log.Warnf("save solution %s: %v", id, err)
		} else {
			res.ID = id
		}
	}

	writeJSON(w, r, http.StatusOK, res)
}

func (h *FleetHandler) GetSolution(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if h.Solutions == nil {
		writeError(w, r, http.StatusNotFound, "solution not found")
		return
	}

	sol, err := h.Solutions.GetSolution(r.Context(), id)
	if errors.Is(err, ports.ErrSolutionNotFound) {
		writeError(w, r, http.StatusNotFound, "solution not found")
		return
	}
	if err != nil {
		log.Errorf("get solution %s: %v", id, err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, r, http.StatusOK, dto.FleetSolutionResponse{ID: id, Solution: sol})
}
