package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"fleet-route-service/internal/api/dto"
	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/simulation"
)

// Subscriber hands out snapshot feeds; events.Bus implements it.
type Subscriber interface {
	Subscribe() <-chan []byte
	Unsubscribe(<-chan []byte)
}

type SimulationHandler struct {
	Runner       *simulation.Runner
	Planner      FleetPlanner
	DefaultFleet domain.FleetConfig
	// Defaults seeds every new simulation; request fields override it.
	Defaults simulation.Options
	Feed     Subscriber
	// KeepAlive is the SSE comment interval. Zero means 15s.
	KeepAlive time.Duration
}

// Start plans the given stops and restarts the simulation from that plan.
func (h *SimulationHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req dto.StartSimulationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	fleet := h.DefaultFleet
	if req.Fleet != nil {
		fleet = *req.Fleet
	}

	opts := h.Defaults
	if req.SimulationSpeed > 0 {
		opts.SimulationSpeed = req.SimulationSpeed
	}
	if req.ServiceSeconds != nil {
		opts.ServiceDuration = time.Duration(*req.ServiceSeconds) * time.Second
	}
	if req.AutoReoptimizeThreshold != nil {
		opts.AutoReoptimizeThreshold = *req.AutoReoptimizeThreshold
	}
	if req.TicketGenerationEnabled != nil {
		opts.TicketGenerationEnabled = *req.TicketGenerationEnabled
	}

	sol, err := h.Planner.Optimize(r.Context(), req.Stops, fleet)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	h.Runner.Reset(simulation.NewState(*sol, fleet, opts))
	log.Infof("simulation started: vehicles=%d stops=%d", len(fleet.Vehicles), len(req.Stops))

	writeJSON(w, r, http.StatusCreated, dto.StartSimulationResponse{Solution: *sol, Snapshot: h.Runner.Snapshot()})
}

func (h *SimulationHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.Runner.Snapshot())
}

func (h *SimulationHandler) AddTicket(w http.ResponseWriter, r *http.Request) {
	var req dto.AddTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	t, err := h.Runner.AddTicket(simulation.QueuedTicket{ID: req.ID, Stop: req.Stop, Priority: req.Priority})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusAccepted, simulation.TicketSnapshot{
		ID: t.ID, Stop: t.Stop, AddedAtMs: t.AddedAt.Milliseconds(), Priority: t.Priority,
	})
}

func (h *SimulationHandler) Control(w http.ResponseWriter, r *http.Request) {
	var req dto.ControlRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if req.SimulationSpeed != nil {
		if err := h.Runner.SetSpeed(*req.SimulationSpeed); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}
	if req.AutoReoptimizeThreshold != nil {
		if err := h.Runner.SetThreshold(*req.AutoReoptimizeThreshold); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}
	if req.TicketGenerationEnabled != nil {
		h.Runner.SetTicketGeneration(*req.TicketGenerationEnabled)
	}
	if req.IsRunning != nil {
		h.Runner.SetRunning(*req.IsRunning)
	}

	writeJSON(w, r, http.StatusOK, h.Runner.Snapshot())
}

func (h *SimulationHandler) Reoptimize(w http.ResponseWriter, r *http.Request) {
	out, err := h.Runner.Reoptimize(r.Context())
	if errors.Is(err, simulation.ErrReoptimizationInFlight) {
		writeError(w, r, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.ReoptimizeResponse{
		AssignedTickets:     nonNil(out.AssignedTickets),
		UnassignableTickets: nonNil(out.UnassignableTickets),
		VehiclesReplanned:   nonNil(out.VehiclesReplanned),
		Snapshot:            h.Runner.Snapshot(),
	})
}

// Stream pushes every published snapshot as a server-sent event.
func (h *SimulationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok || h.Feed == nil {
		writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	feed := h.Feed.Subscribe()
	defer h.Feed.Unsubscribe(feed)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case payload, ok := <-feed:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
