package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleet-route-service/internal/api/handlers"
	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/platform/obs"
	"fleet-route-service/internal/ports"
	"fleet-route-service/internal/services"
	"fleet-route-service/internal/simulation"
)

// Deps are the collaborators the HTTP layer needs. Solutions and Stream may
// be nil.
type Deps struct {
	Routes       handlers.RoutePlanner
	Fleet        handlers.FleetPlanner
	Solutions    ports.SolutionRepository
	Runner       *simulation.Runner
	Stream       handlers.Subscriber
	DefaultFleet domain.FleetConfig
	SimDefaults  simulation.Options
	Metrics      services.MetricsConfig
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	routeHandler := &handlers.RouteHandler{Planner: d.Routes, Metrics: d.Metrics}
	fleetHandler := &handlers.FleetHandler{
		Planner:      d.Fleet,
		Solutions:    d.Solutions,
		DefaultFleet: d.DefaultFleet,
	}
	simHandler := &handlers.SimulationHandler{
		Runner:       d.Runner,
		Planner:      d.Fleet,
		DefaultFleet: d.DefaultFleet,
		Defaults:     d.SimDefaults,
		Feed:         d.Stream,
	}

	mux.HandleFunc("GET /health", handlers.Health)

	mux.HandleFunc("POST /routes/validate", routeHandler.Validate)
	mux.HandleFunc("POST /routes/optimize", routeHandler.Optimize)

	mux.HandleFunc("POST /fleet/optimize", fleetHandler.Optimize)
	mux.HandleFunc("GET /fleet/solutions/{id}", fleetHandler.GetSolution)

	mux.HandleFunc("POST /simulation", simHandler.Start)
	mux.HandleFunc("GET /simulation", simHandler.Get)
	mux.HandleFunc("POST /simulation/tickets", simHandler.AddTicket)
	mux.HandleFunc("POST /simulation/control", simHandler.Control)
	mux.HandleFunc("POST /simulation/reoptimize", simHandler.Reoptimize)
	mux.HandleFunc("GET /simulation/stream", simHandler.Stream)

	mux.Handle("GET /metrics", promhttp.HandlerFor(obs.Registry, promhttp.HandlerOpts{}))

	return requestID(loggingMiddleware(mux))
}
