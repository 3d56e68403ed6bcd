package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service.
	Registry = prometheus.NewRegistry()

	// HTTPRequests is labelled {method, path, status}.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds.
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path"},
	)
	// OperationDuration records timed internal operations (see Time).
	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "operation_duration_seconds", Help: "Duration of internal operations in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"op", "outcome"},
	)
	// Optimizations counts optimizer runs by kind (route, fleet) and outcome.
	Optimizations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "optimizations_total", Help: "Optimizer runs by kind and outcome."},
		[]string{"kind", "outcome"},
	)
	// DistanceFallbacks counts road lookups replaced by haversine estimates.
	DistanceFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "distance_fallbacks_total", Help: "Road distance lookups served by the haversine fallback."},
		[]string{"backend"},
	)
	// Reoptimizations counts reoptimization attempts by outcome.
	Reoptimizations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "reoptimizations_total", Help: "Reoptimization attempts by outcome."},
		[]string{"outcome"},
	)
	// TicketQueueLength tracks the simulation ticket queue.
	TicketQueueLength = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "simulation_ticket_queue_length", Help: "Tickets waiting for reoptimization."},
	)
	// SimulationVehicles tracks simulated vehicles by status.
	SimulationVehicles = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "simulation_vehicles", Help: "Simulated vehicles by status."},
		[]string{"status"},
	)
)

var regOnce sync.Once

// RegisterDefault registers all collectors on Registry. Safe to call more than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(OperationDuration)
		Registry.MustRegister(Optimizations)
		Registry.MustRegister(DistanceFallbacks)
		Registry.MustRegister(Reoptimizations)
		Registry.MustRegister(TicketQueueLength)
		Registry.MustRegister(SimulationVehicles)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
