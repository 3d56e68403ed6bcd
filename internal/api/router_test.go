package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-route-service/internal/adapters/distance"
	"fleet-route-service/internal/adapters/events"
	"fleet-route-service/internal/adapters/repositories"
	"fleet-route-service/internal/api/dto"
	"fleet-route-service/internal/api/handlers"
	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/platform/logger"
	"fleet-route-service/internal/platform/obs"
	"fleet-route-service/internal/services"
	"fleet-route-service/internal/simulation"
)

var testFleet = domain.FleetConfig{
	Depot:         domain.Stop{ID: "depot", Coordinates: domain.Coordinates{Lat: 52.52, Lng: 13.40}},
	ReturnToDepot: true,
	Vehicles: []domain.Vehicle{
		{ID: "van-1", PackageCapacity: 8},
		{ID: "van-2", PackageCapacity: 6},
	},
}

func stop(id string, lat, lng float64, packages int) domain.Stop {
	return domain.Stop{ID: id, Coordinates: domain.Coordinates{Lat: lat, Lng: lng}, Type: domain.StopTypeDelivery, PackageCount: packages}
}

var testStops = []domain.Stop{
	stop("s1", 52.53, 13.41, 2),
	stop("s2", 52.51, 13.39, 2),
	stop("s3", 52.54, 13.42, 1),
	stop("s4", 52.50, 13.43, 3),
}

type testServer struct {
	*httptest.Server
	runner *simulation.Runner
	bus    *events.Bus
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithPlanner(t, nil)
}

// newTestServerWithPlanner uses planner for simulation reoptimizations, or the
// real fleet optimizer when planner is nil.
func newTestServerWithPlanner(t *testing.T, planner simulation.Planner) *testServer {
	t.Helper()
	SetLogger(logger.NopLogger{})
	handlers.SetLogger(logger.NopLogger{})
	obs.RegisterDefault()

	provider := distance.NewHaversineProvider(40)
	fleetOpt := services.NewFleetOptimizer(provider)
	if planner == nil {
		planner = fleetOpt
	}
	bus := events.NewBus(8)
	runner := simulation.NewRunner(
		simulation.NewState(domain.FleetSolution{}, testFleet, simulation.Options{}),
		simulation.NewEngine(planner, nil),
		simulation.WithPublishers(bus),
	)

	srv := httptest.NewServer(NewRouter(Deps{
		Routes:       services.NewRouteOptimizer(provider),
		Fleet:        fleetOpt,
		Solutions:    repositories.NewMemorySolutionRepository(),
		Runner:       runner,
		Stream:       bus,
		DefaultFleet: testFleet,
		Metrics:      services.DefaultMetricsConfig(),
	}))
	t.Cleanup(func() {
		srv.Close()
		runner.Wait()
		bus.Close()
	})
	return &testServer{Server: srv, runner: runner, bus: bus}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(res.Body)
	require.NoError(t, err)
	return res, out.Bytes()
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	res, body := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
	assert.NotEmpty(t, res.Header.Get("X-Request-ID"))

	res, _ = s.do(t, http.MethodPost, "/health", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func TestValidateRoute(t *testing.T) {
	s := newTestServer(t)
	pickup := domain.Stop{ID: "p", Coordinates: domain.Coordinates{Lat: 1, Lng: 1}, Type: domain.StopTypePickup, PackageCount: 1}
	dropoff := domain.Stop{ID: "d", Coordinates: domain.Coordinates{Lat: 2, Lng: 2}, Type: domain.StopTypeDropoff, PairedStopID: "p", PackageCount: 1}

	res, body := s.do(t, http.MethodPost, "/routes/validate", dto.ValidateRouteRequest{Stops: []domain.Stop{dropoff, pickup}})
	require.Equal(t, http.StatusOK, res.StatusCode)

	var got services.ValidationResult
	require.NoError(t, json.Unmarshal(body, &got))
	assert.False(t, got.Valid)
	require.Len(t, got.Violations, 1)
	assert.Equal(t, services.ViolationOrder, got.Violations[0].Type)
}

func TestOptimizeRoute(t *testing.T) {
	s := newTestServer(t)

	res, body := s.do(t, http.MethodPost, "/routes/optimize", dto.OptimizeRouteRequest{
		Stops:       testStops,
		Start:       &testFleet.Depot,
		IsRoundTrip: true,
	})
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))

	var got dto.OptimizeRouteResponse
	require.NoError(t, json.Unmarshal(body, &got))
	require.NotNil(t, got.Route)
	assert.Len(t, got.Route.Stops, 4)
	assert.Len(t, got.Route.Legs, 5, "round trip closes at the start")
	assert.GreaterOrEqual(t, got.Comparison.DistanceSavedMeters, 0.0)
	require.Len(t, got.Progress, 3)
	assert.Equal(t, 100, got.Progress[2].Percent)
}

func TestOptimizeRouteErrors(t *testing.T) {
	s := newTestServer(t)

	res, body := s.do(t, http.MethodPost, "/routes/optimize", map[string]any{"stops": testStops, "bogus": true})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode, string(body))

	dropoff := domain.Stop{ID: "d", Coordinates: domain.Coordinates{Lat: 2, Lng: 2}, Type: domain.StopTypeDropoff, PairedStopID: "missing", PackageCount: 1}
	res, body = s.do(t, http.MethodPost, "/routes/optimize", dto.OptimizeRouteRequest{
		Stops:             []domain.Stop{testStops[0], dropoff},
		EnforcePrecedence: true,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Contains(t, string(body), string(domain.KindPrecedenceViolation))
}

func TestOptimizeFleetAndFetchSolution(t *testing.T) {
	s := newTestServer(t)

	res, body := s.do(t, http.MethodPost, "/fleet/optimize", dto.OptimizeFleetRequest{Stops: testStops})
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))

	var got dto.FleetSolutionResponse
	require.NoError(t, json.Unmarshal(body, &got))
	require.NotEmpty(t, got.ID)
	assert.Len(t, got.Solution.Routes, 2)
	assert.Empty(t, got.Solution.Unassigned)

	res, body = s.do(t, http.MethodGet, "/fleet/solutions/"+got.ID, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var fetched dto.FleetSolutionResponse
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, got.Solution.TotalDistanceMeters, fetched.Solution.TotalDistanceMeters)

	res, _ = s.do(t, http.MethodGet, "/fleet/solutions/nope", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, body = s.do(t, http.MethodPost, "/fleet/optimize", dto.OptimizeFleetRequest{Stops: testStops[:1]})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Contains(t, string(body), string(domain.KindValidation))
}

func TestSimulationLifecycle(t *testing.T) {
	s := newTestServer(t)

	threshold := 0
	res, body := s.do(t, http.MethodPost, "/simulation", dto.StartSimulationRequest{
		Stops:                   testStops,
		AutoReoptimizeThreshold: &threshold,
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(body))

	var started dto.StartSimulationResponse
	require.NoError(t, json.Unmarshal(body, &started))
	require.Len(t, started.Snapshot.Vehicles, 2)
	for _, v := range started.Snapshot.Vehicles {
		assert.Contains(t, []simulation.VehicleStatus{simulation.StatusWaiting, simulation.StatusIdle}, v.Status)
	}

	s.runner.Step(context.Background(), time.Minute)

	for i, st := range []domain.Stop{stop("", 52.525, 13.405, 1), stop("", 52.515, 13.395, 1)} {
		res, body = s.do(t, http.MethodPost, "/simulation/tickets", dto.AddTicketRequest{Stop: st, Priority: simulation.PriorityUrgent})
		require.Equal(t, http.StatusAccepted, res.StatusCode, "ticket %d: %s", i, body)
	}

	res, body = s.do(t, http.MethodGet, "/simulation", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var snap simulation.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Len(t, snap.TicketQueue, 2)
	assert.Equal(t, int64(60000), snap.CurrentTimeMs)

	res, body = s.do(t, http.MethodPost, "/simulation/reoptimize", nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	var reopt dto.ReoptimizeResponse
	require.NoError(t, json.Unmarshal(body, &reopt))
	assert.Len(t, reopt.AssignedTickets, 2)
	assert.Empty(t, reopt.Snapshot.TicketQueue)
	assert.True(t, reopt.Snapshot.IsRunning)

	running, speed := false, 3.0
	res, body = s.do(t, http.MethodPost, "/simulation/control", dto.ControlRequest{IsRunning: &running, SimulationSpeed: &speed})
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.False(t, snap.IsRunning)
	assert.Equal(t, 3.0, snap.SimulationSpeed)

	bad := -1.0
	res, _ = s.do(t, http.MethodPost, "/simulation/control", dto.ControlRequest{SimulationSpeed: &bad})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, _ = s.do(t, http.MethodPost, "/simulation/tickets", dto.AddTicketRequest{Stop: stop("x", 123, 0, 1)})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

type failingPlanner struct{}

func (failingPlanner) Optimize(context.Context, []domain.Stop, domain.FleetConfig) (*domain.FleetSolution, error) {
	return nil, domain.NewError(domain.KindOptimizerFailure, "optimize fleet", "solver unavailable")
}

func TestSimulationReoptimizeFailureIsConflict(t *testing.T) {
	s := newTestServerWithPlanner(t, failingPlanner{})

	res, body := s.do(t, http.MethodPost, "/simulation/reoptimize", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode, "nothing to plan is not an error: %s", body)

	_, err := s.runner.AddTicket(simulation.QueuedTicket{Stop: stop("lonely", 52.52, 13.41, 1)})
	require.NoError(t, err)
	res, body = s.do(t, http.MethodPost, "/simulation/reoptimize", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode, "a lone ticket is placed without the planner: %s", body)
	assert.Empty(t, s.runner.State().TicketQueue)

	for _, id := range []string{"second", "third"} {
		_, err = s.runner.AddTicket(simulation.QueuedTicket{Stop: stop(id, 52.51, 13.40, 1)})
		require.NoError(t, err)
	}
	res, body = s.do(t, http.MethodPost, "/simulation/reoptimize", nil)
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Contains(t, string(body), string(domain.KindReoptimizationFailure))
	assert.Len(t, s.runner.State().TicketQueue, 2)
}

func TestSimulationStream(t *testing.T) {
	s := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL+"/simulation/stream", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return s.bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	s.runner.Step(context.Background(), time.Second)

	reader := bufio.NewReader(res.Body)
	var data string
	for data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(strings.TrimSpace(line), "data: ")
		}
	}

	var snap simulation.Snapshot
	require.NoError(t, json.Unmarshal([]byte(data), &snap))
	assert.Equal(t, int64(1000), snap.CurrentTimeMs)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/health", nil)

	res, body := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), `http_requests_total{method="GET",path="GET /health",status="200"}`)
}
