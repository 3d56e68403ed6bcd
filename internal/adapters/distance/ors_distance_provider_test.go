package distance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-route-service/internal/domain"
)

var (
	depot = domain.Coordinates{Lat: 33.4484, Lng: -112.0740}
	stopA = domain.Coordinates{Lat: 33.4600, Lng: -112.0800}
	stopB = domain.Coordinates{Lat: 33.4700, Lng: -112.0900}
)

func newTestORS(t *testing.T, handler http.HandlerFunc) *ORSProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewORSProvider("test-key",
		WithORSBaseURL(srv.URL),
		WithORSRateLimit(0, 0),
		WithORSBackoff(time.Millisecond),
	)
	require.NoError(t, err)
	return p
}

func TestORSMatrixRow(t *testing.T) {
	p := newTestORS(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/matrix/driving-car", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("Authorization"))

		var req matrixRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []int{0}, req.Sources)
		assert.Equal(t, []int{1, 2}, req.Destinations)
		assert.Equal(t, depot.CoordsToList(), req.Locations[0])

		_, _ = w.Write([]byte(`{"distances":[[1500.4,2500.6]],"durations":[[180,300]]}`))
	})

	row, err := p.GetDistances(context.Background(), depot, []domain.Coordinates{stopA, stopB})
	require.NoError(t, err)
	require.Len(t, row, 2)
	assert.InDelta(t, 1500.4, row[0].DistanceMeters, 1e-9)
	assert.Equal(t, 300.0, row[1].DurationSeconds)
}

func TestORSMatrixNullCellIsError(t *testing.T) {
	p := newTestORS(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"distances":[[null]],"durations":[[null]]}`))
	})

	_, err := p.GetDistances(context.Background(), depot, []domain.Coordinates{stopA})
	assert.Error(t, err)
}

func TestORSDirectionsGeometry(t *testing.T) {
	p := newTestORS(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/directions/driving-car/geojson", r.URL.Path)
		_, _ = w.Write([]byte(`{"features":[{"geometry":{"coordinates":[[-112.074,33.4484],[-112.077,33.455],[-112.08,33.46]]},"properties":{"summary":{"distance":1710.2,"duration":201.5}}}]}`))
	})

	r, err := p.GetDistance(context.Background(), depot, stopA)
	require.NoError(t, err)
	assert.Equal(t, 1710.2, r.DistanceMeters)
	assert.Equal(t, 201.5, r.DurationSeconds)
	require.Len(t, r.Geometry, 3)
	assert.Equal(t, domain.Coordinates{Lat: 33.455, Lng: -112.077}, r.Geometry[1])
	assert.False(t, r.Degraded)
}

func TestORSRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	p := newTestORS(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"distances":[[10]],"durations":[[2]]}`))
	})

	row, err := p.GetDistances(context.Background(), depot, []domain.Coordinates{stopA})
	require.NoError(t, err)
	assert.Equal(t, 10.0, row[0].DistanceMeters)
	assert.Equal(t, int32(3), calls.Load())
}

func TestORSDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	p := newTestORS(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("bad key"))
	})

	_, err := p.GetDistances(context.Background(), depot, []domain.Coordinates{stopA})
	require.Error(t, err)
	var he *httpStatusError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusForbidden, he.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewORSProviderRequiresKey(t *testing.T) {
	_, err := NewORSProvider("")
	assert.Error(t, err)
}
