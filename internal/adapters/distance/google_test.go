package distance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

func TestGoogleProviderDirections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "33.448400,-112.074000", r.URL.Query().Get("origin"))
		assert.Equal(t, "driving", r.URL.Query().Get("mode"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"routes": [{
				"overview_polyline": {"points": "_p~iF~ps|U_ulLnnqC_mqNvxq` + "`" + `@"},
				"legs": [{
					"distance": {"text": "1.7 km", "value": 1710},
					"duration": {"text": "4 mins", "value": 240}
				}]
			}]
		}`))
	}))
	defer srv.Close()

	g, err := NewGoogleProvider("AIza-test-key", 0, 0, maps.WithBaseURL(srv.URL))
	require.NoError(t, err)

	r, err := g.GetDistance(context.Background(), depot, stopA)
	require.NoError(t, err)
	assert.Equal(t, 1710.0, r.DistanceMeters)
	assert.Equal(t, 240.0, r.DurationSeconds)
	require.Len(t, r.Geometry, 3)
	assert.InDelta(t, 38.5, r.Geometry[0].Lat, 1e-6)
	assert.InDelta(t, -120.2, r.Geometry[0].Lng, 1e-6)
}

func TestGoogleProviderNoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "ZERO_RESULTS", "routes": []}`))
	}))
	defer srv.Close()

	g, err := NewGoogleProvider("AIza-test-key", 5, 1, maps.WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = g.GetDistance(context.Background(), depot, stopB)
	assert.Error(t, err)
}
