package distance

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/time/rate"
	"googlemaps.github.io/maps"

	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/platform/obs"
	"fleet-route-service/internal/ports"
)

// GoogleProvider resolves driving distances with the Google Maps Directions API.
type GoogleProvider struct {
	client  *maps.Client
	limiter *rate.Limiter
}

// NewGoogleProvider builds a provider; extra client options (base URL, HTTP
// client) are passed through to the maps client.
func NewGoogleProvider(apiKey string, perSecond float64, burst int, opts ...maps.ClientOption) (*GoogleProvider, error) {
	if apiKey == "" {
		return nil, errors.New("google maps api key is empty")
	}

	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}

	p := &GoogleProvider{client: client}
	if perSecond > 0 {
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	return p, nil
}

func latLng(c domain.Coordinates) string {
	return strconv.FormatFloat(c.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(c.Lng, 'f', 6, 64)
}

func (g *GoogleProvider) GetDistance(ctx context.Context, origin, destination domain.Coordinates) (_ ports.DistanceResult, err error) {
	defer obs.Time(ctx, "google.GetDistance")(&err)

	if origin == destination {
		return ports.DistanceResult{}, nil
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return ports.DistanceResult{}, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	routes, _, err := g.client.Directions(ctx, &maps.DirectionsRequest{
		Origin:      latLng(origin),
		Destination: latLng(destination),
		Mode:        maps.TravelModeDriving,
	})
	if err != nil {
		return ports.DistanceResult{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return ports.DistanceResult{}, errors.New("no route found")
	}

	leg := routes[0].Legs[0]
	res := ports.DistanceResult{
		DistanceMeters:  float64(leg.Distance.Meters),
		DurationSeconds: leg.Duration.Seconds(),
	}

	points, err := routes[0].OverviewPolyline.Decode()
	if err == nil {
		res.Geometry = make([]domain.Coordinates, len(points))
		for i, p := range points {
			res.Geometry[i] = domain.Coordinates{Lat: p.Lat, Lng: p.Lng}
		}
	}

	return res, nil
}
