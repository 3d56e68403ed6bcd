package distance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/platform/logger"
	"fleet-route-service/internal/platform/obs"
	"fleet-route-service/internal/ports"
)

const (
	defaultORSBaseURL = "https://api.openrouteservice.org"
	defaultORSProfile = "driving-car"
)

// ORSProvider implements DistanceMatrixProvider using OpenRouteService.
//
// Single pairs go through the directions endpoint so the result carries road
// geometry; batched rows go through the matrix endpoint. Requests share one
// rate limiter owned by the provider. Safe for concurrent use.
type ORSProvider struct {
	session        *http.Client
	apiKey         string
	baseURL        string
	profile        string
	limiter        *rate.Limiter
	initialBackoff time.Duration
	log            logger.Logger
}

type ORSOption func(*ORSProvider)

func WithORSBaseURL(u string) ORSOption { return func(o *ORSProvider) { o.baseURL = u } }

func WithORSProfile(p string) ORSOption { return func(o *ORSProvider) { o.profile = p } }

// WithORSRateLimit caps outgoing requests; perSecond <= 0 disables limiting.
func WithORSRateLimit(perSecond float64, burst int) ORSOption {
	return func(o *ORSProvider) {
		if perSecond <= 0 {
			o.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func WithORSHTTPClient(c *http.Client) ORSOption { return func(o *ORSProvider) { o.session = c } }

func WithORSBackoff(d time.Duration) ORSOption { return func(o *ORSProvider) { o.initialBackoff = d } }

func WithORSLogger(l logger.Logger) ORSOption { return func(o *ORSProvider) { o.log = l } }

func NewORSProvider(apiKey string, opts ...ORSOption) (*ORSProvider, error) {
	if apiKey == "" {
		return nil, errors.New("ORS api key is empty")
	}

	provider := &ORSProvider{
		session:        &http.Client{Timeout: 10 * time.Second},
		apiKey:         apiKey,
		baseURL:        defaultORSBaseURL,
		profile:        defaultORSProfile,
		limiter:        rate.NewLimiter(rate.Limit(5), 5),
		initialBackoff: 200 * time.Millisecond,
		log:            logger.NopLogger{},
	}
	for _, opt := range opts {
		opt(provider)
	}

	return provider, nil
}

// GetDistance returns the road distance, duration and geometry for one pair.
func (o *ORSProvider) GetDistance(
	ctx context.Context,
	origin domain.Coordinates,
	destination domain.Coordinates,
) (_ ports.DistanceResult, err error) {
	defer obs.Time(ctx, "ors.GetDistance")(&err)

	if !origin.Valid() || !destination.Valid() {
		return ports.DistanceResult{}, errors.New("get ORS distance: coordinates out of range")
	}
	if origin == destination {
		return ports.DistanceResult{}, nil
	}

	r, err := o.fetchDirections(ctx, origin, destination)
	if err != nil {
		return ports.DistanceResult{}, fmt.Errorf("get ORS distance %s -> %s: %w", origin, destination, err)
	}
	return r, nil
}

// GetDistances computes one matrix row from origin to every destination, in order.
func (o *ORSProvider) GetDistances(
	ctx context.Context,
	origin domain.Coordinates,
	destinations []domain.Coordinates,
) (_ []ports.DistanceResult, err error) {
	defer obs.Time(ctx, "ors.GetDistances")(&err)

	if len(destinations) == 0 {
		return []ports.DistanceResult{}, nil
	}

	row, err := o.fetchMatrixRow(ctx, origin, destinations)
	if err != nil {
		return nil, fmt.Errorf("fetching matrix row: %w", err)
	}
	return row, nil
}
