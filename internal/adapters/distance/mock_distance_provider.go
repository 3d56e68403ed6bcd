package distance

import (
	"context"
	"fmt"
	"sync/atomic"

	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/ports"
)

// MockPair is one directed entry. A reverse lookup falls back to the same pair.
type MockPair struct {
	From, To domain.Coordinates
	Meters   float64
	Seconds  float64
}

type MockDistanceProvider struct {
	m     map[string]ports.DistanceResult
	calls atomic.Int64
}

func NewMockDistanceProvider(pairs []MockPair) *MockDistanceProvider {
	m := make(map[string]ports.DistanceResult, len(pairs))
	for _, p := range pairs {
		m[domain.LegKey(p.From.Key(), p.To.Key())] = ports.DistanceResult{DistanceMeters: p.Meters, DurationSeconds: p.Seconds}
	}
	return &MockDistanceProvider{m: m}
}

func (p *MockDistanceProvider) GetDistance(ctx context.Context, origin, destination domain.Coordinates) (ports.DistanceResult, error) {
	p.calls.Add(1)
	if r, ok := p.m[domain.LegKey(origin.Key(), destination.Key())]; ok {
		return r, nil
	}
	if r, ok := p.m[domain.LegKey(destination.Key(), origin.Key())]; ok {
		return r, nil
	}
	return ports.DistanceResult{}, fmt.Errorf("missing pair %s -> %s", origin, destination)
}

// Calls is the number of GetDistance invocations so far.
func (p *MockDistanceProvider) Calls() int { return int(p.calls.Load()) }
