package repositories

import (
	"context"
	"sync"

	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/ports"
)

// MemorySolutionRepository keeps solutions in process; used when no database is configured.
type MemorySolutionRepository struct {
	mu        sync.RWMutex
	solutions map[string]domain.FleetSolution
}

func NewMemorySolutionRepository() *MemorySolutionRepository {
	return &MemorySolutionRepository{solutions: make(map[string]domain.FleetSolution)}
}

func (r *MemorySolutionRepository) SaveSolution(_ context.Context, id string, sol domain.FleetSolution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.solutions[id] = sol
	return nil
}

func (r *MemorySolutionRepository) GetSolution(_ context.Context, id string) (domain.FleetSolution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sol, ok := r.solutions[id]
	if !ok {
		return domain.FleetSolution{}, ports.ErrSolutionNotFound
	}
	return sol, nil
}
