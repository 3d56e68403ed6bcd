package ports

import (
	"context"
	"errors"
	"fleet-route-service/internal/domain"
)

var ErrSolutionNotFound = errors.New("solution not found")

// Port: a boundary for storing optimizer output outside the core.
type SolutionRepository interface {
	SaveSolution(ctx context.Context, id string, sol domain.FleetSolution) error
	GetSolution(ctx context.Context, id string) (domain.FleetSolution, error)
}
