package services

import (
	"context"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"

	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/ports"
)

const (
	defaultWorkers = 5
	// Speed used when a backend error forces an in-place haversine estimate.
	fallbackSpeedKph = 40.0
)

// DistanceMatrix holds pairwise distances and durations between route nodes.
// Index order matches the points slice passed to BuildDistanceMatrix.
type DistanceMatrix struct {
	n         int
	distances *mat.Dense
	durations *mat.Dense
	geometry  map[int][]domain.Coordinates
	degraded  bool
	warnings  []string
}

type matrixRow struct {
	origin   int
	results  []ports.DistanceResult
	failures int
}

func (m *DistanceMatrix) Size() int { return m.n }

func (m *DistanceMatrix) Distance(i, j int) float64 { return m.distances.At(i, j) }

func (m *DistanceMatrix) Duration(i, j int) float64 { return m.durations.At(i, j) }

func (m *DistanceMatrix) Geometry(i, j int) []domain.Coordinates { return m.geometry[i*m.n+j] }

// Degraded reports whether any cell is a haversine estimate standing in for the road backend.
func (m *DistanceMatrix) Degraded() bool { return m.degraded }

func (m *DistanceMatrix) Warnings() []string { return m.warnings }

// BuildDistanceMatrix fills every off-diagonal cell. Rows are fetched in parallel with
// at most workers in flight. A failing lookup never aborts the build: the cell falls back
// to a haversine estimate and the matrix is flagged degraded. Only context cancellation
// returns an error.
func BuildDistanceMatrix(
	ctx context.Context,
	provider ports.DistanceProvider,
	points []domain.Coordinates,
	workers int,
) (*DistanceMatrix, error) {
	n := len(points)
	if n == 0 {
		return nil, domain.NewError(domain.KindOptimizerFailure, "build distance matrix", "no points")
	}
	if workers <= 0 {
		workers = defaultWorkers
	}

	m := &DistanceMatrix{
		n:         n,
		distances: mat.NewDense(n, n, nil),
		durations: mat.NewDense(n, n, nil),
		geometry:  make(map[int][]domain.Coordinates),
	}
	if n == 1 {
		return m, nil
	}

	mp, hasMatrix := provider.(ports.DistanceMatrixProvider)

	sem := make(chan struct{}, workers)
	rowsCh := make(chan matrixRow, n)
	var wg sync.WaitGroup

	for origin := 0; origin < n; origin++ {
		wg.Add(1)
		go func(orig int) {
			sem <- struct{}{}
			defer wg.Done()
			defer func() { <-sem }()

			targets := make([]domain.Coordinates, 0, n-1)
			for j := 0; j < n; j++ {
				if j != orig {
					targets = append(targets, points[j])
				}
			}

			row := matrixRow{origin: orig, results: make([]ports.DistanceResult, len(targets))}

			if hasMatrix {
				res, err := mp.GetDistances(ctx, points[orig], targets)
				if err == nil && len(res) == len(targets) {
					copy(row.results, res)
					rowsCh <- row
					return
				}
				// fall through to per-cell lookups
			}

			for k, t := range targets {
				if ctx.Err() != nil {
					return
				}
				r, err := provider.GetDistance(ctx, points[orig], t)
				if err != nil {
					meters := domain.HaversineMeters(points[orig], t)
					r = ports.DistanceResult{
						DistanceMeters:  meters,
						DurationSeconds: domain.TravelSeconds(meters, fallbackSpeedKph),
						Degraded:        true,
					}
					row.failures++
				}
				row.results[k] = r
			}
			rowsCh <- row
		}(origin)
	}

	wg.Wait()
	close(rowsCh)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("build distance matrix: %w", err)
	}

	failures := 0
	degradedCells := 0
	for row := range rowsCh {
		k := 0
		for j := 0; j < n; j++ {
			if j == row.origin {
				continue
			}
			r := row.results[k]
			k++
			m.distances.Set(row.origin, j, r.DistanceMeters)
			m.durations.Set(row.origin, j, r.DurationSeconds)
			if len(r.Geometry) > 0 {
				m.geometry[row.origin*n+j] = r.Geometry
			}
			if r.Degraded {
				degradedCells++
			}
		}
		failures += row.failures
	}

	if degradedCells > 0 {
		m.degraded = true
		m.warnings = append(m.warnings, fmt.Sprintf(
			"%s: road distance unavailable for %d of %d pairs; using haversine estimates",
			domain.KindServiceDegraded, degradedCells, n*(n-1)))
	}
	if failures > 0 {
		m.warnings = append(m.warnings, fmt.Sprintf("distance lookups failed for %d pairs", failures))
	}

	return m, nil
}

// pathCost sums distance and duration along the node sequence.
func (m *DistanceMatrix) pathCost(seq []int) (meters, seconds float64) {
	for i := 1; i < len(seq); i++ {
		meters += m.Distance(seq[i-1], seq[i])
		seconds += m.Duration(seq[i-1], seq[i])
	}
	return meters, seconds
}
