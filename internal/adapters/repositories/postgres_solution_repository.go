package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/platform/obs"
	"fleet-route-service/internal/ports"
)

// PostgresSolutionRepository stores optimizer output as JSONB keyed by id.
type PostgresSolutionRepository struct {
	DB *sql.DB
}

func NewPostgresSolutionRepository(db *sql.DB) *PostgresSolutionRepository {
	return &PostgresSolutionRepository{DB: db}
}

func (r *PostgresSolutionRepository) SaveSolution(ctx context.Context, id string, sol domain.FleetSolution) (err error) {
	defer obs.Time(ctx, "solutions.Save")(&err)

	if r.DB == nil {
		return errors.New("save solution: db is nil")
	}
	if id == "" {
		return errors.New("save solution: id must not be empty")
	}

	payload, err := json.Marshal(sol)
	if err != nil {
		return fmt.Errorf("save solution: encode: %w", err)
	}

	q := `
	INSERT INTO fleet_solutions (id, solution, vehicles_used, total_distance_meters, degraded)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO UPDATE
	SET solution = EXCLUDED.solution,
		vehicles_used = EXCLUDED.vehicles_used,
		total_distance_meters = EXCLUDED.total_distance_meters,
		degraded = EXCLUDED.degraded;
	`
	if _, err := r.DB.ExecContext(ctx, q, id, payload, sol.VehiclesUsed, sol.TotalDistanceMeters, sol.Degraded); err != nil {
		return fmt.Errorf("save solution id=%q: %w", id, err)
	}
	return nil
}

func (r *PostgresSolutionRepository) GetSolution(ctx context.Context, id string) (_ domain.FleetSolution, err error) {
	defer obs.Time(ctx, "solutions.Get")(&err)

	if r.DB == nil {
		return domain.FleetSolution{}, errors.New("get solution: db is nil")
	}

	var payload []byte
	err = r.DB.QueryRowContext(ctx, `SELECT solution FROM fleet_solutions WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.FleetSolution{}, ports.ErrSolutionNotFound
	}
	if err != nil {
		return domain.FleetSolution{}, fmt.Errorf("get solution id=%q: %w", id, err)
	}

	var sol domain.FleetSolution
	if err := json.Unmarshal(payload, &sol); err != nil {
		return domain.FleetSolution{}, fmt.Errorf("get solution id=%q: decode: %w", id, err)
	}
	return sol, nil
}
