package services

import (
	"fmt"

	"fleet-route-service/internal/domain"
)

type ViolationType string

const (
	ViolationMissingPair ViolationType = "MISSING_PAIR"
	ViolationOrder       ViolationType = "ORDER_VIOLATION"
)

type Violation struct {
	Type         ViolationType `json:"type"`
	StopID       string        `json:"stopId"`
	PairedStopID string        `json:"pairedStopId,omitempty"`
	Message      string        `json:"message"`
}

type ValidationResult struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations"`
}

// ValidatePrecedence checks pickup/dropoff pairing on a stop sequence as given.
// It does not reorder or mutate the input.
func ValidatePrecedence(stops []domain.Stop) ValidationResult {
	position := make(map[string]int, len(stops))
	for i, s := range stops {
		if _, seen := position[s.ID]; !seen {
			position[s.ID] = i
		}
	}

	violations := []Violation{}
	for i, s := range stops {
		if !s.IsDropoff() {
			continue
		}

		j, ok := position[s.PairedStopID]
		if s.PairedStopID == "" || !ok || !stops[j].IsPickup() {
			violations = append(violations, Violation{
				Type:         ViolationMissingPair,
				StopID:       s.ID,
				PairedStopID: s.PairedStopID,
				Message:      fmt.Sprintf("dropoff %q references no pickup (pairedStopId=%q)", s.ID, s.PairedStopID),
			})
			continue
		}

		if j > i {
			violations = append(violations, Violation{
				Type:         ViolationOrder,
				StopID:       s.ID,
				PairedStopID: s.PairedStopID,
				Message:      fmt.Sprintf("dropoff %q at position %d precedes pickup %q at position %d", s.ID, i, s.PairedStopID, j),
			})
		}
	}

	return ValidationResult{Valid: len(violations) == 0, Violations: violations}
}

// missingPairs reports only pairing violations; used where order does not matter yet.
func missingPairs(op string, stops []domain.Stop) error {
	for _, v := range ValidatePrecedence(stops).Violations {
		if v.Type == ViolationMissingPair {
			return domain.NewError(domain.KindPrecedenceViolation, op, v.Message)
		}
	}
	return nil
}

// validateStops checks per-stop invariants shared by both optimizers.
func validateStops(op string, stops []domain.Stop) error {
	seen := make(map[string]struct{}, len(stops))
	for i, s := range stops {
		if s.ID == "" {
			return domain.NewError(domain.KindValidation, op, fmt.Sprintf("stop at index %d has empty id", i))
		}
		if _, ok := seen[s.ID]; ok {
			return domain.NewError(domain.KindValidation, op, fmt.Sprintf("duplicate stop id %q", s.ID))
		}
		seen[s.ID] = struct{}{}

		if !s.Coordinates.Valid() {
			return domain.NewError(domain.KindValidation, op, fmt.Sprintf("stop %q coordinates out of range", s.ID))
		}
		if !s.EffectiveType().Valid() {
			return domain.NewError(domain.KindValidation, op, fmt.Sprintf("stop %q has unknown type %q", s.ID, s.Type))
		}
		if s.PackageCount < 0 {
			return domain.NewError(domain.KindValidation, op, fmt.Sprintf("stop %q package count must be >= 0", s.ID))
		}
	}
	return nil
}
