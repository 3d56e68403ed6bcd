package domain

import "fmt"

// Delivery vehicle with a package capacity.
type Vehicle struct {
	ID              string `json:"id" yaml:"id"`
	Label           string `json:"label,omitempty" yaml:"label"`
	Color           string `json:"color,omitempty" yaml:"color"`
	PackageCapacity int    `json:"packageCapacity" yaml:"packageCapacity"`
	VehicleTypeID   string `json:"vehicleTypeId,omitempty" yaml:"vehicleTypeId"`
}

// Fleet and depot used for one optimization call.
type FleetConfig struct {
	Vehicles      []Vehicle `json:"vehicles" yaml:"vehicles"`
	Depot         Stop      `json:"depot" yaml:"depot"`
	ReturnToDepot bool      `json:"returnToDepot" yaml:"returnToDepot"`
}

// Validate checks the fleet-level invariants.
func (f FleetConfig) Validate() error {
	if len(f.Vehicles) == 0 {
		return NewError(KindValidation, "fleet config", "at least one vehicle is required")
	}

	seen := make(map[string]struct{}, len(f.Vehicles))
	for i, v := range f.Vehicles {
		if v.ID == "" {
			return NewError(KindValidation, "fleet config", fmt.Sprintf("vehicle at index %d has empty id", i))
		}
		if _, ok := seen[v.ID]; ok {
			return NewError(KindValidation, "fleet config", fmt.Sprintf("duplicate vehicle id %q", v.ID))
		}
		seen[v.ID] = struct{}{}

		if v.PackageCapacity <= 0 {
			return NewError(KindValidation, "fleet config", fmt.Sprintf("vehicle %q capacity must be > 0 (capacity=%d)", v.ID, v.PackageCapacity))
		}
	}

	if !f.Depot.Coordinates.Valid() {
		return NewError(KindValidation, "fleet config", "depot coordinates out of range")
	}

	return nil
}

// MaxCapacity returns the largest package capacity in the fleet.
func (f FleetConfig) MaxCapacity() int {
	largest := 0
	for _, v := range f.Vehicles {
		if v.PackageCapacity > largest {
			largest = v.PackageCapacity
		}
	}
	return largest
}
