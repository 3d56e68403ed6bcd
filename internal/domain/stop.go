package domain

// StopType classifies what happens at a stop.
type StopType string

const (
	StopTypeDelivery StopType = "delivery"
	StopTypePickup   StopType = "pickup"
	StopTypeDropoff  StopType = "dropoff"
)

func (t StopType) Valid() bool {
	switch t {
	case StopTypeDelivery, StopTypePickup, StopTypeDropoff:
		return true
	}
	return false
}

// Represents a single location a vehicle has to visit.
// A dropoff references its pickup through PairedStopID; the pickup must be
// visited first and by the same vehicle.
type Stop struct {
	ID           string      `json:"id" yaml:"id"`
	Address      string      `json:"address,omitempty" yaml:"address"`
	Coordinates  Coordinates `json:"coordinates" yaml:"coordinates"`
	Zone         string      `json:"zone,omitempty" yaml:"zone"`
	Type         StopType    `json:"stopType" yaml:"stopType"`
	PairedStopID string      `json:"pairedStopId,omitempty" yaml:"pairedStopId"`
	PackageCount int         `json:"packageCount" yaml:"packageCount"`
	Notes        string      `json:"notes,omitempty" yaml:"notes"`
}

// Demand is the number of packages the stop occupies on a vehicle.
// A dropoff carries the packages loaded at its pickup, so only the pickup counts.
func (s Stop) Demand() int {
	if s.Type == StopTypeDropoff {
		return 0
	}
	if s.PackageCount < 0 {
		return 0
	}
	return s.PackageCount
}

// EffectiveType treats an empty type as a plain delivery.
func (s Stop) EffectiveType() StopType {
	if s.Type == "" {
		return StopTypeDelivery
	}
	return s.Type
}

func (s Stop) IsDropoff() bool { return s.Type == StopTypeDropoff }

func (s Stop) IsPickup() bool { return s.Type == StopTypePickup }
