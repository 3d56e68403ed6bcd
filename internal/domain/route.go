package domain

// One travelled segment between two consecutive route nodes.
type Leg struct {
	FromStopID      string        `json:"fromStopId"`
	ToStopID        string        `json:"toStopId"`
	DistanceMeters  float64       `json:"distanceMeters"`
	DurationSeconds float64       `json:"durationSeconds"`
	Geometry        []Coordinates `json:"geometry,omitempty"`
}

// LegKey is the "origin|destination" lookup key for a leg.
func LegKey(from, to string) string { return from + "|" + to }

// Represents the planned route for a single vehicle.
// Stops excludes the depot; the depot is implicitly the first node and,
// when the fleet returns to depot, the last one.
type Route struct {
	VehicleID       string        `json:"vehicleId"`
	Stops           []Stop        `json:"stops"`
	Legs            []Leg         `json:"legs,omitempty"`
	Geometry        []Coordinates `json:"geometry,omitempty"`
	DistanceMeters  float64       `json:"distanceMeters"`
	DurationSeconds float64       `json:"durationSeconds"`
	IsEmpty         bool          `json:"isEmpty"`
}

// Demand sums the package demand of the route.
func (r Route) Demand() int {
	total := 0
	for _, s := range r.Stops {
		total += s.Demand()
	}
	return total
}

// LegIndex maps "from|to" keys to legs for quick lookup.
func (r Route) LegIndex() map[string]Leg {
	out := make(map[string]Leg, len(r.Legs))
	for _, l := range r.Legs {
		out[LegKey(l.FromStopID, l.ToStopID)] = l
	}
	return out
}
