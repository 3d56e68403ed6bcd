package domain

// Reasons a stop could not be placed on any route.
const (
	ReasonUnassignableStop = "UNASSIGNABLE_STOP"
	ReasonNoCapacityLeft   = "NO_CAPACITY_LEFT"
)

type UnassignedStop struct {
	StopID string `json:"stopId"`
	Reason string `json:"reason"`
}

type GraphNode struct {
	ID          string      `json:"id"`
	Coordinates Coordinates `json:"coordinates"`
	IsDepot     bool        `json:"isDepot"`
	Type        StopType    `json:"stopType,omitempty"`
}

type GraphEdge struct {
	From           string  `json:"from"`
	To             string  `json:"to"`
	VehicleID      string  `json:"vehicleId,omitempty"`
	Assigned       bool    `json:"assigned"`
	DistanceMeters float64 `json:"distanceMeters"`
}

// Graph is a visualization of the solution: depot plus stops as nodes,
// assigned legs and unassigned depot links as edges.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Output of the fleet optimizer; one route per configured vehicle, in config order.
type FleetSolution struct {
	Routes               []Route          `json:"routes"`
	VehiclesUsed         int              `json:"vehiclesUsed"`
	TotalDistanceMeters  float64          `json:"totalDistanceMeters"`
	TotalDurationSeconds float64          `json:"totalDurationSeconds"`
	Graph                Graph            `json:"graph"`
	Unassigned           []UnassignedStop `json:"unassigned,omitempty"`
	Degraded             bool             `json:"degraded"`
	Warnings             []string         `json:"warnings,omitempty"`
}

// RouteFor returns the route assigned to the given vehicle.
func (s FleetSolution) RouteFor(vehicleID string) (Route, bool) {
	for _, r := range s.Routes {
		if r.VehicleID == vehicleID {
			return r, true
		}
	}
	return Route{}, false
}

// IsUnassigned reports whether the stop was left out of every route.
func (s FleetSolution) IsUnassigned(stopID string) bool {
	for _, u := range s.Unassigned {
		if u.StopID == stopID {
			return true
		}
	}
	return false
}
