package services

import (
	"cmp"
	"slices"

	"fleet-route-service/internal/domain"
)

// cwRoute is one partial route in the savings arena. nodes are matrix indexes
// in visiting order, never including the depot.
type cwRoute struct {
	nodes     []int
	demand    int
	finalized bool
}

func (r *cwRoute) first() int { return r.nodes[0] }
func (r *cwRoute) last() int { return r.nodes[len(r.nodes)-1] }

type vehicleLoad struct {
	vehicle   domain.Vehicle
	remaining int
	routes    []int
}

// packRoutes assigns arena routes to vehicles with a greedy bin packing.
//
// Routes are taken by descending demand (ties: lower first node) and each goes
// to the vehicle with the largest remaining capacity (ties: earliest in fleet order).
// A vehicle may carry several routes. Routes that fit nowhere are returned in
// unpacked together with their total demand.
func packRoutes(arena []*cwRoute, live []int, vehicles []domain.Vehicle) (loads []vehicleLoad, unpacked []int, unpackedDemand int) {
	order := slices.Clone(live)
	slices.SortStableFunc(order, func(a, b int) int {
		ra, rb := arena[a], arena[b]
		if c := cmp.Compare(rb.demand, ra.demand); c != 0 {
			return c
		}
		return cmp.Compare(ra.first(), rb.first())
	})

	loads = make([]vehicleLoad, len(vehicles))
	for i, v := range vehicles {
		loads[i] = vehicleLoad{vehicle: v, remaining: v.PackageCapacity}
	}

	for _, idx := range order {
		r := arena[idx]

		best := -1
		for i := range loads {
			if best == -1 || loads[i].remaining > loads[best].remaining {
				best = i
			}
		}

		// The largest remaining capacity is the only candidate worth checking.
		if best == -1 || r.demand > loads[best].remaining {
			unpacked = append(unpacked, idx)
			unpackedDemand += r.demand
			continue
		}

		loads[best].remaining -= r.demand
		loads[best].routes = append(loads[best].routes, idx)
	}

	return loads, unpacked, unpackedDemand
}
