package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/simulation"
)

// problem is the on-disk input of every fleetctl command.
type problem struct {
	Stops   []domain.Stop       `yaml:"stops"`
	Fleet   *domain.FleetConfig `yaml:"fleet"`
	Start   *domain.Stop        `yaml:"start"`
	Tickets []problemTicket     `yaml:"tickets"`
}

// problemTicket is injected into a simulation before tick AtTick.
type problemTicket struct {
	AtTick   int                 `yaml:"atTick"`
	Priority simulation.Priority `yaml:"priority"`
	Stop     domain.Stop         `yaml:"stop"`
}

func loadProblem(path string) (*problem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load problem: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var p problem
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("load problem %s: %w", path, err)
	}
	if len(p.Stops) == 0 {
		return nil, errors.New("load problem: no stops")
	}
	for _, t := range p.Tickets {
		if t.AtTick < 0 {
			return nil, fmt.Errorf("load problem: ticket %q has negative atTick", t.Stop.ID)
		}
	}
	return &p, nil
}

// fleetOr returns the problem's fleet, or def when the file has none.
func (p *problem) fleetOr(def domain.FleetConfig) domain.FleetConfig {
	if p.Fleet != nil {
		return *p.Fleet
	}
	return def
}
