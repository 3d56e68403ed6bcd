package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fleet-route-service/internal/app"
	"fleet-route-service/internal/platform/logger"
	"fleet-route-service/internal/simulation"
)

var (
	simTicks int
	simTick  time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a headless simulation of the problem's plan",
	Long: "Plans the problem, then advances the simulation tick by tick. Tickets in the\n" +
		"problem file are queued before their tick; reoptimization runs inline.",
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().IntVar(&simTicks, "ticks", 600, "number of ticks to run")
	simulateCmd.Flags().DurationVar(&simTick, "tick", time.Second, "wall time per tick")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := loadProblem(problemPath)
	if err != nil {
		return err
	}

	log := logger.New("fleetctl")
	a, err := app.New(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	fleet := p.fleetOr(cfg.Fleet.Domain())
	sol, err := a.FleetOptimizer.Optimize(cmd.Context(), p.Stops, fleet)
	if err != nil {
		return err
	}

	opts := a.SimulationOptions()
	// Reoptimization runs through Reoptimize below so the run is deterministic.
	threshold := opts.AutoReoptimizeThreshold
	opts.AutoReoptimizeThreshold = 0
	runner := simulation.NewRunner(simulation.NewState(*sol, fleet, opts),
		simulation.NewEngine(a.FleetOptimizer, log), simulation.WithRunnerLogger(log))

	out := cmd.OutOrStdout()
	reopts := 0
	for tick := 0; tick < simTicks; tick++ {
		for _, t := range p.Tickets {
			if t.AtTick != tick {
				continue
			}
			if _, err := runner.AddTicket(simulation.QueuedTicket{Stop: t.Stop, Priority: t.Priority}); err != nil {
				return fmt.Errorf("tick %d: %w", tick, err)
			}
		}

		if s := runner.State(); threshold > 0 && len(s.TicketQueue) >= threshold {
			res, err := runner.Reoptimize(cmd.Context())
			if err != nil {
				fmt.Fprintf(out, "tick %d: reoptimization failed: %v\n", tick, err)
			} else {
				reopts++
				fmt.Fprintf(out, "tick %d: reoptimized, %d tickets assigned, %d queued\n",
					tick, len(res.AssignedTickets), len(res.UnassignableTickets))
			}
		}

		runner.Step(cmd.Context(), simTick)
	}

	snap := runner.Snapshot()
	fmt.Fprintf(out, "simulated %s in %d ticks, %d reoptimizations\n",
		time.Duration(snap.CurrentTimeMs)*time.Millisecond, simTicks, reopts)
	return printJSON(out, snap)
}
