package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fleet-route-service/internal/app"
	"fleet-route-service/internal/platform/logger"
	"fleet-route-service/internal/services"
)

var (
	optimizeMode string
	roundTrip    bool
	precedence   bool
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Optimize a fleet plan or a single route",
	RunE:  runOptimize,
}

func init() {
	optimizeCmd.Flags().StringVar(&optimizeMode, "mode", "fleet", "fleet or route")
	optimizeCmd.Flags().BoolVar(&roundTrip, "round-trip", false, "route mode: return to the start")
	optimizeCmd.Flags().BoolVar(&precedence, "precedence", true, "route mode: keep pickups before their dropoffs")
	rootCmd.AddCommand(optimizeCmd)
}

func runOptimize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := loadProblem(problemPath)
	if err != nil {
		return err
	}

	a, err := app.New(cmd.Context(), cfg, logger.New("fleetctl"))
	if err != nil {
		return err
	}
	defer a.Close()

	switch optimizeMode {
	case "fleet":
		sol, err := a.FleetOptimizer.Optimize(cmd.Context(), p.Stops, p.fleetOr(cfg.Fleet.Domain()))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), sol)

	case "route":
		start := p.Start
		if start == nil && p.Fleet != nil {
			start = &p.Fleet.Depot
		}
		route, err := a.RouteOptimizer.Optimize(cmd.Context(), p.Stops, services.RouteOptions{
			Start:             start,
			IsRoundTrip:       roundTrip,
			EnforcePrecedence: precedence,
		})
		if err != nil {
			return err
		}
		cmp := services.CompareRoutes(route.OriginalDistanceMeters, route.OriginalDurationSeconds,
			route.DistanceMeters, route.DurationSeconds, a.Metrics())
		return printJSON(cmd.OutOrStdout(), map[string]any{"route": route, "comparison": cmp})

	default:
		return fmt.Errorf("unknown mode %q (want fleet or route)", optimizeMode)
	}
}
