package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fleet-route-service/internal/services"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check pickup/dropoff precedence in the problem's stop order",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProblem(problemPath)
		if err != nil {
			return err
		}

		res := services.ValidatePrecedence(p.Stops)
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		if !res.Valid {
			return fmt.Errorf("%d precedence violations", len(res.Violations))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
