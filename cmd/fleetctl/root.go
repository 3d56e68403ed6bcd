package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"fleet-route-service/internal/config"
	"fleet-route-service/internal/platform/logger"
)

var (
	cfgPath     string
	problemPath string
)

var rootCmd = &cobra.Command{
	Use:           "fleetctl",
	Short:         "Plan and simulate delivery fleets from problem files",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (yaml or json)")
	rootCmd.PersistentFlags().StringVarP(&problemPath, "problem", "p", "", "problem file (yaml)")
	_ = rootCmd.MarkPersistentFlagRequired("problem")
}

// Execute runs the CLI until it finishes or is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig reads the config and quiets logging below warn unless asked.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Logging.Level == "info" {
		cfg.Logging.Level = "warn"
	}
	logger.SetLevel(cfg.Logging.Level)
	return cfg, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
