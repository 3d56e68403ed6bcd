package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"fleet-route-service/internal/adapters/repositories"
	"fleet-route-service/internal/config"
	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/platform/db"
	"fleet-route-service/internal/platform/logger"
)

var log = logger.New("dbtool")

func main() {
	if err := godotenv.Load(); err != nil {
		log.Infof("No .env file found (using environment variables)")
	}

	databaseURL := config.Get("DATABASE_URL", config.Get("FLEET_DATABASE__URL", ""))
	if strings.TrimSpace(databaseURL) == "" {
		log.Errorf("DATABASE_URL is required")
		os.Exit(1)
	}

	db, err := db.Open(databaseURL)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
	defer db.Close()

	seedPath := config.Get("SEED_PATH", "")
	if err := initAndSeed(context.Background(), db, seedPath); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

// initAndSeed creates the schema and, when seedPath is set, stores the
// solution found there under the file's "id".
func initAndSeed(ctx context.Context, db *sql.DB, seedPath string) error {
	log.Infof("Initializing database schema...")
	if err := repositories.InitSchema(ctx, db); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}
	log.Infof("Schema ready.")

	if seedPath == "" {
		return nil
	}

	log.Infof("Seeding solution from %s...", seedPath)
	raw, err := os.ReadFile(seedPath)
	if err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}
	var seed struct {
		ID       string               `json:"id"`
		Solution domain.FleetSolution `json:"solution"`
	}
	if err := json.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("seeding failed: decode %s: %w", seedPath, err)
	}
	if seed.ID == "" {
		return fmt.Errorf("seeding failed: %s has no id", seedPath)
	}
	if err := repositories.NewPostgresSolutionRepository(db).SaveSolution(ctx, seed.ID, seed.Solution); err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}
	log.Infof("Seeding complete.")

	return nil
}
