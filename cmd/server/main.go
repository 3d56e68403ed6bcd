package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fleet-route-service/internal/api"
	"fleet-route-service/internal/api/handlers"
	"fleet-route-service/internal/app"
	"fleet-route-service/internal/config"
	"fleet-route-service/internal/platform/logger"
	"fleet-route-service/internal/platform/obs"
)

// main is the application composition root.
// It wires concrete adapters behind ports and starts the HTTP server and the
// simulation loop.
func main() {
	log := logger.New("server")
	if err := godotenv.Load(); err != nil {
		log.Infof("No .env file found (using environment variables)")
	}

	configPath := flag.String("config", config.Get("FLEET_CONFIG", ""), "path to a yaml or json config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.Logging.Level)

	obs.RegisterDefault()
	obs.SetLogger(logger.New("obs"))
	api.SetLogger(logger.New("http"))
	handlers.SetLogger(logger.New("api"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger.New("fleet"))
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
	defer a.Close()

	go func() {
		if err := a.Runner.Run(ctx, a.TickInterval()); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorf("simulation loop stopped: %v", err)
		}
	}()
	go func() {
		if err := a.Generator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorf("ticket generator stopped: %v", err)
		}
	}()

	router := api.NewRouter(api.Deps{
		Routes:       a.RouteOptimizer,
		Fleet:        a.FleetOptimizer,
		Solutions:    a.Solutions,
		Runner:       a.Runner,
		Stream:       a.Bus,
		DefaultFleet: cfg.Fleet.Domain(),
		SimDefaults:  a.SimulationOptions(),
		Metrics:      a.Metrics(),
	})

	// WriteTimeout stays unset: /simulation/stream holds connections open.
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("shutdown: %v", err)
		}
	}()

	log.Infof("Server listening addr=%s backend=%s", cfg.HTTP.Addr, cfg.Distance.Backend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
