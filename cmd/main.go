/*
Package main is the entry point for the car-sharing server.

It is responsible for loading configuration, initializing the global logging
system, selecting the entity store (in-memory or Postgres), seeding the
fleet, wiring the correlation broker, event publisher and orchestrator into
the HTTP server, and gracefully handling operating system interrupt signals
(SIGINT, SIGTERM) to ensure a smooth shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carshare/internal/app/broker"
	"carshare/internal/app/db"
	"carshare/internal/app/events"
	"carshare/internal/app/orchestrator"
	"carshare/internal/app/store"
	"carshare/internal/configs"
	"carshare/internal/handler"
	"carshare/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Int("fleet_size", cfg.FleetSize).
		Dur("state_query_timeout", cfg.StateQueryTimeout).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Select the entity store. Postgres when DATABASE_URL is set, otherwise
	// everything lives in process memory.
	var entityStore store.Store
	if cfg.DatabaseDSN != "" {
		pool, err := db.NewPool(cfg.DatabaseDSN)
		if err != nil {
			logx.Fatal(err, "Failed to initialize database")
		}
		defer pool.Close()
		entityStore = db.NewPGStore(pool)
		logx.Info("Using Postgres-backed entity store.")
	} else {
		entityStore = store.NewMemoryStore()
		logx.Info("Using in-memory entity store.")
	}

	if err := store.SeedFleet(ctx, entityStore, cfg.FleetSize); err != nil {
		logx.Fatal(err, "Failed to seed fleet")
	}

	// Rental lifecycle events are published to AMQP when configured.
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.AMQPURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.AMQPURL)
		if err != nil {
			logx.Fatal(err, "Failed to connect to AMQP broker")
		}
		publisher = amqpPub
	}
	defer publisher.Close()

	correlator := broker.New(cfg.StateQueryTimeout)
	orch := orchestrator.New(entityStore, correlator, publisher)

	// Setup HTTP server and routes
	router := handler.Router(&handler.AppDeps{
		Orchestrator: orch,
		Store:        entityStore,
		Config:       cfg,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Car Sharing Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	logx.Info("Server gracefully stopped.")
}
