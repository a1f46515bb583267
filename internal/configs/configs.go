/*
Package configs is responsible for loading and parsing the application's
configuration settings from environment variables.
*/
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig contains all configuration parameters required for the
// application to run. All values are loaded from environment variables.
type AppConfig struct {
	// General server settings.
	Environment string
	Port        int

	// AllowedOrigins lists the origins accepted for CORS and WebSocket
	// upgrades outside development.
	AllowedOrigins []string

	// DatabaseDSN selects the Postgres-backed entity store when set; the
	// in-memory store is used otherwise.
	DatabaseDSN string

	// AMQPURL enables rental event publishing when set.
	AMQPURL string

	// FleetSize is the number of cars seeded at startup.
	FleetSize int

	// StateQueryTimeout is the await window for vehicle state queries.
	StateQueryTimeout time.Duration
}

// LoadConfig reads and parses the application configuration from
// environment variables, applying defaults and validating values.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	portStr := os.Getenv("PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT environment variable: %w", err)
	}
	if port < 1024 || port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the allowed range (1024-65535)", port)
	}
	cfg.Port = port

	if originsStr := os.Getenv("ALLOWED_ORIGINS"); originsStr != "" {
		for _, origin := range strings.Split(originsStr, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	}

	// Optional collaborators.
	cfg.DatabaseDSN = os.Getenv("DATABASE_URL")
	cfg.AMQPURL = os.Getenv("AMQP_URL")

	fleetStr := os.Getenv("FLEET_SIZE")
	if fleetStr == "" {
		fleetStr = "6"
	}
	fleetSize, err := strconv.Atoi(fleetStr)
	if err != nil || fleetSize < 0 {
		return nil, fmt.Errorf("invalid FLEET_SIZE environment variable: %q", fleetStr)
	}
	cfg.FleetSize = fleetSize

	timeoutStr := os.Getenv("STATE_QUERY_TIMEOUT_SECONDS")
	if timeoutStr == "" {
		timeoutStr = "10"
	}
	timeoutSec, err := strconv.Atoi(timeoutStr)
	if err != nil || timeoutSec <= 0 {
		return nil, fmt.Errorf("invalid STATE_QUERY_TIMEOUT_SECONDS environment variable: %q", timeoutStr)
	}
	cfg.StateQueryTimeout = time.Duration(timeoutSec) * time.Second

	return cfg, nil
}
