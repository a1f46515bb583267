package configs

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"ENVIRONMENT", "PORT", "ALLOWED_ORIGINS", "DATABASE_URL", "AMQP_URL", "FLEET_SIZE", "STATE_QUERY_TIMEOUT_SECONDS"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want development", cfg.Environment)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.FleetSize != 6 {
		t.Errorf("FleetSize = %d, want 6", cfg.FleetSize)
	}
	if cfg.StateQueryTimeout != 10*time.Second {
		t.Errorf("StateQueryTimeout = %v, want 10s", cfg.StateQueryTimeout)
	}
	if cfg.DatabaseDSN != "" || cfg.AMQPURL != "" {
		t.Error("optional collaborators should default to unset")
	}
}

func TestLoadConfig_Values(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("PORT", "9000")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("FLEET_SIZE", "12")
	t.Setenv("STATE_QUERY_TIMEOUT_SECONDS", "3")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.FleetSize != 12 {
		t.Errorf("FleetSize = %d, want 12", cfg.FleetSize)
	}
	if cfg.StateQueryTimeout != 3*time.Second {
		t.Errorf("StateQueryTimeout = %v, want 3s", cfg.StateQueryTimeout)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port not a number", "PORT", "eighty"},
		{"port privileged", "PORT", "80"},
		{"port out of range", "PORT", "70000"},
		{"fleet size negative", "FLEET_SIZE", "-1"},
		{"timeout zero", "STATE_QUERY_TIMEOUT_SECONDS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			if _, err := LoadConfig(); err == nil {
				t.Errorf("LoadConfig() with %s=%q succeeded, want error", tt.key, tt.value)
			}
		})
	}
}
