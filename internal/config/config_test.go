package config

import (
	"testing"
	"time"

	"enfora/internal/constants"

	"github.com/rs/zerolog"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"DB_PATH", "SERVER_PORT", "LEADERBOARD_REFRESH_INTERVAL", "REFRESH_LEASE_TTL", "ENRICH_CONCURRENCY", "PROFILE_API_URL"} {
		t.Setenv(k, "")
	}

	cfg, err := Load(zerolog.Nop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "enfora.db" {
		t.Errorf("DBPath = %q, want enfora.db", cfg.DBPath)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
	if cfg.RefreshInterval != constants.DefaultRefreshInterval {
		t.Errorf("RefreshInterval = %v, want %v", cfg.RefreshInterval, constants.DefaultRefreshInterval)
	}
	if cfg.EnrichConcurrency != constants.DefaultEnrichConcurrency {
		t.Errorf("EnrichConcurrency = %d, want %d", cfg.EnrichConcurrency, constants.DefaultEnrichConcurrency)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_PATH", "/tmp/x.db")
	t.Setenv("LEADERBOARD_REFRESH_INTERVAL", "90s")
	t.Setenv("REFRESH_LEASE_TTL", "2m")
	t.Setenv("ENRICH_CONCURRENCY", "3")
	t.Setenv("PROFILE_API_URL", "http://users.internal")

	cfg, err := Load(zerolog.Nop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/tmp/x.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.RefreshInterval != 90*time.Second {
		t.Errorf("RefreshInterval = %v, want 90s", cfg.RefreshInterval)
	}
	if cfg.RefreshLeaseTTL != 2*time.Minute {
		t.Errorf("RefreshLeaseTTL = %v, want 2m", cfg.RefreshLeaseTTL)
	}
	if cfg.EnrichConcurrency != 3 {
		t.Errorf("EnrichConcurrency = %d, want 3", cfg.EnrichConcurrency)
	}
	if cfg.ProfileAPIURL != "http://users.internal" {
		t.Errorf("ProfileAPIURL = %q", cfg.ProfileAPIURL)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"LEADERBOARD_REFRESH_INTERVAL": "soon",
		"REFRESH_LEASE_TTL":            "0s",
		"ENRICH_CONCURRENCY":           "0",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(zerolog.Nop()); err == nil {
				t.Errorf("Load with %s=%q: expected error", key, value)
			}
		})
	}
}
