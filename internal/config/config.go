package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"enfora/internal/constants"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	DBPath     string
	ServerPort string
	LogLevel   string

	// RefreshInterval of zero disables the in-process scheduler.
	RefreshInterval   time.Duration
	RefreshLeaseTTL   time.Duration
	EnrichConcurrency int

	ProfileAPIURL string
	ProfileAPIKey string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		DBPath:        getEnv("DB_PATH", "enfora.db"),
		ServerPort:    getEnv("SERVER_PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		ProfileAPIURL: getEnv("PROFILE_API_URL", ""),
		ProfileAPIKey: getEnv("PROFILE_API_KEY", ""),
	}

	var err error
	if cfg.RefreshInterval, err = getDuration("LEADERBOARD_REFRESH_INTERVAL", constants.DefaultRefreshInterval); err != nil {
		return nil, err
	}
	if cfg.RefreshLeaseTTL, err = getDuration("REFRESH_LEASE_TTL", constants.DefaultLeaseTTL); err != nil {
		return nil, err
	}
	if cfg.EnrichConcurrency, err = getInt("ENRICH_CONCURRENCY", constants.DefaultEnrichConcurrency); err != nil {
		return nil, err
	}

	if cfg.RefreshLeaseTTL <= 0 {
		return nil, fmt.Errorf("REFRESH_LEASE_TTL must be positive")
	}
	if cfg.EnrichConcurrency < 1 {
		return nil, fmt.Errorf("ENRICH_CONCURRENCY must be at least 1")
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Dur("refresh_interval", cfg.RefreshInterval).
		Dur("refresh_lease_ttl", cfg.RefreshLeaseTTL).
		Int("enrich_concurrency", cfg.EnrichConcurrency).
		Bool("remote_profiles", cfg.ProfileAPIURL != "").
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

var Module = fx.Provide(Load)
