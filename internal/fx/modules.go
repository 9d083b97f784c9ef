package fx

import (
	"enfora/internal/api"
	"enfora/internal/config"
	"enfora/internal/database"
	"enfora/internal/logger"
	"enfora/internal/metrics"
	"enfora/internal/repository"
	"enfora/internal/server"
	"enfora/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// ProvideProfileSource prefers the remote user service when one is
// configured and falls back to the local profiles table.
func ProvideProfileSource(cfg *config.Config, repo *repository.ProfileRepository, logger zerolog.Logger) service.ProfileSource {
	if cfg.ProfileAPIURL != "" {
		logger.Info().Str("url", cfg.ProfileAPIURL).Msg("using remote profile service")
		return api.NewProfileClient(cfg)
	}
	return repo
}

// Core holds everything the refresh job needs; the CLI one-shot command
// runs with only this module.
var Core = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(database.New),
	metrics.Module,
	// repos
	fx.Provide(
		fx.Annotate(repository.NewTaskRepository, fx.As(new(service.TaskSource))),
		fx.Annotate(repository.NewAnalyticsRepository, fx.As(new(service.SnapshotStore))),
		fx.Annotate(repository.NewLeaderboardRepository, fx.As(new(service.LeaderboardStore))),
		fx.Annotate(repository.NewLeaseRepository, fx.As(new(service.LeaseStore))),
		repository.NewProfileRepository,
	),
	fx.Provide(ProvideProfileSource),
	// svc
	fx.Provide(service.NewLeaderboardRefresher),
)

var Module = fx.Options(
	Core,
	fx.Provide(service.NewAnalyticsService),
	fx.Provide(service.NewLeaderboardService),
	fx.Provide(service.NewScheduler),
	// server
	fx.Provide(server.NewEnforaServer),
)
