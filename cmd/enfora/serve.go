package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"enfora/internal/config"
	"enfora/internal/constants"
	fxmodules "enfora/internal/fx"
	"enfora/internal/metrics"
	"enfora/internal/server"
	"enfora/internal/service"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the RPC server and the leaderboard refresh scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := fx.New(
			fxmodules.Module,
			fx.Invoke(runServer, runScheduler),
		)
		if err := app.Err(); err != nil {
			return err
		}
		app.Run()
		return nil
	},
}

func runServer(
	lc fx.Lifecycle,
	enforaServer *server.EnforaServer,
	cfg *config.Config,
	db *sql.DB,
	m *metrics.Metrics,
	logger zerolog.Logger,
) {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: server.NewHandler(enforaServer, db, m, logger),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}
			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}

// runScheduler is invoked after runServer, so its stop hook runs first and
// an in-flight refresh finishes before the database closes.
func runScheduler(lc fx.Lifecycle, scheduler *service.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			scheduler.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			scheduler.Stop()
			return nil
		},
	})
}
