package main

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"enfora/internal/config"
	fxmodules "enfora/internal/fx"
	"enfora/internal/service"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var refreshTimeout time.Duration

var refreshCmd = &cobra.Command{
	Use:   "refresh-leaderboard",
	Short: "Run one leaderboard refresh and exit",
	Long: `Rebuilds the global top-100 record and the individual rank entries
once. Intended for an external scheduler; exits non-zero on failure.`,
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().DurationVar(&refreshTimeout, "timeout", 10*time.Minute, "Abort the run after this long")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	var (
		refresher *service.LeaderboardRefresher
		cfg       *config.Config
		db        *sql.DB
		logger    zerolog.Logger
	)
	app := fx.New(
		fxmodules.Core,
		fx.NopLogger,
		fx.Populate(&refresher, &cfg, &db, &logger),
	)
	if err := app.Err(); err != nil {
		return err
	}
	defer db.Close()

	// a run must not outlive its lease
	ctx, cancel := context.WithTimeout(cmd.Context(), min(refreshTimeout, cfg.RefreshLeaseTTL))
	defer cancel()

	result, err := refresher.Run(ctx)
	if errors.Is(err, service.ErrRefreshInProgress) {
		logger.Info().Msg("refresh already running elsewhere, nothing to do")
		return nil
	}
	if err != nil {
		return err
	}

	logger.Info().
		Str("run_id", result.RunID).
		Int("total_users", result.TotalUsers).
		Int("failed_batches", result.FailedBatches).
		Msg("refresh finished")
	return nil
}
