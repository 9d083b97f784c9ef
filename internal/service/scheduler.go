package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"enfora/internal/config"

	"github.com/rs/zerolog"
)

type refreshRunner interface {
	Run(ctx context.Context) (*RefreshResult, error)
}

// Scheduler triggers a leaderboard refresh at startup and then on every
// interval tick. Overlap with runs started elsewhere is prevented by the
// refresh lease, not by the scheduler.
type Scheduler struct {
	runner     refreshRunner
	interval   time.Duration
	runTimeout time.Duration // bounds each run so it cannot outlive the refresh lease
	logger     zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(refresher *LeaderboardRefresher, cfg *config.Config, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		runner:     refresher,
		interval:   cfg.RefreshInterval,
		runTimeout: cfg.RefreshLeaseTTL,
		logger:     logger,
	}
}

func (s *Scheduler) Start() {
	if s.interval <= 0 {
		s.logger.Info().Msg("leaderboard scheduler disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info().Dur("interval", s.interval).Msg("leaderboard scheduler started")
}

func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.logger.Info().Msg("leaderboard scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	_, err := s.runner.Run(ctx)
	switch {
	case err == nil, errors.Is(err, ErrRefreshInProgress):
	case errors.Is(err, context.DeadlineExceeded):
		s.logger.Error().Dur("timeout", s.runTimeout).Msg("scheduled refresh exceeded the lease ttl, abandoned")
	case errors.Is(err, context.Canceled):
		s.logger.Debug().Msg("scheduled refresh cancelled")
	default:
		s.logger.Error().Err(err).Msg("scheduled leaderboard refresh failed")
	}
}
