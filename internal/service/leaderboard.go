package service

import (
	"context"
	"time"

	"enfora/internal/config"
	"enfora/internal/constants"
	"enfora/internal/domain"
	"enfora/internal/metrics"

	"github.com/rs/zerolog"
)

type Top100 struct {
	Rankings    []domain.LeaderboardEntry `json:"rankings"`
	LastUpdated *time.Time                `json:"lastUpdated"`
	TotalUsers  int                       `json:"totalUsers"`
}

// LeaderboardService answers leaderboard reads from the cache, falling back
// to an on-demand count for users outside the cached tiers.
type LeaderboardService struct {
	snapshots SnapshotStore
	board     LeaderboardStore
	enricher  *profileEnricher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

func NewLeaderboardService(snapshots SnapshotStore, board LeaderboardStore, profiles ProfileSource, cfg *config.Config, m *metrics.Metrics, logger zerolog.Logger) *LeaderboardService {
	return &LeaderboardService{
		snapshots: snapshots,
		board:     board,
		enricher:  &profileEnricher{profiles: profiles, concurrency: cfg.EnrichConcurrency, metrics: m, logger: logger},
		metrics:   m,
		logger:    logger,
	}
}

func (s *LeaderboardService) GetTop100(ctx context.Context) (*Top100, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	g, err := s.board.LatestGlobal(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read global leaderboard")
		return nil, err
	}
	if g == nil {
		s.logger.Debug().Msg("global leaderboard not populated yet")
		return &Top100{Rankings: []domain.LeaderboardEntry{}}, nil
	}

	lastUpdated := g.LastUpdated
	rankings := g.Rankings
	if rankings == nil {
		rankings = []domain.LeaderboardEntry{}
	}
	return &Top100{Rankings: rankings, LastUpdated: &lastUpdated, TotalUsers: g.TotalUsers}, nil
}

// GetUserRank looks in the top-100 record, then the mid-tier entry, then
// computes the rank on demand. It returns nil for users without a rank.
func (s *LeaderboardService) GetUserRank(ctx context.Context, userID string) (*domain.UserRank, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	g, err := s.board.LatestGlobal(ctx)
	if err != nil {
		return nil, err
	}
	if g != nil {
		for _, e := range g.Rankings {
			if e.UserID == userID {
				s.metrics.RankLookups.WithLabelValues(string(domain.RankSourceTop100)).Inc()
				total := g.TotalUsers
				return &domain.UserRank{LeaderboardEntry: e, TotalUsers: &total, Source: domain.RankSourceTop100}, nil
			}
		}
	}

	cached, err := s.board.GetUserRank(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		s.metrics.RankLookups.WithLabelValues(string(domain.RankSourceCached)).Inc()
		total := cached.TotalUsers
		return &domain.UserRank{LeaderboardEntry: cached.LeaderboardEntry, TotalUsers: &total, Source: domain.RankSourceCached}, nil
	}

	return s.ComputeRank(ctx, userID)
}

// ComputeRank counts users with a strictly higher score. It scans the whole
// analytics table and is only meant for cache misses.
func (s *LeaderboardService) ComputeRank(ctx context.Context, userID string) (*domain.UserRank, error) {
	snap, err := s.snapshots.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if snap == nil || snap.ReliabilityScore <= 0 {
		s.logger.Debug().Str("user_id", userID).Msg("user has no rank")
		return nil, nil
	}

	start := time.Now()
	higher := 0
	err = scanScores(ctx, s.snapshots, snap.ReliabilityScore, func(page []domain.UserScore) {
		higher += len(page)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("fallback rank scan failed")
		return nil, err
	}

	s.metrics.RankLookups.WithLabelValues(string(domain.RankSourceComputed)).Inc()
	s.logger.Info().
		Str("user_id", userID).
		Int("rank", higher+1).
		Dur("duration", time.Since(start)).
		Msg("computed rank on demand")

	return &domain.UserRank{
		LeaderboardEntry: domain.LeaderboardEntry{
			RankedUser: domain.RankedUser{
				UserID:           userID,
				ReliabilityScore: snap.ReliabilityScore,
				Rank:             higher + 1,
			},
			Profile: s.enricher.lookup(ctx, userID),
		},
		Source: domain.RankSourceComputed,
	}, nil
}
