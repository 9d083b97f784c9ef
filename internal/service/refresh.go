package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"enfora/internal/config"
	"enfora/internal/constants"
	"enfora/internal/domain"
	"enfora/internal/metrics"
	"enfora/internal/repository"
	"enfora/internal/scoring"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type RefreshResult struct {
	RunID          string        `json:"runId"`
	TotalUsers     int           `json:"totalUsers"`
	Version        int64         `json:"version"`
	GlobalWritten  bool          `json:"globalWritten"`
	MidTierWritten int           `json:"midTierWritten"`
	FailedBatches  int           `json:"failedBatches"`
	Purged         int64         `json:"purged"`
	Duration       time.Duration `json:"duration"`
}

// LeaderboardRefresher rebuilds both leaderboard cache tiers from the
// analytics snapshots. Stages run strictly in order and earlier writes are
// never rolled back; the next run supersedes them.
type LeaderboardRefresher struct {
	snapshots SnapshotStore
	board     LeaderboardStore
	leases    LeaseStore
	enricher  *profileEnricher
	leaseTTL  time.Duration
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
	newRunID  func() (string, error)
}

func NewLeaderboardRefresher(snapshots SnapshotStore, board LeaderboardStore, leases LeaseStore, profiles ProfileSource, cfg *config.Config, m *metrics.Metrics, logger zerolog.Logger) *LeaderboardRefresher {
	return &LeaderboardRefresher{
		snapshots: snapshots,
		board:     board,
		leases:    leases,
		enricher:  &profileEnricher{profiles: profiles, concurrency: cfg.EnrichConcurrency, metrics: m, logger: logger},
		leaseTTL:  cfg.RefreshLeaseTTL,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
		newRunID:  func() (string, error) { return gonanoid.New() },
	}
}

func (r *LeaderboardRefresher) Run(ctx context.Context) (*RefreshResult, error) {
	start := r.now()

	runID, err := r.newRunID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate run id: %w", err)
	}
	log := r.logger.With().Str("run_id", runID).Logger()

	if err := r.leases.Acquire(ctx, constants.RefreshLeaseName, runID, r.leaseTTL); err != nil {
		if errors.Is(err, repository.ErrLeaseHeld) {
			log.Warn().Msg("another leaderboard refresh holds the lease, skipping")
			r.metrics.RefreshRuns.WithLabelValues(metrics.OutcomeSkipped).Inc()
			return nil, ErrRefreshInProgress
		}
		r.metrics.RefreshRuns.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, err
	}
	defer func() {
		if err := r.leases.Release(context.WithoutCancel(ctx), constants.RefreshLeaseName, runID); err != nil {
			log.Warn().Err(err).Msg("failed to release refresh lease")
		}
	}()

	result, err := r.run(ctx, runID, start, log)
	duration := r.now().Sub(start)
	r.metrics.RefreshDuration.Observe(duration.Seconds())
	if err != nil {
		r.metrics.RefreshRuns.WithLabelValues(metrics.OutcomeFailed).Inc()
		log.Error().Err(err).Dur("duration", duration).Msg("leaderboard refresh failed")
		return nil, err
	}
	result.Duration = duration

	if result.TotalUsers == 0 {
		r.metrics.RefreshRuns.WithLabelValues(metrics.OutcomeEmpty).Inc()
	} else {
		r.metrics.RefreshRuns.WithLabelValues(metrics.OutcomeSuccess).Inc()
	}
	r.metrics.RankedUsers.Set(float64(result.TotalUsers))

	log.Info().
		Int("total_users", result.TotalUsers).
		Int("mid_tier_written", result.MidTierWritten).
		Int("failed_batches", result.FailedBatches).
		Int64("purged", result.Purged).
		Dur("duration", duration).
		Msg("leaderboard refresh completed")

	return result, nil
}

func (r *LeaderboardRefresher) run(ctx context.Context, runID string, start time.Time, log zerolog.Logger) (*RefreshResult, error) {
	result := &RefreshResult{RunID: runID}

	var scores []domain.UserScore
	if err := scanScores(ctx, r.snapshots, 0, func(page []domain.UserScore) {
		scores = append(scores, page...)
	}); err != nil {
		return nil, fmt.Errorf("score scan failed: %w", err)
	}
	log.Debug().Int("users", len(scores)).Msg("scan complete")

	if len(scores) == 0 {
		log.Info().Msg("no users with a reliability score, nothing to rank")
		return result, nil
	}

	ranked := scoring.Rank(scores)
	result.TotalUsers = len(ranked)

	now := start.UTC()
	result.Version = now.UnixMilli()

	top := ranked[:min(len(ranked), constants.GlobalTopSize)]
	global := &domain.GlobalLeaderboard{
		CacheType:   domain.CacheTypeGlobalTop100,
		LastUpdated: now,
		Rankings:    r.enricher.enrich(ctx, top),
		TotalUsers:  len(ranked),
		Version:     result.Version,
	}
	if err := r.board.PutGlobal(ctx, global); err != nil {
		return nil, fmt.Errorf("failed to write global leaderboard: %w", err)
	}
	result.GlobalWritten = true
	log.Debug().Int("entries", len(top)).Msg("global leaderboard written")

	if len(ranked) > constants.GlobalTopSize {
		midTier := ranked[constants.GlobalTopSize:min(len(ranked), constants.MidTierLimit)]
		written, failed := r.writeMidTier(ctx, midTier, len(ranked), now, result.Version, log)
		result.MidTierWritten = written
		result.FailedBatches = failed
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("refresh interrupted after %d rank entries: %w", result.MidTierWritten, err)
	}

	purged, err := r.board.DeleteUserRanksBefore(ctx, result.Version)
	if err != nil {
		log.Warn().Err(err).Msg("failed to purge stale rank entries")
	}
	result.Purged = purged

	return result, nil
}

// writeMidTier stores individual rank entries in bounded batches. A failed
// batch is logged and skipped.
func (r *LeaderboardRefresher) writeMidTier(ctx context.Context, ranked []domain.RankedUser, total int, now time.Time, version int64, log zerolog.Logger) (written, failed int) {
	enriched := r.enricher.enrich(ctx, ranked)

	entries := make([]domain.UserRankEntry, len(enriched))
	for i, e := range enriched {
		entries[i] = domain.UserRankEntry{
			CacheType:        domain.CacheTypeUserRank,
			LastUpdated:      now,
			LeaderboardEntry: e,
			TotalUsers:       total,
			Version:          version,
		}
	}

	for i := 0; i < len(entries); i += constants.MaxBatchWrite {
		end := min(i+constants.MaxBatchWrite, len(entries))
		if err := r.board.PutUserRanks(ctx, entries[i:end]); err != nil {
			failed++
			r.metrics.FailedBatches.Inc()
			log.Error().
				Err(err).
				Int("batch", i/constants.MaxBatchWrite).
				Int("first_rank", entries[i].Rank).
				Int("size", end-i).
				Msg("failed to write rank batch, continuing")
			continue
		}
		written += end - i
	}
	return written, failed
}
