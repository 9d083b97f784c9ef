package service

import (
	"context"
	"fmt"
	"time"

	"enfora/internal/constants"
	"enfora/internal/domain"
	"enfora/internal/metrics"
	"enfora/internal/scoring"

	"github.com/rs/zerolog"
)

type AnalyticsService struct {
	tasks     TaskSource
	snapshots SnapshotStore
	board     LeaderboardStore
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

func NewAnalyticsService(tasks TaskSource, snapshots SnapshotStore, board LeaderboardStore, m *metrics.Metrics, logger zerolog.Logger) *AnalyticsService {
	return &AnalyticsService{
		tasks:     tasks,
		snapshots: snapshots,
		board:     board,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// GetUserAnalytics always recomputes from the task store and overwrites the
// stored snapshot. The stored value only decides whether this is a create
// or an update.
func (s *AnalyticsService) GetUserAnalytics(ctx context.Context, userID string) (*domain.AnalyticsSnapshot, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	existing, err := s.snapshots.Get(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to read analytics snapshot")
		return nil, err
	}

	return s.recompute(ctx, userID, existing == nil)
}

// RefreshUserAnalytics recomputes unconditionally; called after a task
// status change.
func (s *AnalyticsService) RefreshUserAnalytics(ctx context.Context, userID string) (*domain.AnalyticsSnapshot, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	s.logger.Debug().Str("user_id", userID).Msg("forced analytics refresh")
	return s.recompute(ctx, userID, false)
}

// DeleteUserAnalytics removes the user's snapshot and mid-tier rank entry
// as part of account deletion.
func (s *AnalyticsService) DeleteUserAnalytics(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidUserID
	}
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if err := s.snapshots.Delete(ctx, userID); err != nil {
		return err
	}
	if err := s.board.DeleteUserRank(ctx, userID); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", userID).Msg("analytics deleted")
	return nil
}

func (s *AnalyticsService) recompute(ctx context.Context, userID string, created bool) (*domain.AnalyticsSnapshot, error) {
	tasks, err := s.tasks.GetTasksByUser(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to load tasks")
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	snapshot := &domain.AnalyticsSnapshot{
		UserID:      userID,
		Metrics:     scoring.Calculate(tasks),
		LastUpdated: s.now().UTC(),
	}

	if err := s.snapshots.Upsert(ctx, snapshot); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to store analytics snapshot")
		return nil, err
	}
	s.metrics.AnalyticsRecompute.Inc()

	s.logger.Info().
		Str("user_id", userID).
		Bool("created", created).
		Int("tasks", len(tasks)).
		Int("reliability_score", snapshot.ReliabilityScore).
		Int("streak", snapshot.CurrentCompletionStreak).
		Msg("analytics recomputed")

	return snapshot, nil
}
