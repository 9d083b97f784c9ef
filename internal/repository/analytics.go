package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"enfora/internal/domain"

	"github.com/rs/zerolog"
)

type AnalyticsRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewAnalyticsRepository(sqlDB *sql.DB, logger zerolog.Logger) *AnalyticsRepository {
	return &AnalyticsRepository{db: sqlDB, logger: logger}
}

// ScanFilter selects snapshots with a reliability score strictly above
// MinScoreExclusive, resuming after Cursor (a user id, empty to start).
type ScanFilter struct {
	MinScoreExclusive int
	Cursor            string
	Limit             int
}

// ScorePage is one page of a score scan. NextCursor is empty once the scan
// is exhausted.
type ScorePage struct {
	Scores     []domain.UserScore
	NextCursor string
}

const snapshotColumns = `user_id, reliability_score, discipline_score, completion_rate,
	avg_hours_before_deadline, current_streak, total_stake_lost, total_stake_at_risk,
	average_stake_per_task, total_money_to_charity, finished_tasks_count,
	pending_tasks_count, last_updated`

// Get returns the stored snapshot, or nil when the user has none.
func (r *AnalyticsRepository) Get(ctx context.Context, userID string) (*domain.AnalyticsSnapshot, error) {
	var s domain.AnalyticsSnapshot
	err := r.db.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM analytics_snapshots WHERE user_id = ?`, userID,
	).Scan(
		&s.UserID,
		&s.ReliabilityScore,
		&s.DisciplineScore,
		&s.CompletionRate,
		&s.AverageCompletionTimeBeforeDeadline,
		&s.CurrentCompletionStreak,
		&s.TotalStakeLost,
		&s.TotalStakeAtRisk,
		&s.AverageStakePerTask,
		&s.TotalMoneyToCharity,
		&s.FinishedTasksCount,
		&s.PendingTasksCount,
		&s.LastUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analytics snapshot: %w", err)
	}
	return &s, nil
}

// Upsert overwrites the user's snapshot wholesale.
func (r *AnalyticsRepository) Upsert(ctx context.Context, s *domain.AnalyticsSnapshot) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO analytics_snapshots (`+snapshotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			reliability_score = excluded.reliability_score,
			discipline_score = excluded.discipline_score,
			completion_rate = excluded.completion_rate,
			avg_hours_before_deadline = excluded.avg_hours_before_deadline,
			current_streak = excluded.current_streak,
			total_stake_lost = excluded.total_stake_lost,
			total_stake_at_risk = excluded.total_stake_at_risk,
			average_stake_per_task = excluded.average_stake_per_task,
			total_money_to_charity = excluded.total_money_to_charity,
			finished_tasks_count = excluded.finished_tasks_count,
			pending_tasks_count = excluded.pending_tasks_count,
			last_updated = excluded.last_updated`,
		s.UserID,
		s.ReliabilityScore,
		s.DisciplineScore,
		s.CompletionRate,
		s.AverageCompletionTimeBeforeDeadline,
		s.CurrentCompletionStreak,
		s.TotalStakeLost.String(),
		s.TotalStakeAtRisk.String(),
		s.AverageStakePerTask.String(),
		s.TotalMoneyToCharity.String(),
		s.FinishedTasksCount,
		s.PendingTasksCount,
		s.LastUpdated.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert analytics snapshot for %s: %w", s.UserID, err)
	}
	return nil
}

// ScanScores returns one page of (userId, reliabilityScore) pairs ordered
// by user id.
func (r *AnalyticsRepository) ScanScores(ctx context.Context, f ScanFilter) (ScorePage, error) {
	if f.Limit <= 0 {
		return ScorePage{}, fmt.Errorf("scan limit must be positive, got %d", f.Limit)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, reliability_score FROM analytics_snapshots
		WHERE reliability_score > ? AND user_id > ?
		ORDER BY user_id
		LIMIT ?`,
		f.MinScoreExclusive, f.Cursor, f.Limit,
	)
	if err != nil {
		return ScorePage{}, fmt.Errorf("failed to scan scores: %w", err)
	}
	defer rows.Close()

	page := ScorePage{Scores: make([]domain.UserScore, 0, f.Limit)}
	for rows.Next() {
		var s domain.UserScore
		if err := rows.Scan(&s.UserID, &s.ReliabilityScore); err != nil {
			return ScorePage{}, fmt.Errorf("failed to read score row: %w", err)
		}
		page.Scores = append(page.Scores, s)
	}
	if err := rows.Err(); err != nil {
		return ScorePage{}, fmt.Errorf("failed to scan scores: %w", err)
	}

	if len(page.Scores) == f.Limit {
		page.NextCursor = page.Scores[len(page.Scores)-1].UserID
	}

	r.logger.Debug().
		Str("cursor", f.Cursor).
		Int("min_score_exclusive", f.MinScoreExclusive).
		Int("count", len(page.Scores)).
		Bool("more", page.NextCursor != "").
		Msg("scanned score page")

	return page, nil
}

// Delete removes a user's snapshot, used on account deletion.
func (r *AnalyticsRepository) Delete(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM analytics_snapshots WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete analytics snapshot for %s: %w", userID, err)
	}
	return nil
}
