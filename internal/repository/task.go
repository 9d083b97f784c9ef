package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"enfora/internal/domain"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TaskRepository reads the task store. Tasks are owned by the task
// routes; only tests and seeding write through Insert.
type TaskRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewTaskRepository(sqlDB *sql.DB, logger zerolog.Logger) *TaskRepository {
	return &TaskRepository{db: sqlDB, logger: logger}
}

func (r *TaskRepository) GetTasksByUser(ctx context.Context, userID string) ([]domain.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT task_id, user_id, status, stake_amount, stake_destination, deadline, completed_at, failed_at
		FROM tasks WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks for %s: %w", userID, err)
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		var t domain.Task
		var status string
		var stake sql.NullString
		var deadline, completedAt, failedAt sql.NullTime
		if err := rows.Scan(&t.TaskID, &t.UserID, &status, &stake, &t.StakeDestination, &deadline, &completedAt, &failedAt); err != nil {
			return nil, fmt.Errorf("failed to read task row: %w", err)
		}
		t.Status = domain.TaskStatus(status)
		t.StakeAmount = r.parseStake(t.TaskID, stake)
		t.Deadline = timePtr(deadline)
		t.CompletedAt = timePtr(completedAt)
		t.FailedAt = timePtr(failedAt)
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query tasks for %s: %w", userID, err)
	}

	r.logger.Debug().Str("user_id", userID).Int("count", len(tasks)).Msg("loaded tasks")
	return tasks, nil
}

// parseStake counts a missing or malformed stake as zero. The column is
// written by the task routes and is not constrained to numbers.
func (r *TaskRepository) parseStake(taskID string, raw sql.NullString) decimal.Decimal {
	v := strings.TrimSpace(raw.String)
	if !raw.Valid || v == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		r.logger.Warn().Err(err).Str("task_id", taskID).Str("stake_amount", raw.String).Msg("malformed stake amount, counting as 0")
		return decimal.Zero
	}
	return d
}

func (r *TaskRepository) Insert(ctx context.Context, t domain.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (task_id, user_id, status, stake_amount, stake_destination, deadline, completed_at, failed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TaskID, t.UserID, string(t.Status), t.StakeAmount.String(), t.StakeDestination,
		nullTime(t.Deadline), nullTime(t.CompletedAt), nullTime(t.FailedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert task %s: %w", t.TaskID, err)
	}
	return nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
