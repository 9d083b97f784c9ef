package service

import (
	"context"
	"errors"
	"time"

	"enfora/internal/domain"
	"enfora/internal/repository"
)

var (
	ErrInvalidUserID     = errors.New("user id is required")
	ErrRefreshInProgress = errors.New("leaderboard refresh already in progress")
	ErrScanRunaway       = errors.New("score scan exceeded page limit")
)

// TaskSource is the task store as seen by the analytics service.
type TaskSource interface {
	GetTasksByUser(ctx context.Context, userID string) ([]domain.Task, error)
}

// ProfileSource resolves display profiles. A nil profile with a nil error
// means the user has none.
type ProfileSource interface {
	FindProfileByUserID(ctx context.Context, userID string) (*domain.Profile, error)
}

type SnapshotStore interface {
	Get(ctx context.Context, userID string) (*domain.AnalyticsSnapshot, error)
	Upsert(ctx context.Context, s *domain.AnalyticsSnapshot) error
	ScanScores(ctx context.Context, f repository.ScanFilter) (repository.ScorePage, error)
	Delete(ctx context.Context, userID string) error
}

type LeaderboardStore interface {
	PutGlobal(ctx context.Context, g *domain.GlobalLeaderboard) error
	LatestGlobal(ctx context.Context) (*domain.GlobalLeaderboard, error)
	GetUserRank(ctx context.Context, userID string) (*domain.UserRankEntry, error)
	PutUserRanks(ctx context.Context, entries []domain.UserRankEntry) error
	DeleteUserRanksBefore(ctx context.Context, version int64) (int64, error)
	DeleteUserRank(ctx context.Context, userID string) error
}

type LeaseStore interface {
	Acquire(ctx context.Context, name, holderID string, ttl time.Duration) error
	Release(ctx context.Context, name, holderID string) error
}

var (
	_ TaskSource       = (*repository.TaskRepository)(nil)
	_ ProfileSource    = (*repository.ProfileRepository)(nil)
	_ SnapshotStore    = (*repository.AnalyticsRepository)(nil)
	_ LeaderboardStore = (*repository.LeaderboardRepository)(nil)
	_ LeaseStore       = (*repository.LeaseRepository)(nil)
)
