package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"enfora/internal/constants"
	"enfora/internal/domain"

	"github.com/rs/zerolog"
)

// ErrBatchTooLarge is returned when a batch write exceeds the storage limit.
var ErrBatchTooLarge = fmt.Errorf("batch exceeds %d items", constants.MaxBatchWrite)

type LeaderboardRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewLeaderboardRepository(sqlDB *sql.DB, logger zerolog.Logger) *LeaderboardRepository {
	return &LeaderboardRepository{db: sqlDB, logger: logger}
}

// PutGlobal overwrites the single GLOBAL_TOP_100 row.
func (r *LeaderboardRepository) PutGlobal(ctx context.Context, g *domain.GlobalLeaderboard) error {
	payload, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to encode global leaderboard: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO leaderboard_cache (cache_key, cache_type, user_id, payload, version, last_updated)
		VALUES (?, ?, NULL, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			payload = excluded.payload,
			version = excluded.version,
			last_updated = excluded.last_updated`,
		domain.CacheTypeGlobalTop100, domain.CacheTypeGlobalTop100, string(payload), g.Version, g.LastUpdated.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to write global leaderboard: %w", err)
	}
	return nil
}

// LatestGlobal returns the most recent GLOBAL_TOP_100 record, or nil when
// the cache has never been populated.
func (r *LeaderboardRepository) LatestGlobal(ctx context.Context) (*domain.GlobalLeaderboard, error) {
	var payload string
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM leaderboard_cache
		WHERE cache_type = ?
		ORDER BY version DESC
		LIMIT 1`,
		domain.CacheTypeGlobalTop100,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read global leaderboard: %w", err)
	}

	var g domain.GlobalLeaderboard
	if err := json.Unmarshal([]byte(payload), &g); err != nil {
		return nil, fmt.Errorf("failed to decode global leaderboard: %w", err)
	}
	return &g, nil
}

// GetUserRank reads the USER_RANK#<userId> entry, or nil if absent.
func (r *LeaderboardRepository) GetUserRank(ctx context.Context, userID string) (*domain.UserRankEntry, error) {
	var payload string
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM leaderboard_cache WHERE cache_key = ?`,
		domain.UserRankCacheKey(userID),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rank entry for %s: %w", userID, err)
	}

	var e domain.UserRankEntry
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return nil, fmt.Errorf("failed to decode rank entry for %s: %w", userID, err)
	}
	return &e, nil
}

// PutUserRanks writes up to MaxBatchWrite entries atomically.
func (r *LeaderboardRepository) PutUserRanks(ctx context.Context, entries []domain.UserRankEntry) error {
	if len(entries) > constants.MaxBatchWrite {
		return fmt.Errorf("%w: got %d", ErrBatchTooLarge, len(entries))
	}
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO leaderboard_cache (cache_key, cache_type, user_id, payload, version, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			payload = excluded.payload,
			version = excluded.version,
			last_updated = excluded.last_updated`)
	if err != nil {
		return fmt.Errorf("failed to prepare rank entry insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode rank entry for %s: %w", e.UserID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			domain.UserRankCacheKey(e.UserID), domain.CacheTypeUserRank, e.UserID,
			string(payload), e.Version, e.LastUpdated.UTC(),
		); err != nil {
			return fmt.Errorf("failed to write rank entry for %s: %w", e.UserID, err)
		}
	}

	return tx.Commit()
}

// DeleteUserRanksBefore removes individual rank entries written by runs
// older than version. It returns the number of entries removed.
func (r *LeaderboardRepository) DeleteUserRanksBefore(ctx context.Context, version int64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM leaderboard_cache WHERE cache_type = ? AND version < ?`,
		domain.CacheTypeUserRank, version,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge stale rank entries: %w", err)
	}
	return res.RowsAffected()
}

// DeleteUserRank removes a single user's rank entry.
func (r *LeaderboardRepository) DeleteUserRank(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM leaderboard_cache WHERE cache_key = ?`, domain.UserRankCacheKey(userID),
	); err != nil {
		return fmt.Errorf("failed to delete rank entry for %s: %w", userID, err)
	}
	return nil
}
