package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrLeaseHeld indicates another holder owns an unexpired lease.
var ErrLeaseHeld = errors.New("lease held by another holder")

type LeaseRepository struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

func NewLeaseRepository(sqlDB *sql.DB, logger zerolog.Logger) *LeaseRepository {
	return &LeaseRepository{db: sqlDB, logger: logger, now: time.Now}
}

// Acquire takes the named lease for holderID. The write only lands when no
// lease row exists or the existing one has expired.
func (r *LeaseRepository) Acquire(ctx context.Context, name, holderID string, ttl time.Duration) error {
	now := r.now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO leases (name, holder_id, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			holder_id = excluded.holder_id,
			expires_at = excluded.expires_at
		WHERE leases.expires_at <= ?`,
		name, holderID, now.Add(ttl).UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to acquire lease %s: %w", name, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to acquire lease %s: %w", name, err)
	}
	if n == 0 {
		return ErrLeaseHeld
	}

	r.logger.Debug().Str("lease", name).Str("holder", holderID).Dur("ttl", ttl).Msg("lease acquired")
	return nil
}

// Release drops the lease if holderID still owns it.
func (r *LeaseRepository) Release(ctx context.Context, name, holderID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM leases WHERE name = ? AND holder_id = ?`, name, holderID,
	); err != nil {
		return fmt.Errorf("failed to release lease %s: %w", name, err)
	}
	r.logger.Debug().Str("lease", name).Str("holder", holderID).Msg("lease released")
	return nil
}
