package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"enfora/internal/domain"

	"github.com/rs/zerolog"
)

type ProfileRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewProfileRepository(sqlDB *sql.DB, logger zerolog.Logger) *ProfileRepository {
	return &ProfileRepository{db: sqlDB, logger: logger}
}

// FindProfileByUserID returns nil, nil when the user has no profile.
func (r *ProfileRepository) FindProfileByUserID(ctx context.Context, userID string) (*domain.Profile, error) {
	var (
		p    domain.Profile
		tags string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT username, display_name, profile_picture_url, tags FROM profiles WHERE user_id = ?`, userID,
	).Scan(&p.Username, &p.DisplayName, &p.ProfilePictureURL, &tags)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile for %s: %w", userID, err)
	}

	p.Tags = []string{}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags for %s: %w", userID, err)
		}
	}
	return &p, nil
}

func (r *ProfileRepository) Upsert(ctx context.Context, userID string, p domain.Profile) error {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags for %s: %w", userID, err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, username, display_name, profile_picture_url, tags)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			username = excluded.username,
			display_name = excluded.display_name,
			profile_picture_url = excluded.profile_picture_url,
			tags = excluded.tags`,
		userID, p.Username, p.DisplayName, p.ProfilePictureURL, string(tags),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile for %s: %w", userID, err)
	}
	return nil
}
