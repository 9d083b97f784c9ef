package service

import (
	"context"
	"fmt"

	"enfora/internal/constants"
	"enfora/internal/domain"
	"enfora/internal/metrics"
	"enfora/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type profileEnricher struct {
	profiles    ProfileSource
	concurrency int
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// lookup never fails: a missing profile or a lookup error yields the
// placeholder profile.
func (e *profileEnricher) lookup(ctx context.Context, userID string) domain.Profile {
	p, err := e.profiles.FindProfileByUserID(ctx, userID)
	if err != nil {
		e.logger.Warn().Err(err).Str("user_id", userID).Msg("profile lookup failed, using placeholder")
		e.metrics.ProfileFallbacks.Inc()
		return domain.UnknownProfile()
	}
	if p == nil {
		e.logger.Debug().Str("user_id", userID).Msg("no profile found, using placeholder")
		e.metrics.ProfileFallbacks.Inc()
		return domain.UnknownProfile()
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return *p
}

// enrich attaches profiles to ranked users, preserving order.
func (e *profileEnricher) enrich(ctx context.Context, ranked []domain.RankedUser) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, len(ranked))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.concurrency, 1))
	for i, r := range ranked {
		g.Go(func() error {
			entries[i] = domain.LeaderboardEntry{RankedUser: r, Profile: e.lookup(gCtx, r.UserID)}
			return nil
		})
	}
	_ = g.Wait()

	return entries
}

// scanScores walks every snapshot with a score above minExclusive, handing
// each page to visit. Any page error aborts the scan.
func scanScores(ctx context.Context, store SnapshotStore, minExclusive int, visit func([]domain.UserScore)) error {
	cursor := ""
	for pages := 0; ; pages++ {
		if pages >= constants.MaxScanPages {
			return fmt.Errorf("%w: %d pages", ErrScanRunaway, pages)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := store.ScanScores(ctx, repository.ScanFilter{
			MinScoreExclusive: minExclusive,
			Cursor:            cursor,
			Limit:             constants.ScanPageSize,
		})
		if err != nil {
			return err
		}
		visit(page.Scores)

		if page.NextCursor == "" {
			return nil
		}
		cursor = page.NextCursor
	}
}
