package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"enfora/internal/config"
	"enfora/internal/constants"
	"enfora/internal/domain"
	"enfora/internal/metrics"
	"enfora/internal/repository"

	"github.com/rs/zerolog"
)

var errBoom = errors.New("boom")

type fakeTasks struct {
	tasks map[string][]domain.Task
	err   error
}

func (f *fakeTasks) GetTasksByUser(_ context.Context, userID string) ([]domain.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tasks[userID], nil
}

type fakeSnapshots struct {
	mu        sync.Mutex
	snaps     map[string]*domain.AnalyticsSnapshot
	upsertErr error
	scanErr   error
	scanCalls int
	// endless makes every page claim there is more to read.
	endless bool
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{snaps: map[string]*domain.AnalyticsSnapshot{}}
}

func (f *fakeSnapshots) setScore(userID string, score int) {
	f.snaps[userID] = &domain.AnalyticsSnapshot{UserID: userID, Metrics: domain.Metrics{ReliabilityScore: score}}
}

func (f *fakeSnapshots) Get(_ context.Context, userID string) (*domain.AnalyticsSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.snaps[userID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSnapshots) Upsert(_ context.Context, s *domain.AnalyticsSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	cp := *s
	f.snaps[s.UserID] = &cp
	return nil
}

func (f *fakeSnapshots) ScanScores(_ context.Context, filter repository.ScanFilter) (repository.ScorePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanCalls++
	if f.scanErr != nil {
		return repository.ScorePage{}, f.scanErr
	}
	if f.endless {
		return repository.ScorePage{NextCursor: "more"}, nil
	}

	ids := make([]string, 0, len(f.snaps))
	for id := range f.snaps {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var page repository.ScorePage
	for _, id := range ids {
		s := f.snaps[id]
		if id <= filter.Cursor || s.ReliabilityScore <= filter.MinScoreExclusive {
			continue
		}
		page.Scores = append(page.Scores, domain.UserScore{UserID: id, ReliabilityScore: s.ReliabilityScore})
		if len(page.Scores) == filter.Limit {
			page.NextCursor = id
			break
		}
	}
	return page, nil
}

func (f *fakeSnapshots) Delete(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.snaps, userID)
	return nil
}

type fakeBoard struct {
	mu           sync.Mutex
	global       *domain.GlobalLeaderboard
	ranks        map[string]domain.UserRankEntry
	putGlobalErr error
	globalWrites int
	batchCalls   int
	batchSizes   []int
	failBatches  map[int]bool
	onBatch      func(call int)
	purgedBefore int64
	purgeCalls   int
}

func newFakeBoard() *fakeBoard {
	return &fakeBoard{ranks: map[string]domain.UserRankEntry{}, failBatches: map[int]bool{}}
}

func (f *fakeBoard) PutGlobal(_ context.Context, g *domain.GlobalLeaderboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putGlobalErr != nil {
		return f.putGlobalErr
	}
	f.globalWrites++
	f.global = g
	return nil
}

func (f *fakeBoard) LatestGlobal(context.Context) (*domain.GlobalLeaderboard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.global, nil
}

func (f *fakeBoard) GetUserRank(_ context.Context, userID string) (*domain.UserRankEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.ranks[userID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (f *fakeBoard) PutUserRanks(_ context.Context, entries []domain.UserRankEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := f.batchCalls
	f.batchCalls++
	f.batchSizes = append(f.batchSizes, len(entries))
	if f.onBatch != nil {
		f.onBatch(call)
	}
	if len(entries) > constants.MaxBatchWrite {
		return repository.ErrBatchTooLarge
	}
	if f.failBatches[call] {
		return errBoom
	}
	for _, e := range entries {
		f.ranks[e.UserID] = e
	}
	return nil
}

func (f *fakeBoard) DeleteUserRanksBefore(_ context.Context, version int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purgedBefore = version
	f.purgeCalls++
	var n int64
	for id, e := range f.ranks {
		if e.Version < version {
			delete(f.ranks, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeBoard) DeleteUserRank(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.ranks, userID)
	return nil
}

type fakeLeases struct {
	mu       sync.Mutex
	holder   string
	acquired int
	released int
}

func (f *fakeLeases) Acquire(_ context.Context, _, holderID string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.holder != "" {
		return repository.ErrLeaseHeld
	}
	f.holder = holderID
	f.acquired++
	return nil
}

func (f *fakeLeases) Release(_ context.Context, _, holderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.holder == holderID {
		f.holder = ""
		f.released++
	}
	return nil
}

type fakeProfiles struct {
	failing map[string]bool
	missing map[string]bool
}

func (f *fakeProfiles) FindProfileByUserID(_ context.Context, userID string) (*domain.Profile, error) {
	if f.failing[userID] {
		return nil, errBoom
	}
	if f.missing[userID] {
		return nil, nil
	}
	return &domain.Profile{Username: "u_" + userID, DisplayName: "User " + userID, Tags: []string{"member"}}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		RefreshInterval:   time.Minute,
		RefreshLeaseTTL:   time.Minute,
		EnrichConcurrency: 4,
	}
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type refreshFixture struct {
	snapshots   *fakeSnapshots
	board       *fakeBoard
	leases      *fakeLeases
	profiles    *fakeProfiles
	metrics     *metrics.Metrics
	refresher   *LeaderboardRefresher
	leaderboard *LeaderboardService
}

func newRefreshFixture() *refreshFixture {
	f := &refreshFixture{
		snapshots: newFakeSnapshots(),
		board:     newFakeBoard(),
		leases:    &fakeLeases{},
		profiles:  &fakeProfiles{failing: map[string]bool{}, missing: map[string]bool{}},
		metrics:   metrics.New(),
	}
	cfg := testConfig()
	f.refresher = NewLeaderboardRefresher(f.snapshots, f.board, f.leases, f.profiles, cfg, f.metrics, zerolog.Nop())
	f.refresher.now = func() time.Time { return fixedNow }
	runs := 0
	f.refresher.newRunID = func() (string, error) {
		runs++
		return fmt.Sprintf("run-%d", runs), nil
	}
	f.leaderboard = NewLeaderboardService(f.snapshots, f.board, f.profiles, cfg, f.metrics, zerolog.Nop())
	return f
}

// seedUsers gives user-0000..user-(n-1) distinct descending scores so that
// user-%04d i holds rank i+1.
func (f *refreshFixture) seedUsers(n int) {
	for i := 0; i < n; i++ {
		f.snapshots.setScore(userName(i), 10_000-i)
	}
}

func userName(i int) string {
	return fmt.Sprintf("user-%04d", i)
}
