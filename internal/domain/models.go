package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Money amounts are serialized as JSON numbers, both in responses and in
// the cached snapshot payloads. Decoding accepts numbers and strings.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskReview    TaskStatus = "review"
	TaskRejected  TaskStatus = "rejected"
)

const StakeDestinationCharity = "charity"

// Task is read from the task store; the scoring code never writes it.
type Task struct {
	UserID           string
	TaskID           string
	Status           TaskStatus
	StakeAmount      decimal.Decimal
	StakeDestination string
	Deadline         *time.Time
	CompletedAt      *time.Time
	FailedAt         *time.Time
}

// Metrics is the computed part of an analytics snapshot.
type Metrics struct {
	ReliabilityScore                    int             `json:"reliabilityScore"`
	DisciplineScore                     int             `json:"disciplineScore"`
	CompletionRate                      float64         `json:"completionRate"`
	AverageCompletionTimeBeforeDeadline float64         `json:"averageCompletionTimeBeforeDeadline"`
	CurrentCompletionStreak             int             `json:"currentCompletionStreak"`
	TotalStakeLost                      decimal.Decimal `json:"totalStakeLost"`
	TotalStakeAtRisk                    decimal.Decimal `json:"totalStakeAtRisk"`
	AverageStakePerTask                 decimal.Decimal `json:"averageStakePerTask"`
	TotalMoneyToCharity                 decimal.Decimal `json:"totalMoneyToCharity"`
	FinishedTasksCount                  int             `json:"finishedTasksCount"`
	PendingTasksCount                   int             `json:"pendingTasksCount"`
}

type AnalyticsSnapshot struct {
	UserID string `json:"userId"`
	Metrics
	LastUpdated time.Time `json:"lastUpdated"`
}

type UserScore struct {
	UserID           string `json:"userId"`
	ReliabilityScore int    `json:"reliabilityScore"`
}

type RankedUser struct {
	UserID           string `json:"userId"`
	ReliabilityScore int    `json:"reliabilityScore"`
	Rank             int    `json:"rank"`
}

type Profile struct {
	Username          string   `json:"username"`
	DisplayName       string   `json:"displayName"`
	ProfilePictureURL string   `json:"profilePictureUrl,omitempty"`
	Tags              []string `json:"tags"`
}

// UnknownProfile stands in for a profile that could not be looked up.
func UnknownProfile() Profile {
	return Profile{
		Username:    "unknown",
		DisplayName: "Unknown User",
		Tags:        []string{},
	}
}

type LeaderboardEntry struct {
	RankedUser
	Profile
}

const (
	CacheTypeGlobalTop100 = "GLOBAL_TOP_100"
	CacheTypeUserRank     = "USER_RANK"
)

func UserRankCacheKey(userID string) string {
	return CacheTypeUserRank + "#" + userID
}

type GlobalLeaderboard struct {
	CacheType   string             `json:"cacheType"`
	LastUpdated time.Time          `json:"lastUpdated"`
	Rankings    []LeaderboardEntry `json:"rankings"`
	TotalUsers  int                `json:"totalUsers"`
	Version     int64              `json:"version"`
}

type UserRankEntry struct {
	CacheType   string    `json:"cacheType"`
	LastUpdated time.Time `json:"lastUpdated"`
	LeaderboardEntry
	TotalUsers int   `json:"totalUsers"`
	Version    int64 `json:"version"`
}

type RankSource string

const (
	RankSourceTop100   RankSource = "top100"
	RankSourceCached   RankSource = "cached"
	RankSourceComputed RankSource = "computed"
)

// UserRank is the answer to a rank lookup. TotalUsers is nil when the rank
// was computed on demand.
type UserRank struct {
	LeaderboardEntry
	TotalUsers *int       `json:"totalUsers"`
	Source     RankSource `json:"source"`
}
