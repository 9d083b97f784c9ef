package constants

import "time"

const (
	DefaultRefreshInterval = 10 * time.Minute
	DefaultLeaseTTL        = 15 * time.Minute
	RefreshLeaseName       = "leaderboard-refresh"
)

const (
	ProfileAPITimeout = 5 * time.Second
	DatabaseTimeout   = 5 * time.Second
	RequestTimeout    = 30 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	// GlobalTopSize is the number of users stored in the GLOBAL_TOP_100 record.
	GlobalTopSize = 100
	// MidTierLimit is the last rank that gets an individual USER_RANK entry.
	MidTierLimit = 500
	// MaxBatchWrite mirrors the storage batch-write limit.
	MaxBatchWrite = 25

	ScanPageSize = 500
	MaxScanPages = 10_000

	DefaultEnrichConcurrency = 8
)

const (
	ShutdownTimeout = 5 * time.Second
)
