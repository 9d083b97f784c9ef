package server

import (
	"time"

	"enfora/internal/domain"
)

type UserRequest struct {
	UserID string `json:"userId"`
}

type AnalyticsResponse struct {
	Analytics *domain.AnalyticsSnapshot `json:"analytics"`
}

type DeleteAnalyticsResponse struct {
	UserID  string `json:"userId"`
	Deleted bool   `json:"deleted"`
}

type Top100Request struct{}

type Top100Response struct {
	Rankings    []domain.LeaderboardEntry `json:"rankings"`
	LastUpdated *time.Time                `json:"lastUpdated"`
	TotalUsers  int                       `json:"totalUsers"`
}

type MyRankRequest struct{}

// RankResponse carries Ranked=false with a message for users that have no
// reliability score yet.
type RankResponse struct {
	Ranked  bool             `json:"ranked"`
	Message string           `json:"message,omitempty"`
	Rank    *domain.UserRank `json:"rank,omitempty"`
}

const noRankingMessage = "no ranking yet"
