package scoring

import (
	"sort"

	"enfora/internal/domain"
)

// Rank orders users by score (desc, ties by userId asc) and assigns
// competition ranks: equal scores share a rank and the next distinct score
// resumes at its 1-based position (100, 100, 90 -> 1, 1, 3).
// Users with a non-positive score are left out. The input is not modified.
func Rank(scores []domain.UserScore) []domain.RankedUser {
	sorted := make([]domain.UserScore, 0, len(scores))
	for _, s := range scores {
		if s.ReliabilityScore > 0 {
			sorted = append(sorted, s)
		}
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ReliabilityScore != sorted[j].ReliabilityScore {
			return sorted[i].ReliabilityScore > sorted[j].ReliabilityScore
		}
		return sorted[i].UserID < sorted[j].UserID
	})

	ranked := make([]domain.RankedUser, len(sorted))
	currentRank := 1
	var previous *int
	for i, s := range sorted {
		if previous != nil && s.ReliabilityScore != *previous {
			currentRank = i + 1
		}
		ranked[i] = domain.RankedUser{
			UserID:           s.UserID,
			ReliabilityScore: s.ReliabilityScore,
			Rank:             currentRank,
		}
		score := s.ReliabilityScore
		previous = &score
	}
	return ranked
}
