// Package scoring holds the pure computations behind user analytics and the
// leaderboard: the reliability score formula and competition ranking.
// Nothing in this package performs I/O.
package scoring

import (
	"math"
	"sort"
	"time"

	"enfora/internal/domain"

	"github.com/shopspring/decimal"
)

// Formula constants. Leaderboard continuity depends on these staying as-is.
const (
	ScoreMultiplier   = 100.0
	CompletionExp     = 1.5
	StreakCoefficient = 0.15
)

const msPerHour = 3_600_000

// Calculate derives every analytics metric from a user's full task list.
func Calculate(tasks []domain.Task) domain.Metrics {
	var completed, failed, pending, review []domain.Task
	for _, t := range tasks {
		switch t.Status {
		case domain.TaskCompleted:
			completed = append(completed, t)
		case domain.TaskFailed:
			failed = append(failed, t)
		case domain.TaskPending:
			pending = append(pending, t)
		case domain.TaskReview:
			review = append(review, t)
		}
	}

	discipline := len(completed) - len(failed)
	finished := len(completed) + len(failed)

	var completionRate float64
	if finished > 0 {
		completionRate = float64(len(completed)) / float64(finished) * 100
	}

	streak := currentStreak(completed, failed)

	m := domain.Metrics{
		DisciplineScore:                     discipline,
		CompletionRate:                      completionRate,
		AverageCompletionTimeBeforeDeadline: averageHoursEarly(completed),
		CurrentCompletionStreak:             streak,
		TotalStakeLost:                      sumStake(failed),
		TotalStakeAtRisk:                    sumStake(pending).Add(sumStake(review)),
		AverageStakePerTask:                 decimal.Zero,
		TotalMoneyToCharity:                 decimal.Zero,
		FinishedTasksCount:                  finished,
		PendingTasksCount:                   len(pending) + len(review),
	}

	if len(tasks) > 0 {
		m.AverageStakePerTask = sumStake(tasks).Div(decimal.NewFromInt(int64(len(tasks))))
	}

	for _, t := range failed {
		if t.StakeDestination == domain.StakeDestinationCharity {
			m.TotalMoneyToCharity = m.TotalMoneyToCharity.Add(t.StakeAmount)
		}
	}

	m.ReliabilityScore = ReliabilityScore(discipline, completionRate, len(completed), streak)
	return m
}

// ReliabilityScore combines discipline, completion rate, volume and streak
// multiplicatively:
//
//	100 * sqrt(max(discipline, 0)) * c^1.5 * ln(1+completed) * (1 + 0.15*ln(1+streak))
//
// where c is the completion rate as a fraction. A zero completion rate
// yields exactly 0.
func ReliabilityScore(discipline int, completionRate float64, completedCount, streak int) int {
	c := completionRate / 100
	if c <= 0 {
		return 0
	}

	disciplineTerm := math.Sqrt(float64(max(discipline, 0)))
	completionTerm := math.Pow(c, CompletionExp)
	volumeTerm := math.Log(1 + float64(completedCount))
	streakBonus := 1 + StreakCoefficient*math.Log(1+float64(streak))

	return int(math.Round(ScoreMultiplier * disciplineTerm * completionTerm * volumeTerm * streakBonus))
}

func averageHoursEarly(completed []domain.Task) float64 {
	var total float64
	var n int
	for _, t := range completed {
		if t.CompletedAt == nil || t.Deadline == nil {
			continue
		}
		hoursEarly := float64(t.Deadline.Sub(*t.CompletedAt).Milliseconds()) / msPerHour
		if hoursEarly >= 0 {
			total += hoursEarly
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

// currentStreak counts the completions at the head of the finished tasks,
// most recent first, stopping at the first failure.
func currentStreak(completed, failed []domain.Task) int {
	finished := make([]domain.Task, 0, len(completed)+len(failed))
	finished = append(finished, completed...)
	finished = append(finished, failed...)

	sort.SliceStable(finished, func(i, j int) bool {
		return finishedAt(finished[i]).After(finishedAt(finished[j]))
	})

	streak := 0
	for _, t := range finished {
		if t.Status != domain.TaskCompleted {
			break
		}
		streak++
	}
	return streak
}

func finishedAt(t domain.Task) time.Time {
	switch {
	case t.CompletedAt != nil:
		return *t.CompletedAt
	case t.FailedAt != nil:
		return *t.FailedAt
	default:
		return time.UnixMilli(0)
	}
}

func sumStake(tasks []domain.Task) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range tasks {
		sum = sum.Add(t.StakeAmount)
	}
	return sum
}
