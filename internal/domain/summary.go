package domain

import (
	"context"
	"time"
)

// DaySummary aggregates one calendar day of activity.
type DaySummary struct {
	Date          time.Time
	ExerciseCount int
	TotalMinutes  int
}

// WeeklySummary aggregates the current Monday-start week.
type WeeklySummary struct {
	WeekStart      time.Time
	Days           []DaySummary
	TotalExercises int
	TotalMinutes   int
	ActiveDays     int
	AverageRating  float64
}

// SummaryRepository captures the range query behind the weekly summary.
type SummaryRepository interface {
	ListLogsInRange(ctx context.Context, userID string, from, to time.Time) ([]ActivityLog, error)
}

// SummaryService computes the weekly activity roll-up shown on the dashboard.
type SummaryService struct {
	repo SummaryRepository
	now  func() time.Time
}

// NewSummaryService constructs a SummaryService with an optional clock
// override for tests.
func NewSummaryService(repo SummaryRepository, now func() time.Time) *SummaryService {
	if now == nil {
		now = time.Now
	}
	return &SummaryService{repo: repo, now: now}
}

// WeekStart returns the UTC midnight of the Monday containing t.
func WeekStart(t time.Time) time.Time {
	day := DateOf(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// WeeklySummary aggregates the acting user's logs for the current week.
func (s *SummaryService) WeeklySummary(ctx context.Context, userID string) (*WeeklySummary, error) {
	start := WeekStart(s.now())
	end := start.AddDate(0, 0, 7)

	logs, err := s.repo.ListLogsInRange(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}

	summary := &WeeklySummary{WeekStart: start, Days: make([]DaySummary, 7)}
	for i := range summary.Days {
		summary.Days[i].Date = start.AddDate(0, 0, i)
	}

	ratingSum, ratingCount := 0, 0
	for _, entry := range logs {
		i := int(DateOf(entry.CompletedAt).Sub(start).Hours() / 24)
		if i < 0 || i > 6 {
			continue
		}
		minutes := minutesOf(entry.DurationSeconds)
		summary.Days[i].ExerciseCount++
		summary.Days[i].TotalMinutes += minutes
		summary.TotalExercises++
		summary.TotalMinutes += minutes
		if entry.DifficultyRating != nil {
			ratingSum += *entry.DifficultyRating
			ratingCount++
		}
	}

	for _, day := range summary.Days {
		if day.ExerciseCount > 0 {
			summary.ActiveDays++
		}
	}
	if ratingCount > 0 {
		summary.AverageRating = float64(ratingSum) / float64(ratingCount)
	}

	return summary, nil
}
