// Package domain defines the business logic for the DeskFit backend.
package domain

import (
	"errors"
	"time"
)

// ErrProfileNotFound is returned when no profile exists for the acting user.
var ErrProfileNotFound = errors.New("profile not found")

// Difficulty grades an exercise in the catalog.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// RequirementType selects which statistic an achievement threshold applies to.
type RequirementType string

const (
	RequirementExercisesCompleted RequirementType = "exercises_completed"
	RequirementStreak             RequirementType = "streak"
	RequirementMinutesExercised   RequirementType = "minutes_exercised"
)

// Profile holds per-user aggregate statistics. It is mutated only by the
// completion recorder; longest_streak never drops below current_streak.
type Profile struct {
	UserID                  string
	DisplayName             string
	CurrentStreak           int
	LongestStreak           int
	TotalExercisesCompleted int
	TotalMinutesExercised   int
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// Stats extracts the aggregate counters from a profile.
func (p Profile) Stats() ProfileStats {
	return ProfileStats{
		TotalExercisesCompleted: p.TotalExercisesCompleted,
		TotalMinutesExercised:   p.TotalMinutesExercised,
		CurrentStreak:           p.CurrentStreak,
		LongestStreak:           p.LongestStreak,
	}
}

// ProfileStats is the aggregate counter set written back after a completion.
type ProfileStats struct {
	TotalExercisesCompleted int
	TotalMinutesExercised   int
	CurrentStreak           int
	LongestStreak           int
}

// Exercise is immutable catalog reference data.
type Exercise struct {
	ID              string
	Name            string
	Description     string
	Category        string
	DurationSeconds int
	Difficulty      Difficulty
	TargetArea      string
	Instructions    []string
}

// ActivityLog is the append-only record of one completed exercise instance.
type ActivityLog struct {
	ID               string
	UserID           string
	ExerciseID       string
	CompletedAt      time.Time
	DurationSeconds  int
	DifficultyRating *int
	Notes            *string
	CreatedAt        time.Time
}

// Achievement is an immutable catalog entry describing an unlock threshold.
type Achievement struct {
	ID               string
	Name             string
	Description      string
	RequirementType  RequirementType
	RequirementValue int
}

// Satisfied reports whether the stats cross the achievement threshold.
func (a Achievement) Satisfied(stats ProfileStats) bool {
	switch a.RequirementType {
	case RequirementExercisesCompleted:
		return stats.TotalExercisesCompleted >= a.RequirementValue
	case RequirementStreak:
		return stats.CurrentStreak >= a.RequirementValue
	case RequirementMinutesExercised:
		return stats.TotalMinutesExercised >= a.RequirementValue
	}
	return false
}

// UserAchievement records a monotonic, never-revoked unlock.
type UserAchievement struct {
	UserID        string
	AchievementID string
	UnlockedAt    time.Time
}

// DailyRecommendation caches one generated exercise set per user per UTC day.
type DailyRecommendation struct {
	UserID          string
	RecommendedDate time.Time
	ExerciseIDs     []string
	CreatedAt       time.Time
}

// Cursor models the pagination token for activity history listings.
type Cursor struct {
	CompletedAt time.Time
	ID          string
}
