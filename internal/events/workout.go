// Package events defines the payloads published through the outbox.
package events

import "time"

// WorkoutCompleted is emitted when an exercise completion is recorded.
type WorkoutCompleted struct {
	LogID            string    `json:"log_id"`
	UserID           string    `json:"user_id"`
	ExerciseID       string    `json:"exercise_id"`
	CompletedAt      time.Time `json:"completed_at"`
	DurationSeconds  int       `json:"duration_seconds"`
	DifficultyRating *int      `json:"difficulty_rating,omitempty"`
}

// ProfileStatsUpdated carries the profile counters written by a completion,
// for downstream dashboards and leaderboards.
type ProfileStatsUpdated struct {
	UserID                  string    `json:"user_id"`
	TotalExercisesCompleted int       `json:"total_exercises_completed"`
	TotalMinutesExercised   int       `json:"total_minutes_exercised"`
	CurrentStreak           int       `json:"current_streak"`
	LongestStreak           int       `json:"longest_streak"`
	OccurredAt              time.Time `json:"occurred_at"`
}

// AchievementUnlocked is emitted once per (user, achievement) unlock.
type AchievementUnlocked struct {
	UserID        string    `json:"user_id"`
	AchievementID string    `json:"achievement_id"`
	UnlockedAt    time.Time `json:"unlocked_at"`
}
