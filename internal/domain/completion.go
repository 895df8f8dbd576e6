package domain

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
)

// StreakSnapshot is what the repository observes inside the completion
// transaction, after the new activity log has been inserted.
type StreakSnapshot struct {
	Profile Profile
	// ActiveYesterday reports whether any log falls in yesterday's UTC window.
	ActiveYesterday bool
	// FirstToday reports whether the inserted log is the only one in today's
	// UTC window.
	FirstToday bool
}

// CompletionRepository captures the persistence operations the completion
// recorder needs. CreateCompletion must run the log insert, the snapshot
// reads, and the profile update in one transaction so two completions by the
// same user cannot both observe "first completion today".
type CompletionRepository interface {
	FindLogByIdempotency(ctx context.Context, userID, idempotencyKey string) (*ActivityLog, error)
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	CreateCompletion(ctx context.Context, entry ActivityLog, idempotencyKey string, next func(StreakSnapshot) ProfileStats) (ProfileStats, error)
}

// AchievementSink evaluates achievement thresholds after a completion.
type AchievementSink interface {
	EvaluateAndUnlock(ctx context.Context, userID string, stats ProfileStats) ([]string, error)
}

// CompletionInput captures the payload from the API layer.
type CompletionInput struct {
	UserID           string
	ExerciseID       string
	DurationSeconds  int
	DifficultyRating *int
	Notes            *string
	IdempotencyKey   string
}

// CompletionResult reports the updated stats and any achievements the
// completion unlocked.
type CompletionResult struct {
	LogID                  string
	Stats                  ProfileStats
	UnlockedAchievementIDs []string
}

// CompletionOption configures optional behaviour of the CompletionService.
type CompletionOption func(*CompletionService)

// WithCompletionClock overrides the time source, for tests.
func WithCompletionClock(now func() time.Time) CompletionOption {
	return func(s *CompletionService) { s.now = now }
}

// WithCompletionLogger overrides the logger used for best-effort failures.
func WithCompletionLogger(logger *log.Logger) CompletionOption {
	return func(s *CompletionService) { s.logger = logger }
}

// CompletionService records exercise completions and maintains the per-user
// aggregate statistics.
type CompletionService struct {
	repo         CompletionRepository
	achievements AchievementSink
	logger       *log.Logger
	now          func() time.Time
}

// NewCompletionService constructs a CompletionService.
func NewCompletionService(repo CompletionRepository, achievements AchievementSink, opts ...CompletionOption) *CompletionService {
	s := &CompletionService{
		repo:         repo,
		achievements: achievements,
		logger:       log.New(log.Writer(), "[completion] ", log.LstdFlags),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordCompletion appends an activity log, recomputes the profile counters
// and streak in a single transaction, then evaluates achievements
// best-effort. The boolean result reports an idempotent replay.
func (s *CompletionService) RecordCompletion(ctx context.Context, input CompletionInput) (*CompletionResult, bool, error) {
	if input.IdempotencyKey != "" {
		existing, err := s.repo.FindLogByIdempotency(ctx, input.UserID, input.IdempotencyKey)
		if err != nil {
			return nil, false, fmt.Errorf("idempotency lookup: %w", err)
		}
		if existing != nil {
			profile, err := s.repo.GetProfile(ctx, input.UserID)
			if err != nil {
				return nil, false, err
			}
			if profile == nil {
				return nil, false, ErrProfileNotFound
			}
			return &CompletionResult{LogID: existing.ID, Stats: profile.Stats()}, true, nil
		}
	}

	now := s.now().UTC()
	entry := ActivityLog{
		ID:               uuid.NewString(),
		UserID:           input.UserID,
		ExerciseID:       input.ExerciseID,
		CompletedAt:      now,
		DurationSeconds:  input.DurationSeconds,
		DifficultyRating: input.DifficultyRating,
		Notes:            input.Notes,
		CreatedAt:        now,
	}

	stats, err := s.repo.CreateCompletion(ctx, entry, input.IdempotencyKey, func(snap StreakSnapshot) ProfileStats {
		return nextStats(snap, input.DurationSeconds)
	})
	if err != nil {
		return nil, false, err
	}

	result := &CompletionResult{LogID: entry.ID, Stats: stats}

	// Unlocks are best-effort and eventually consistent; a failure here must
	// not fail the completion.
	unlocked, err := s.achievements.EvaluateAndUnlock(ctx, input.UserID, stats)
	if err != nil {
		s.logger.Printf("achievement evaluation failed (user=%s): %v", input.UserID, err)
	}
	result.UnlockedAchievementIDs = unlocked

	return result, false, nil
}

// nextStats derives the updated counters from the in-transaction snapshot.
func nextStats(snap StreakSnapshot, durationSeconds int) ProfileStats {
	streak := NextStreak(snap.Profile.CurrentStreak, snap.FirstToday, snap.ActiveYesterday)
	longest := snap.Profile.LongestStreak
	if streak > longest {
		longest = streak
	}
	return ProfileStats{
		TotalExercisesCompleted: snap.Profile.TotalExercisesCompleted + 1,
		TotalMinutesExercised:   snap.Profile.TotalMinutesExercised + minutesOf(durationSeconds),
		CurrentStreak:           streak,
		LongestStreak:           longest,
	}
}

func minutesOf(durationSeconds int) int {
	return int(math.Round(float64(durationSeconds) / 60))
}
