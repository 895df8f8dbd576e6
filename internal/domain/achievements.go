package domain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"example.com/deskfit/internal/observability"
)

// AchievementRepository captures the persistence operations the evaluator
// needs. UnlockAchievement must be an idempotent insert that ignores
// duplicates, so re-evaluation can never unlock twice.
type AchievementRepository interface {
	ListAchievements(ctx context.Context) ([]Achievement, error)
	ListUnlockedAchievementIDs(ctx context.Context, userID string) (map[string]struct{}, error)
	UnlockAchievement(ctx context.Context, userID, achievementID string, unlockedAt time.Time) error
}

// EvaluatorOption configures optional behaviour of the Evaluator.
type EvaluatorOption func(*Evaluator)

// WithEvaluatorClock overrides the time source, for tests.
func WithEvaluatorClock(now func() time.Time) EvaluatorOption {
	return func(e *Evaluator) { e.now = now }
}

// WithEvaluatorLogger overrides the logger.
func WithEvaluatorLogger(logger *log.Logger) EvaluatorOption {
	return func(e *Evaluator) { e.logger = logger }
}

// Evaluator tests achievement thresholds against fresh profile stats and
// records unlocks.
type Evaluator struct {
	repo   AchievementRepository
	logger *log.Logger
	now    func() time.Time
}

// NewEvaluator constructs an Evaluator.
func NewEvaluator(repo AchievementRepository, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		repo:   repo,
		logger: log.New(log.Writer(), "[achievements] ", log.LstdFlags),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvaluateAndUnlock unlocks every locked achievement whose threshold the
// stats now satisfy. Order is immaterial; an insert failure for one
// achievement does not stop evaluation of the others. It returns the ids
// unlocked in this pass alongside any joined insert errors.
func (e *Evaluator) EvaluateAndUnlock(ctx context.Context, userID string, stats ProfileStats) ([]string, error) {
	catalog, err := e.repo.ListAchievements(ctx)
	if err != nil {
		return nil, fmt.Errorf("load achievement catalog: %w", err)
	}

	unlocked, err := e.repo.ListUnlockedAchievementIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load unlocked achievements: %w", err)
	}

	var (
		newly      []string
		unlockErrs error
	)
	for _, achievement := range catalog {
		if _, done := unlocked[achievement.ID]; done {
			continue
		}
		if !achievement.Satisfied(stats) {
			continue
		}
		if err := e.repo.UnlockAchievement(ctx, userID, achievement.ID, e.now().UTC()); err != nil {
			unlockErrs = errors.Join(unlockErrs, fmt.Errorf("unlock %s: %w", achievement.ID, err))
			continue
		}
		newly = append(newly, achievement.ID)
		observability.RecordAchievementUnlocked(string(achievement.RequirementType))
	}

	return newly, unlockErrs
}
