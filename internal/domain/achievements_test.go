package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeAchievementRepo struct {
	catalog  []Achievement
	unlocked map[string]struct{}

	unlockErr map[string]error
	inserts   []string
}

func (f *fakeAchievementRepo) ListAchievements(context.Context) ([]Achievement, error) {
	return f.catalog, nil
}

func (f *fakeAchievementRepo) ListUnlockedAchievementIDs(context.Context, string) (map[string]struct{}, error) {
	if f.unlocked == nil {
		return map[string]struct{}{}, nil
	}
	return f.unlocked, nil
}

func (f *fakeAchievementRepo) UnlockAchievement(_ context.Context, _, achievementID string, _ time.Time) error {
	if err := f.unlockErr[achievementID]; err != nil {
		return err
	}
	f.inserts = append(f.inserts, achievementID)
	return nil
}

func testCatalog() []Achievement {
	return []Achievement{
		{ID: "first-steps", RequirementType: RequirementExercisesCompleted, RequirementValue: 1},
		{ID: "three-day-streak", RequirementType: RequirementStreak, RequirementValue: 3},
		{ID: "hour-of-power", RequirementType: RequirementMinutesExercised, RequirementValue: 60},
		{ID: "century-club", RequirementType: RequirementExercisesCompleted, RequirementValue: 100},
	}
}

func TestEvaluateAndUnlockUnlocksSatisfied(t *testing.T) {
	repo := &fakeAchievementRepo{catalog: testCatalog()}
	evaluator := NewEvaluator(repo, WithEvaluatorLogger(discardLogger()))

	newly, err := evaluator.EvaluateAndUnlock(context.Background(), "user-1", ProfileStats{
		TotalExercisesCompleted: 5,
		TotalMinutesExercised:   75,
		CurrentStreak:           3,
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"first-steps", "three-day-streak", "hour-of-power"}, newly)
	require.ElementsMatch(t, newly, repo.inserts)
}

func TestEvaluateAndUnlockSkipsAlreadyUnlocked(t *testing.T) {
	repo := &fakeAchievementRepo{
		catalog:  testCatalog(),
		unlocked: map[string]struct{}{"first-steps": {}},
	}
	evaluator := NewEvaluator(repo, WithEvaluatorLogger(discardLogger()))

	newly, err := evaluator.EvaluateAndUnlock(context.Background(), "user-1", ProfileStats{
		TotalExercisesCompleted: 2,
	})
	require.NoError(t, err)
	require.Empty(t, newly)
	require.Empty(t, repo.inserts)
}

func TestEvaluateAndUnlockContinuesPastInsertFailure(t *testing.T) {
	boom := errors.New("insert failed")
	repo := &fakeAchievementRepo{
		catalog:   testCatalog(),
		unlockErr: map[string]error{"first-steps": boom},
	}
	evaluator := NewEvaluator(repo, WithEvaluatorLogger(discardLogger()))

	newly, err := evaluator.EvaluateAndUnlock(context.Background(), "user-1", ProfileStats{
		TotalExercisesCompleted: 1,
		CurrentStreak:           3,
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, []string{"three-day-streak"}, newly)
}

func TestAchievementSatisfied(t *testing.T) {
	stats := ProfileStats{
		TotalExercisesCompleted: 10,
		TotalMinutesExercised:   59,
		CurrentStreak:           7,
	}

	require.True(t, Achievement{RequirementType: RequirementExercisesCompleted, RequirementValue: 10}.Satisfied(stats))
	require.False(t, Achievement{RequirementType: RequirementExercisesCompleted, RequirementValue: 11}.Satisfied(stats))
	require.True(t, Achievement{RequirementType: RequirementStreak, RequirementValue: 7}.Satisfied(stats))
	require.False(t, Achievement{RequirementType: RequirementMinutesExercised, RequirementValue: 60}.Satisfied(stats))
	require.False(t, Achievement{RequirementType: "unknown", RequirementValue: 0}.Satisfied(stats))
}
