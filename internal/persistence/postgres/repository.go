package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/deskfit/internal/domain"
	"example.com/deskfit/internal/events"
	"example.com/deskfit/internal/observability"
)

// Repository provides Postgres-backed persistence for profiles, activity
// logs, achievements, daily recommendations, and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const activityLogColumns = `log_id, user_id, exercise_id, completed_at, duration_seconds, difficulty_rating, notes, created_at`

// FindLogByIdempotency checks if a completion already exists for the supplied
// idempotency key.
func (r *Repository) FindLogByIdempotency(ctx context.Context, userID, idempotencyKey string) (*domain.ActivityLog, error) {
	if idempotencyKey == "" {
		return nil, nil
	}

	query := `SELECT ` + activityLogColumns + `
        FROM activity_logs WHERE user_id=$1 AND idempotency_key=$2`

	row := r.pool.QueryRow(ctx, query, userID, idempotencyKey)
	entry, err := scanActivityLog(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return entry, nil
}

// CreateCompletion inserts the activity log, observes the streak snapshot,
// and writes back the profile counters computed by next, all inside one
// transaction. The profile row lock closes the race where two completions by
// the same user both observe "first completion today". Outbox events are
// recorded in the same transaction.
func (r *Repository) CreateCompletion(ctx context.Context, entry domain.ActivityLog, idempotencyKey string, next func(domain.StreakSnapshot) domain.ProfileStats) (domain.ProfileStats, error) {
	var stats domain.ProfileStats

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return stats, err
	}
	defer tx.Rollback(ctx)

	const insertLog = `INSERT INTO activity_logs (log_id, user_id, exercise_id, completed_at, duration_seconds, difficulty_rating, notes, idempotency_key, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	if _, err := tx.Exec(ctx, insertLog,
		entry.ID,
		entry.UserID,
		entry.ExerciseID,
		entry.CompletedAt,
		entry.DurationSeconds,
		entry.DifficultyRating,
		entry.Notes,
		nullIfEmpty(idempotencyKey),
		entry.CreatedAt,
	); err != nil {
		// The log row references profiles, so a missing profile trips the
		// foreign key before the snapshot read gets a chance to report it.
		if isForeignKeyViolation(err, "activity_logs_user_id_fkey") {
			return stats, domain.ErrProfileNotFound
		}
		return stats, fmt.Errorf("insert activity log: %w", err)
	}

	const selectProfile = `SELECT user_id, display_name, current_streak, longest_streak, total_exercises_completed, total_minutes_exercised, created_at, updated_at
        FROM profiles WHERE user_id=$1 FOR UPDATE`

	var profile domain.Profile
	row := tx.QueryRow(ctx, selectProfile, entry.UserID)
	if err := row.Scan(&profile.UserID, &profile.DisplayName, &profile.CurrentStreak, &profile.LongestStreak, &profile.TotalExercisesCompleted, &profile.TotalMinutesExercised, &profile.CreatedAt, &profile.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return stats, domain.ErrProfileNotFound
		}
		return stats, err
	}

	todayStart, todayEnd := domain.DayWindow(entry.CompletedAt)
	yesterdayStart := todayStart.AddDate(0, 0, -1)

	var activeYesterday bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM activity_logs WHERE user_id=$1 AND completed_at >= $2 AND completed_at < $3)`,
		entry.UserID, yesterdayStart, todayStart,
	).Scan(&activeYesterday); err != nil {
		return stats, err
	}

	// Includes the row inserted above, so "first today" means count <= 1.
	var todayCount int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM activity_logs WHERE user_id=$1 AND completed_at >= $2 AND completed_at < $3`,
		entry.UserID, todayStart, todayEnd,
	).Scan(&todayCount); err != nil {
		return stats, err
	}

	stats = next(domain.StreakSnapshot{
		Profile:         profile,
		ActiveYesterday: activeYesterday,
		FirstToday:      todayCount <= 1,
	})

	const updateProfile = `UPDATE profiles
        SET total_exercises_completed=$2, total_minutes_exercised=$3, current_streak=$4, longest_streak=$5, updated_at=$6
        WHERE user_id=$1`

	if _, err := tx.Exec(ctx, updateProfile,
		entry.UserID,
		stats.TotalExercisesCompleted,
		stats.TotalMinutesExercised,
		stats.CurrentStreak,
		stats.LongestStreak,
		entry.CompletedAt,
	); err != nil {
		return stats, fmt.Errorf("update profile stats: %w", err)
	}

	if err := insertOutbox(ctx, tx, "activity_log", entry.ID, entry.UserID, "workout.completed", events.WorkoutCompleted{
		LogID:            entry.ID,
		UserID:           entry.UserID,
		ExerciseID:       entry.ExerciseID,
		CompletedAt:      entry.CompletedAt,
		DurationSeconds:  entry.DurationSeconds,
		DifficultyRating: entry.DifficultyRating,
	}); err != nil {
		return stats, err
	}

	if err := insertOutbox(ctx, tx, "profile", entry.UserID, entry.UserID, "profile.stats_updated", events.ProfileStatsUpdated{
		UserID:                  entry.UserID,
		TotalExercisesCompleted: stats.TotalExercisesCompleted,
		TotalMinutesExercised:   stats.TotalMinutesExercised,
		CurrentStreak:           stats.CurrentStreak,
		LongestStreak:           stats.LongestStreak,
		OccurredAt:              entry.CompletedAt,
	}); err != nil {
		return stats, err
	}

	if err := tx.Commit(ctx); err != nil {
		return stats, err
	}

	observability.RecordCompletionPersisted(entry.CompletedAt)
	return stats, nil
}

// GetProfile retrieves a profile; a missing row returns nil without error.
func (r *Repository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	const query = `SELECT user_id, display_name, current_streak, longest_streak, total_exercises_completed, total_minutes_exercised, created_at, updated_at
        FROM profiles WHERE user_id=$1`

	var profile domain.Profile
	row := r.pool.QueryRow(ctx, query, userID)
	if err := row.Scan(&profile.UserID, &profile.DisplayName, &profile.CurrentStreak, &profile.LongestStreak, &profile.TotalExercisesCompleted, &profile.TotalMinutesExercised, &profile.CreatedAt, &profile.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// ListExercises returns the full catalog ordered by name.
func (r *Repository) ListExercises(ctx context.Context) ([]domain.Exercise, error) {
	const query = `SELECT exercise_id, name, description, category, duration_seconds, difficulty, target_area, instructions
        FROM exercises ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exercises := make([]domain.Exercise, 0)
	for rows.Next() {
		var exercise domain.Exercise
		if err := rows.Scan(&exercise.ID, &exercise.Name, &exercise.Description, &exercise.Category, &exercise.DurationSeconds, &exercise.Difficulty, &exercise.TargetArea, &exercise.Instructions); err != nil {
			return nil, err
		}
		exercises = append(exercises, exercise)
	}
	return exercises, rows.Err()
}

// ListRecentLogsByUser returns the newest limit logs for the user.
func (r *Repository) ListRecentLogsByUser(ctx context.Context, userID string, limit int) ([]domain.ActivityLog, error) {
	query := `SELECT ` + activityLogColumns + `
        FROM activity_logs WHERE user_id=$1 ORDER BY completed_at DESC, log_id DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectActivityLogs(rows, limit)
}

// ListLogsByUser returns activity history with keyset pagination.
func (r *Repository) ListLogsByUser(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.ActivityLog, *domain.Cursor, error) {
	args := []interface{}{userID, limit}
	query := `SELECT ` + activityLogColumns + `
        FROM activity_logs WHERE user_id=$1`

	if cursor != nil {
		query += ` AND (completed_at, log_id) < ($3, $4)`
		args = append(args, cursor.CompletedAt, cursor.ID)
	}

	query += ` ORDER BY completed_at DESC, log_id DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	logs, err := collectActivityLogs(rows, limit)
	if err != nil {
		return nil, nil, err
	}

	var nextCursor *domain.Cursor
	if len(logs) == limit {
		last := logs[len(logs)-1]
		nextCursor = &domain.Cursor{CompletedAt: last.CompletedAt, ID: last.ID}
	}
	return logs, nextCursor, nil
}

// ListLogsInRange returns the user's logs inside [from, to).
func (r *Repository) ListLogsInRange(ctx context.Context, userID string, from, to time.Time) ([]domain.ActivityLog, error) {
	query := `SELECT ` + activityLogColumns + `
        FROM activity_logs WHERE user_id=$1 AND completed_at >= $2 AND completed_at < $3
        ORDER BY completed_at`

	rows, err := r.pool.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectActivityLogs(rows, 0)
}

// ListAchievements returns the achievement catalog ordered by threshold.
func (r *Repository) ListAchievements(ctx context.Context) ([]domain.Achievement, error) {
	const query = `SELECT achievement_id, name, description, requirement_type, requirement_value
        FROM achievements ORDER BY requirement_value`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	achievements := make([]domain.Achievement, 0)
	for rows.Next() {
		var achievement domain.Achievement
		if err := rows.Scan(&achievement.ID, &achievement.Name, &achievement.Description, &achievement.RequirementType, &achievement.RequirementValue); err != nil {
			return nil, err
		}
		achievements = append(achievements, achievement)
	}
	return achievements, rows.Err()
}

// ListUnlockedAchievementIDs returns the set of achievement ids the user has
// already unlocked.
func (r *Repository) ListUnlockedAchievementIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT achievement_id FROM user_achievements WHERE user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	unlocked := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		unlocked[id] = struct{}{}
	}
	return unlocked, rows.Err()
}

// ListUserAchievements returns the user's unlock records.
func (r *Repository) ListUserAchievements(ctx context.Context, userID string) ([]domain.UserAchievement, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, achievement_id, unlocked_at FROM user_achievements WHERE user_id=$1 ORDER BY unlocked_at`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	unlocks := make([]domain.UserAchievement, 0)
	for rows.Next() {
		var unlock domain.UserAchievement
		if err := rows.Scan(&unlock.UserID, &unlock.AchievementID, &unlock.UnlockedAt); err != nil {
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return unlocks, rows.Err()
}

// UnlockAchievement records an unlock idempotently. A duplicate is a no-op
// and publishes nothing.
func (r *Repository) UnlockAchievement(ctx context.Context, userID, achievementID string, unlockedAt time.Time) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO user_achievements (user_id, achievement_id, unlocked_at)
         VALUES ($1,$2,$3) ON CONFLICT (user_id, achievement_id) DO NOTHING`,
		userID, achievementID, unlockedAt,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() > 0 {
		aggregateID := fmt.Sprintf("%s:%s", userID, achievementID)
		if err := insertOutbox(ctx, tx, "user_achievement", aggregateID, userID, "achievement.unlocked", events.AchievementUnlocked{
			UserID:        userID,
			AchievementID: achievementID,
			UnlockedAt:    unlockedAt,
		}); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetDailyRecommendation looks up the cache entry for (user, day).
func (r *Repository) GetDailyRecommendation(ctx context.Context, userID string, day time.Time) (*domain.DailyRecommendation, error) {
	const query = `SELECT user_id, recommended_date, exercise_ids, created_at
        FROM daily_recommendations WHERE user_id=$1 AND recommended_date=$2`

	var rec domain.DailyRecommendation
	row := r.pool.QueryRow(ctx, query, userID, day)
	if err := row.Scan(&rec.UserID, &rec.RecommendedDate, &rec.ExerciseIDs, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// UpsertDailyRecommendation writes the cache entry, overwriting any partial
// row for the same (user, day).
func (r *Repository) UpsertDailyRecommendation(ctx context.Context, rec domain.DailyRecommendation) error {
	const stmt = `INSERT INTO daily_recommendations (user_id, recommended_date, exercise_ids, created_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (user_id, recommended_date) DO UPDATE
        SET exercise_ids = EXCLUDED.exercise_ids, created_at = EXCLUDED.created_at`

	_, err := r.pool.Exec(ctx, stmt, rec.UserID, rec.RecommendedDate, rec.ExerciseIDs, rec.CreatedAt)
	return err
}

func isForeignKeyViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503" && pgErr.ConstraintName == constraint
}

func insertOutbox(ctx context.Context, tx pgx.Tx, aggregateType, aggregateID, partitionKey, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta := eventCatalog[eventType]
	if meta.Topic == "" {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	dedupeKey := fmt.Sprintf("%s:%s", aggregateID, eventType)

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		aggregateType,
		aggregateID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		partitionKey,
		body,
		dedupeKey,
	)
	return err
}

func scanActivityLog(row pgx.Row) (*domain.ActivityLog, error) {
	var entry domain.ActivityLog
	if err := row.Scan(&entry.ID, &entry.UserID, &entry.ExerciseID, &entry.CompletedAt, &entry.DurationSeconds, &entry.DifficultyRating, &entry.Notes, &entry.CreatedAt); err != nil {
		return nil, err
	}
	return &entry, nil
}

func collectActivityLogs(rows pgx.Rows, capacity int) ([]domain.ActivityLog, error) {
	logs := make([]domain.ActivityLog, 0, capacity)
	for rows.Next() {
		var entry domain.ActivityLog
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.ExerciseID, &entry.CompletedAt, &entry.DurationSeconds, &entry.DifficultyRating, &entry.Notes, &entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	"workout.completed": {
		Topic:         "workout_events",
		SchemaSubject: "workout_events-value",
	},
	"profile.stats_updated": {
		Topic:         "profile_stats",
		SchemaSubject: "profile_stats-value",
	},
	"achievement.unlocked": {
		Topic:         "achievement_events",
		SchemaSubject: "achievement_events-value",
	},
}
