package outbox

const workoutCompletedSchema = `{
  "type": "object",
  "title": "WorkoutCompleted",
  "properties": {
    "log_id": {"type": "string"},
    "user_id": {"type": "string"},
    "exercise_id": {"type": "string"},
    "completed_at": {"type": "string", "format": "date-time"},
    "duration_seconds": {"type": "integer"},
    "difficulty_rating": {"type": "integer"}
  },
  "required": ["log_id", "user_id", "exercise_id", "completed_at", "duration_seconds"],
  "additionalProperties": false
}`

const profileStatsUpdatedSchema = `{
  "type": "object",
  "title": "ProfileStatsUpdated",
  "properties": {
    "user_id": {"type": "string"},
    "total_exercises_completed": {"type": "integer"},
    "total_minutes_exercised": {"type": "integer"},
    "current_streak": {"type": "integer"},
    "longest_streak": {"type": "integer"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "total_exercises_completed", "total_minutes_exercised", "current_streak", "longest_streak", "occurred_at"],
  "additionalProperties": false
}`

const achievementUnlockedSchema = `{
  "type": "object",
  "title": "AchievementUnlocked",
  "properties": {
    "user_id": {"type": "string"},
    "achievement_id": {"type": "string"},
    "unlocked_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "achievement_id", "unlocked_at"],
  "additionalProperties": false
}`
