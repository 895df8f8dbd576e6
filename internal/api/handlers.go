// Package api exposes HTTP handlers for the DeskFit backend.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/deskfit/internal/auth"
	"example.com/deskfit/internal/domain"
	"example.com/deskfit/internal/persistence"
)

// Store captures the read-side queries the handlers serve directly, without a
// domain service in between.
type Store interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	ListExercises(ctx context.Context) ([]domain.Exercise, error)
	ListAchievements(ctx context.Context) ([]domain.Achievement, error)
	ListUserAchievements(ctx context.Context, userID string) ([]domain.UserAchievement, error)
	ListLogsByUser(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.ActivityLog, *domain.Cursor, error)
}

// Handler coordinates HTTP requests with the domain services.
type Handler struct {
	completions *domain.CompletionService
	recommend   *domain.RecommendationService
	summary     *domain.SummaryService
	store       Store
}

// NewHandler builds a Handler.
func NewHandler(completions *domain.CompletionService, recommend *domain.RecommendationService, summary *domain.SummaryService, store Store) *Handler {
	return &Handler{
		completions: completions,
		recommend:   recommend,
		summary:     summary,
		store:       store,
	}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/completions", h.completionsRoot)
	mux.HandleFunc("/v1/recommendations/today", h.todaysRecommendation)
	mux.HandleFunc("/v1/profile", h.profile)
	mux.HandleFunc("/v1/exercises", h.exercises)
	mux.HandleFunc("/v1/achievements", h.achievements)
	mux.HandleFunc("/v1/activity", h.activity)
	mux.HandleFunc("/v1/summary/weekly", h.weeklySummary)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) completionsRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	h.recordCompletion(w, r)
}

func (h *Handler) recordCompletion(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeWorkoutsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope workouts:write required")
		return
	}

	var req RecordCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")

	result, replay, err := h.completions.RecordCompletion(r.Context(), domain.CompletionInput{
		UserID:           claims.Subject,
		ExerciseID:       req.ExerciseID,
		DurationSeconds:  req.DurationSeconds,
		DifficultyRating: req.DifficultyRating,
		Notes:            req.Notes,
		IdempotencyKey:   idempotencyKey,
	})
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	resp := RecordCompletionResponse{
		LogID:                  result.LogID,
		Stats:                  toStatsView(result.Stats),
		UnlockedAchievementIDs: result.UnlockedAchievementIDs,
		Replay:                 replay,
	}

	status := http.StatusCreated
	if replay {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (h *Handler) todaysRecommendation(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireRead(w, r)
	if !ok {
		return
	}

	rec, err := h.recommend.TodaysRecommendation(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, RecommendationResponse{
		ExerciseIDs:  rec.ExerciseIDs,
		SessionTheme: rec.SessionTheme,
		Tip:          rec.Tip,
		Fallback:     rec.Fallback,
	})
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireRead(w, r)
	if !ok {
		return
	}

	profile, err := h.store.GetProfile(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if profile == nil {
		writeError(w, http.StatusNotFound, "not_found", "profile not found")
		return
	}

	writeJSON(w, http.StatusOK, ProfileView{
		UserID:                  profile.UserID,
		DisplayName:             profile.DisplayName,
		CurrentStreak:           profile.CurrentStreak,
		LongestStreak:           profile.LongestStreak,
		TotalExercisesCompleted: profile.TotalExercisesCompleted,
		TotalMinutesExercised:   profile.TotalMinutesExercised,
		CreatedAt:               profile.CreatedAt,
		UpdatedAt:               profile.UpdatedAt,
	})
}

func (h *Handler) exercises(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireRead(w, r); !ok {
		return
	}

	catalog, err := h.store.ListExercises(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]ExerciseView, 0, len(catalog))
	for _, exercise := range catalog {
		items = append(items, toExerciseView(exercise))
	}
	writeJSON(w, http.StatusOK, ListExercisesResponse{Items: items})
}

func (h *Handler) achievements(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireRead(w, r)
	if !ok {
		return
	}

	catalog, err := h.store.ListAchievements(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	unlocked, err := h.store.ListUserAchievements(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	unlockedAt := make(map[string]time.Time, len(unlocked))
	for _, ua := range unlocked {
		unlockedAt[ua.AchievementID] = ua.UnlockedAt
	}

	items := make([]AchievementView, 0, len(catalog))
	for _, achievement := range catalog {
		view := AchievementView{
			AchievementID:    achievement.ID,
			Name:             achievement.Name,
			Description:      achievement.Description,
			RequirementType:  string(achievement.RequirementType),
			RequirementValue: achievement.RequirementValue,
		}
		if at, ok := unlockedAt[achievement.ID]; ok {
			view.Unlocked = true
			view.UnlockedAt = &at
		}
		items = append(items, view)
	}
	writeJSON(w, http.StatusOK, ListAchievementsResponse{Items: items})
}

func (h *Handler) activity(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireRead(w, r)
	if !ok {
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > 100 {
				parsed = 100
			}
			limit = parsed
		}
	}

	cursorToken := r.URL.Query().Get("cursor")
	cursor, err := persistence.DecodeCursor(cursorToken)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	logs, next, err := h.store.ListLogsByUser(r.Context(), claims.Subject, cursor, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]ActivityLogView, 0, len(logs))
	for _, entry := range logs {
		items = append(items, toActivityLogView(entry))
	}
	writeJSON(w, http.StatusOK, ListActivityResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) weeklySummary(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireRead(w, r)
	if !ok {
		return
	}

	summary, err := h.summary.WeeklySummary(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	days := make([]DaySummaryView, 0, len(summary.Days))
	for _, day := range summary.Days {
		days = append(days, DaySummaryView{
			Date:          day.Date.Format("2006-01-02"),
			ExerciseCount: day.ExerciseCount,
			TotalMinutes:  day.TotalMinutes,
		})
	}
	writeJSON(w, http.StatusOK, WeeklySummaryResponse{
		WeekStart:      summary.WeekStart.Format("2006-01-02"),
		Days:           days,
		TotalExercises: summary.TotalExercises,
		TotalMinutes:   summary.TotalMinutes,
		ActiveDays:     summary.ActiveDays,
		AverageRating:  summary.AverageRating,
	})
}

// requireRead enforces method GET plus a read (or write) scope, returning the
// claims when the request may proceed.
func (h *Handler) requireRead(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return nil, false
	}
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if !claims.HasScope(auth.ScopeWorkoutsRead) && !claims.HasScope(auth.ScopeWorkoutsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope workouts:read required")
		return nil, false
	}
	return claims, true
}

// RecordCompletionRequest is the payload for POST /v1/completions.
type RecordCompletionRequest struct {
	ExerciseID       string  `json:"exercise_id"`
	DurationSeconds  int     `json:"duration_seconds"`
	DifficultyRating *int    `json:"difficulty_rating,omitempty"`
	Notes            *string `json:"notes,omitempty"`
}

// Validate ensures request correctness.
func (r RecordCompletionRequest) Validate() error {
	if strings.TrimSpace(r.ExerciseID) == "" {
		return errors.New("exercise_id is required")
	}
	if r.DurationSeconds <= 0 {
		return errors.New("duration_seconds must be > 0")
	}
	if r.DifficultyRating != nil && (*r.DifficultyRating < 1 || *r.DifficultyRating > 5) {
		return errors.New("difficulty_rating must be between 1 and 5")
	}
	return nil
}

// StatsView exposes the aggregate counters after a completion.
type StatsView struct {
	TotalExercisesCompleted int `json:"total_exercises_completed"`
	TotalMinutesExercised   int `json:"total_minutes_exercised"`
	CurrentStreak           int `json:"current_streak"`
	LongestStreak           int `json:"longest_streak"`
}

// RecordCompletionResponse describes the response body for a completion.
type RecordCompletionResponse struct {
	LogID                  string    `json:"log_id"`
	Stats                  StatsView `json:"stats"`
	UnlockedAchievementIDs []string  `json:"unlocked_achievement_ids,omitempty"`
	Replay                 bool      `json:"idempotent_replay"`
}

// RecommendationResponse is today's session for the acting user.
type RecommendationResponse struct {
	ExerciseIDs  []string `json:"exercise_ids"`
	SessionTheme string   `json:"session_theme"`
	Tip          string   `json:"tip"`
	Fallback     bool     `json:"fallback"`
}

// ProfileView exposes the acting user's profile.
type ProfileView struct {
	UserID                  string    `json:"user_id"`
	DisplayName             string    `json:"display_name"`
	CurrentStreak           int       `json:"current_streak"`
	LongestStreak           int       `json:"longest_streak"`
	TotalExercisesCompleted int       `json:"total_exercises_completed"`
	TotalMinutesExercised   int       `json:"total_minutes_exercised"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// ExerciseView exposes one catalog entry.
type ExerciseView struct {
	ExerciseID      string   `json:"exercise_id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	DurationSeconds int      `json:"duration_seconds"`
	Difficulty      string   `json:"difficulty"`
	TargetArea      string   `json:"target_area"`
	Instructions    []string `json:"instructions"`
}

// ListExercisesResponse packages the exercise catalog.
type ListExercisesResponse struct {
	Items []ExerciseView `json:"items"`
}

// AchievementView merges a catalog achievement with the user's unlock state.
type AchievementView struct {
	AchievementID    string     `json:"achievement_id"`
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	RequirementType  string     `json:"requirement_type"`
	RequirementValue int        `json:"requirement_value"`
	Unlocked         bool       `json:"unlocked"`
	UnlockedAt       *time.Time `json:"unlocked_at,omitempty"`
}

// ListAchievementsResponse packages achievements with unlock state.
type ListAchievementsResponse struct {
	Items []AchievementView `json:"items"`
}

// ActivityLogView exposes one completion record.
type ActivityLogView struct {
	LogID            string    `json:"log_id"`
	ExerciseID       string    `json:"exercise_id"`
	CompletedAt      time.Time `json:"completed_at"`
	DurationSeconds  int       `json:"duration_seconds"`
	DifficultyRating *int      `json:"difficulty_rating,omitempty"`
	Notes            *string   `json:"notes,omitempty"`
}

// ListActivityResponse packages paginated history results.
type ListActivityResponse struct {
	Items      []ActivityLogView `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

// DaySummaryView is one day in the weekly roll-up.
type DaySummaryView struct {
	Date          string `json:"date"`
	ExerciseCount int    `json:"exercise_count"`
	TotalMinutes  int    `json:"total_minutes"`
}

// WeeklySummaryResponse is the Monday-start weekly roll-up.
type WeeklySummaryResponse struct {
	WeekStart      string           `json:"week_start"`
	Days           []DaySummaryView `json:"days"`
	TotalExercises int              `json:"total_exercises"`
	TotalMinutes   int              `json:"total_minutes"`
	ActiveDays     int              `json:"active_days"`
	AverageRating  float64          `json:"average_rating"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toStatsView(stats domain.ProfileStats) StatsView {
	return StatsView{
		TotalExercisesCompleted: stats.TotalExercisesCompleted,
		TotalMinutesExercised:   stats.TotalMinutesExercised,
		CurrentStreak:           stats.CurrentStreak,
		LongestStreak:           stats.LongestStreak,
	}
}

func toExerciseView(exercise domain.Exercise) ExerciseView {
	return ExerciseView{
		ExerciseID:      exercise.ID,
		Name:            exercise.Name,
		Description:     exercise.Description,
		Category:        exercise.Category,
		DurationSeconds: exercise.DurationSeconds,
		Difficulty:      string(exercise.Difficulty),
		TargetArea:      exercise.TargetArea,
		Instructions:    exercise.Instructions,
	}
}

func toActivityLogView(entry domain.ActivityLog) ActivityLogView {
	return ActivityLogView{
		LogID:            entry.ID,
		ExerciseID:       entry.ExerciseID,
		CompletedAt:      entry.CompletedAt,
		DurationSeconds:  entry.DurationSeconds,
		DifficultyRating: entry.DifficultyRating,
		Notes:            entry.Notes,
	}
}
