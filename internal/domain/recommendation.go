package domain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"example.com/deskfit/internal/observability"
)

const (
	// Session size bounds for a generated workout.
	minSessionSize = 4
	maxSessionSize = 5

	// How many recent logs feed the provider's history summary.
	recentHistoryLimit = 100

	cachedSessionTheme = "Today's Workout"
	cachedSessionTip   = "Keep up the great work!"

	fallbackSessionTheme = "Your Daily Workout"
	fallbackSessionTip   = "Stay active and take breaks throughout the day!"

	defaultSessionTheme = "Your Daily Desk Workout"
	defaultSessionTip   = "Remember to breathe deeply and stay hydrated!"
)

// ExerciseHistoryEntry summarises a user's completions of one exercise.
type ExerciseHistoryEntry struct {
	ExerciseName   string
	CompletedCount int
	LastCompleted  time.Time
}

// SuggestionRequest is the input contract of the external suggestion provider.
type SuggestionRequest struct {
	ExerciseHistory    []ExerciseHistoryEntry
	AvailableExercises []Exercise
	CurrentStreak      int
	TimeOfDay          string
}

// Suggestion is the provider's proposed session. ExerciseIDs may contain
// duplicates or ids outside the catalog; callers must validate.
type Suggestion struct {
	ExerciseIDs  []string
	SessionTheme string
	Tip          string
}

// SuggestionProvider proposes exercise ids for a session. Implementations may
// fail or return invalid ids; the recommendation service absorbs both.
type SuggestionProvider interface {
	Suggest(ctx context.Context, req SuggestionRequest) (*Suggestion, error)
}

// RecommendationRepository captures the persistence operations the
// recommendation cache needs.
type RecommendationRepository interface {
	GetDailyRecommendation(ctx context.Context, userID string, day time.Time) (*DailyRecommendation, error)
	UpsertDailyRecommendation(ctx context.Context, rec DailyRecommendation) error
	ListExercises(ctx context.Context) ([]Exercise, error)
	ListRecentLogsByUser(ctx context.Context, userID string, limit int) ([]ActivityLog, error)
	GetProfile(ctx context.Context, userID string) (*Profile, error)
}

// Recommendation is the session returned to the caller. Fallback marks a
// randomly selected set, surfaced to the UI as an advisory only.
type Recommendation struct {
	ExerciseIDs  []string
	SessionTheme string
	Tip          string
	Fallback     bool
}

// RecommendationOption configures optional behaviour of the service.
type RecommendationOption func(*RecommendationService)

// WithRecommendationClock overrides the time source, for tests.
func WithRecommendationClock(now func() time.Time) RecommendationOption {
	return func(s *RecommendationService) { s.now = now }
}

// WithRecommendationRand injects a seedable random source so padding and
// fallback selection are deterministic in tests.
func WithRecommendationRand(rng *rand.Rand) RecommendationOption {
	return func(s *RecommendationService) { s.rng = rng }
}

// WithRecommendationLogger overrides the logger.
func WithRecommendationLogger(logger *log.Logger) RecommendationOption {
	return func(s *RecommendationService) { s.logger = logger }
}

// RecommendationService memoises one generated exercise set per user per UTC
// day, calling the suggestion provider only on a cache miss.
type RecommendationService struct {
	repo     RecommendationRepository
	provider SuggestionProvider
	logger   *log.Logger
	now      func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRecommendationService constructs a RecommendationService.
func NewRecommendationService(repo RecommendationRepository, provider SuggestionProvider, opts ...RecommendationOption) *RecommendationService {
	s := &RecommendationService{
		repo:     repo,
		provider: provider,
		logger:   log.New(log.Writer(), "[recommend] ", log.LstdFlags),
		now:      time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TodaysRecommendation returns the cached session for today when one exists,
// otherwise generates a new one and persists it. Provider failures degrade to
// a random selection; the only hard failure is an unreadable or empty
// catalog.
func (s *RecommendationService) TodaysRecommendation(ctx context.Context, userID string) (*Recommendation, error) {
	day := DateOf(s.now())

	cached, err := s.repo.GetDailyRecommendation(ctx, userID, day)
	if err != nil {
		// A broken cache read degrades to regeneration; the later upsert wins.
		s.logger.Printf("cache lookup failed (user=%s): %v", userID, err)
	}
	if cached != nil && len(cached.ExerciseIDs) > 0 {
		observability.RecordRecommendationServed("cache")
		return &Recommendation{
			ExerciseIDs:  cached.ExerciseIDs,
			SessionTheme: cachedSessionTheme,
			Tip:          cachedSessionTip,
		}, nil
	}

	catalog, err := s.repo.ListExercises(ctx)
	if err != nil {
		return nil, fmt.Errorf("load exercise catalog: %w", err)
	}
	if len(catalog) == 0 {
		return nil, errors.New("exercise catalog is empty")
	}

	rec := s.generate(ctx, userID, catalog)

	if err := s.repo.UpsertDailyRecommendation(ctx, DailyRecommendation{
		UserID:          userID,
		RecommendedDate: day,
		ExerciseIDs:     rec.ExerciseIDs,
		CreatedAt:       s.now().UTC(),
	}); err != nil {
		// The caller still gets a valid set; tomorrow's lookup regenerates.
		s.logger.Printf("persist daily recommendation failed (user=%s): %v", userID, err)
	}

	return rec, nil
}

func (s *RecommendationService) generate(ctx context.Context, userID string, catalog []Exercise) *Recommendation {
	logs, err := s.repo.ListRecentLogsByUser(ctx, userID, recentHistoryLimit)
	if err != nil {
		s.logger.Printf("load recent activity failed (user=%s): %v", userID, err)
		return s.fallback(catalog)
	}

	streak := 0
	if profile, err := s.repo.GetProfile(ctx, userID); err != nil {
		s.logger.Printf("load profile failed (user=%s): %v", userID, err)
		return s.fallback(catalog)
	} else if profile != nil {
		streak = profile.CurrentStreak
	}

	suggestion, err := s.provider.Suggest(ctx, SuggestionRequest{
		ExerciseHistory:    SummarizeHistory(logs, catalog),
		AvailableExercises: catalog,
		CurrentStreak:      streak,
		TimeOfDay:          TimeOfDayBucket(s.now()),
	})
	if err != nil {
		s.logger.Printf("suggestion provider failed (user=%s): %v", userID, err)
		return s.fallback(catalog)
	}

	ids := s.validateIDs(suggestion.ExerciseIDs, catalog)

	theme := suggestion.SessionTheme
	if theme == "" {
		theme = defaultSessionTheme
	}
	tip := suggestion.Tip
	if tip == "" {
		tip = defaultSessionTip
	}

	observability.RecordRecommendationServed("provider")
	return &Recommendation{ExerciseIDs: ids, SessionTheme: theme, Tip: tip}
}

// validateIDs drops ids outside the catalog, dedupes while preserving
// provider order, pads with random distinct catalog ids up to the session
// minimum, and truncates to the maximum.
func (s *RecommendationService) validateIDs(ids []string, catalog []Exercise) []string {
	known := make(map[string]struct{}, len(catalog))
	for _, exercise := range catalog {
		known[exercise.ID] = struct{}{}
	}

	selected := make([]string, 0, maxSessionSize)
	seen := make(map[string]struct{}, maxSessionSize)
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		selected = append(selected, id)
		if len(selected) == maxSessionSize {
			return selected
		}
	}

	for len(selected) < minSessionSize && len(selected) < len(catalog) {
		pick := catalog[s.intn(len(catalog))].ID
		if _, dup := seen[pick]; dup {
			continue
		}
		seen[pick] = struct{}{}
		selected = append(selected, pick)
	}

	return selected
}

// fallback selects maxSessionSize distinct catalog exercises uniformly at
// random. It is the terminal behaviour for any generation failure.
func (s *RecommendationService) fallback(catalog []Exercise) *Recommendation {
	observability.RecordRecommendationServed("fallback")

	shuffled := make([]Exercise, len(catalog))
	copy(shuffled, catalog)
	s.mu.Lock()
	s.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	s.mu.Unlock()

	size := maxSessionSize
	if size > len(shuffled) {
		size = len(shuffled)
	}
	ids := make([]string, 0, size)
	for _, exercise := range shuffled[:size] {
		ids = append(ids, exercise.ID)
	}

	return &Recommendation{
		ExerciseIDs:  ids,
		SessionTheme: fallbackSessionTheme,
		Tip:          fallbackSessionTip,
		Fallback:     true,
	}
}

func (s *RecommendationService) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// SummarizeHistory collapses raw activity logs into per-exercise completion
// counts with the most recent completion timestamp, ordered by first
// appearance in the logs.
func SummarizeHistory(logs []ActivityLog, catalog []Exercise) []ExerciseHistoryEntry {
	names := make(map[string]string, len(catalog))
	for _, exercise := range catalog {
		names[exercise.ID] = exercise.Name
	}

	index := make(map[string]int)
	entries := make([]ExerciseHistoryEntry, 0)
	for _, entry := range logs {
		name, ok := names[entry.ExerciseID]
		if !ok {
			continue
		}
		if i, seen := index[name]; seen {
			entries[i].CompletedCount++
			if entry.CompletedAt.After(entries[i].LastCompleted) {
				entries[i].LastCompleted = entry.CompletedAt
			}
			continue
		}
		index[name] = len(entries)
		entries = append(entries, ExerciseHistoryEntry{
			ExerciseName:   name,
			CompletedCount: 1,
			LastCompleted:  entry.CompletedAt,
		})
	}
	return entries
}
