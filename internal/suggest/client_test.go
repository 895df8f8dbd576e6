package suggest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/deskfit/internal/domain"
)

func sampleRequest() domain.SuggestionRequest {
	return domain.SuggestionRequest{
		ExerciseHistory: []domain.ExerciseHistoryEntry{
			{ExerciseName: "Neck Rolls", CompletedCount: 3},
		},
		AvailableExercises: []domain.Exercise{
			{ID: "neck-rolls", Name: "Neck Rolls", Category: "stretching", TargetArea: "neck", Difficulty: domain.DifficultyEasy},
			{ID: "chair-squats", Name: "Chair Squats", Category: "strength", TargetArea: "legs", Difficulty: domain.DifficultyMedium},
		},
		CurrentStreak: 4,
		TimeOfDay:     "morning",
	}
}

func TestSuggestDecodesToolCall(t *testing.T) {
	var captured map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{
				"message": {
					"tool_calls": [{
						"function": {
							"name": "recommend_exercises",
							"arguments": "{\"exercise_ids\":[\"neck-rolls\",\"chair-squats\"],\"session_theme\":\"Morning Boost\",\"tip\":\"Hydrate\"}"
						}
					}]
				}
			}]
		}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key", Model: "google/gemini-2.5-flash"})

	suggestion, err := client.Suggest(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Equal(t, []string{"neck-rolls", "chair-squats"}, suggestion.ExerciseIDs)
	require.Equal(t, "Morning Boost", suggestion.SessionTheme)
	require.Equal(t, "Hydrate", suggestion.Tip)

	require.Equal(t, "google/gemini-2.5-flash", captured["model"])

	messages := captured["messages"].([]interface{})
	require.Len(t, messages, 2)
	user := messages[1].(map[string]interface{})
	content := user["content"].(string)
	require.True(t, strings.Contains(content, "Time of day: morning"))
	require.True(t, strings.Contains(content, "current streak: 4 days"))
	require.True(t, strings.Contains(content, "Neck Rolls (done 3 times)"))
	require.True(t, strings.Contains(content, "id: chair-squats"))

	choice := captured["tool_choice"].(map[string]interface{})
	fn := choice["function"].(map[string]interface{})
	require.Equal(t, "recommend_exercises", fn["name"])
}

func TestSuggestRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})

	_, err := client.Suggest(context.Background(), sampleRequest())
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestSuggestQuotaExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})

	_, err := client.Suggest(context.Background(), sampleRequest())
	require.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestSuggestMissingToolCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{}}]}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})

	_, err := client.Suggest(context.Background(), sampleRequest())
	require.Error(t, err)
}

func TestSuggestServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})

	_, err := client.Suggest(context.Background(), sampleRequest())
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}
