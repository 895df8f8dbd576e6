// Package suggest implements the AI-backed exercise suggestion provider.
package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"example.com/deskfit/internal/domain"
	"example.com/deskfit/internal/observability"
)

const recommendToolName = "recommend_exercises"

const systemPrompt = `You are a helpful desk exercise advisor. Your job is to recommend 4-5 exercises for a 10-15 minute desk workout session.

Consider these factors when making recommendations:
1. Time of day: Morning sessions should be more energizing, afternoon sessions should help with mid-day slumps, evening sessions should focus on relaxation and stretching
2. User's exercise history: Try to vary exercises to avoid repetition while still including favorites
3. Current streak: For users with longer streaks, gradually introduce more challenging exercises
4. Balance: Include a mix of stretching, strength, and relaxation exercises
5. Target different body areas for a well-rounded session

Always prioritize exercises that are safe to do at a desk and don't require equipment.`

// ErrRateLimited is returned when the gateway rejects the call with HTTP 429.
var ErrRateLimited = errors.New("suggestion gateway rate limited")

// ErrQuotaExceeded is returned when the gateway rejects the call with HTTP 402.
var ErrQuotaExceeded = errors.New("suggestion gateway quota exceeded")

// Config captures the connection settings for the suggestion gateway.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client calls an OpenAI-compatible chat-completions endpoint with a forced
// tool call and decodes the tool arguments into a domain.Suggestion.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient constructs a Client. A zero timeout defaults to 20 seconds.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model      string        `json:"model"`
	Messages   []chatMessage `json:"messages"`
	Tools      []tool        `json:"tools"`
	ToolChoice toolChoice    `json:"tool_choice"`
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type toolChoice struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

type toolArguments struct {
	ExerciseIDs  []string `json:"exercise_ids"`
	SessionTheme string   `json:"session_theme"`
	Tip          string   `json:"tip"`
}

var recommendToolParameters = json.RawMessage(`{
	"type": "object",
	"properties": {
		"exercise_ids": {
			"type": "array",
			"items": {"type": "string"},
			"description": "Array of exercise IDs to recommend (4-5 exercises)"
		},
		"session_theme": {
			"type": "string",
			"description": "A short motivating theme for this session (e.g., 'Energizing Morning Flow')"
		},
		"tip": {
			"type": "string",
			"description": "A brief wellness tip related to the exercises"
		}
	},
	"required": ["exercise_ids", "session_theme", "tip"],
	"additionalProperties": false
}`)

// Suggest implements domain.SuggestionProvider.
func (c *Client) Suggest(ctx context.Context, req domain.SuggestionRequest) (*domain.Suggestion, error) {
	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(req)},
		},
		Tools: []tool{{
			Type: "function",
			Function: toolFunction{
				Name:        recommendToolName,
				Description: "Returns the recommended exercise IDs for the user's session",
				Parameters:  recommendToolParameters,
			},
		}},
	}
	payload.ToolChoice.Type = "function"
	payload.ToolChoice.Function.Name = recommendToolName

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode suggestion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build suggestion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		observability.RecordProviderError("transport")
		return nil, fmt.Errorf("call suggestion gateway: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		observability.RecordProviderError("rate_limited")
		return nil, ErrRateLimited
	case http.StatusPaymentRequired:
		observability.RecordProviderError("quota")
		return nil, ErrQuotaExceeded
	default:
		observability.RecordProviderError("http")
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("suggestion gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		observability.RecordProviderError("decode")
		return nil, fmt.Errorf("decode suggestion response: %w", err)
	}

	if len(decoded.Choices) == 0 || len(decoded.Choices[0].Message.ToolCalls) == 0 {
		observability.RecordProviderError("decode")
		return nil, errors.New("no tool call in suggestion response")
	}

	var args toolArguments
	call := decoded.Choices[0].Message.ToolCalls[0]
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		observability.RecordProviderError("decode")
		return nil, fmt.Errorf("decode tool arguments: %w", err)
	}

	return &domain.Suggestion{
		ExerciseIDs:  args.ExerciseIDs,
		SessionTheme: args.SessionTheme,
		Tip:          args.Tip,
	}, nil
}

func buildUserPrompt(req domain.SuggestionRequest) string {
	var b strings.Builder
	b.WriteString("Please recommend 4-5 exercises for a desk workout session.\n\n")
	b.WriteString("Current context:\n")
	fmt.Fprintf(&b, "- Time of day: %s\n", req.TimeOfDay)
	fmt.Fprintf(&b, "- User's current streak: %d days\n", req.CurrentStreak)

	if len(req.ExerciseHistory) == 0 {
		b.WriteString("- Recent exercise history: No recent history - this is a new user!\n")
	} else {
		summaries := make([]string, 0, len(req.ExerciseHistory))
		for _, entry := range req.ExerciseHistory {
			summaries = append(summaries, fmt.Sprintf("%s (done %d times)", entry.ExerciseName, entry.CompletedCount))
		}
		fmt.Fprintf(&b, "- Recent exercise history: %s\n", strings.Join(summaries, ", "))
	}

	b.WriteString("\nAvailable exercises:\n")
	for _, exercise := range req.AvailableExercises {
		fmt.Fprintf(&b, "- %s (%s, targets: %s, difficulty: %s, id: %s)\n",
			exercise.Name, exercise.Category, exercise.TargetArea, exercise.Difficulty, exercise.ID)
	}

	b.WriteString("\nReturn the exercise IDs you recommend.")
	return b.String()
}
