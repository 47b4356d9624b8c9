package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nutriplan-app/apiserver/config"
	"github.com/nutriplan-app/apiserver/types"
)

const chatCompletionsURL = "https://api.openai.com/v1/chat/completions"

// GeneratedDay is one day of the generator's strict-JSON output.
type GeneratedDay struct {
	Day   int             `json:"day"`
	Meals json.RawMessage `json:"meals"`
	// Snacks and TotalCalories ride along inside the raw day payload; the
	// day is stored verbatim so the schema can evolve without migrations.
}

// Generator produces a seven-day meal plan for a request.
type Generator interface {
	Generate(ctx context.Context, req types.MealPlanRequest) ([]types.MealPlanDay, error)
}

// OpenAIGenerator calls the OpenAI chat-completions API.
type OpenAIGenerator struct {
	apiKey string
	model  string
	client *http.Client
}

// NewOpenAIGenerator constructs a generator from config. The HTTP client
// carries no timeout; cancellation is the caller's context's problem.
func NewOpenAIGenerator(cfg config.OpenAIConfig) (*OpenAIGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIGenerator{
		apiKey: cfg.APIKey,
		model:  model,
		client: http.DefaultClient,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate builds the prompt, performs the completion call, and parses the
// strict-JSON plan into day rows.
func (g *OpenAIGenerator) Generate(ctx context.Context, req types.MealPlanRequest) ([]types.MealPlanDay, error) {
	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "user", Content: buildPrompt(req)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, chatCompletionsURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call generation api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("generation api error: %s", string(raw))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return nil, errors.New("no plan generated")
	}

	return ParsePlan(result.Choices[0].Message.Content)
}

// ParsePlan decodes the generator's JSON array of days into day rows, each
// keeping its day's JSON verbatim.
func ParsePlan(content string) ([]types.MealPlanDay, error) {
	content = strings.TrimSpace(content)
	// Some models wrap the JSON in a markdown fence despite instructions.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var rawDays []json.RawMessage
	if err := json.Unmarshal([]byte(content), &rawDays); err != nil {
		return nil, fmt.Errorf("generated plan is not valid JSON: %w", err)
	}
	if len(rawDays) == 0 {
		return nil, errors.New("generated plan has no days")
	}

	days := make([]types.MealPlanDay, 0, len(rawDays))
	for i, raw := range rawDays {
		var day GeneratedDay
		if err := json.Unmarshal(raw, &day); err != nil {
			return nil, fmt.Errorf("generated plan day %d is malformed: %w", i+1, err)
		}
		number := day.Day
		if number == 0 {
			number = i + 1
		}
		days = append(days, types.MealPlanDay{
			DayNumber: number,
			Meals:     string(raw),
		})
	}
	return days, nil
}
