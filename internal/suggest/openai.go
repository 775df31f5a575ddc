package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// CompletionClient is the slice of the OpenAI client the suggester uses
type CompletionClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIService suggests KPIs via a chat-completion model, caching results
// and falling back to the static list on any failure or timeout
type OpenAIService struct {
	client  CompletionClient
	model   string
	cache   Cache
	timeout time.Duration
	logger  *slog.Logger
}

// NewOpenAIService creates a model-backed suggestion service
func NewOpenAIService(client CompletionClient, model string, cache Cache, timeout time.Duration, logger *slog.Logger) *OpenAIService {
	if model == "" {
		model = openai.GPT4oMini
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cache == nil {
		cache = NewMemoryCache(0, 0)
	}

	return &OpenAIService{
		client:  client,
		model:   model,
		cache:   cache,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "kpi_suggester")),
	}
}

const systemPrompt = `You are a business analytics assistant. Given a data source description and business context, suggest key performance indicators. Respond with a JSON array of objects, each with "name" and "description" fields. No prose.`

// SuggestKpis asks the model for KPI suggestions. Failures are absorbed:
// the caller always gets a usable list.
func (s *OpenAIService) SuggestKpis(ctx context.Context, dataSource, businessContext string, max int) ([]KpiSuggestion, error) {
	key := dataSource + "|" + businessContext

	if cached, ok := s.cache.Get(key); ok {
		return limit(cached, max), nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Data source: " + dataSource + "\nBusiness context: " + businessContext},
		},
		Temperature: 0.2,
	})
	if err != nil {
		s.logger.Warn("KPI suggestion call failed, using fallback",
			slog.String("error", err.Error()))
		return Fallback(max), nil
	}

	suggestions, err := parseSuggestions(resp)
	if err != nil {
		s.logger.Warn("KPI suggestion response unparseable, using fallback",
			slog.String("error", err.Error()))
		return Fallback(max), nil
	}

	s.cache.Set(key, suggestions)
	return limit(suggestions, max), nil
}

func parseSuggestions(resp openai.ChatCompletionResponse) ([]KpiSuggestion, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("completion response has no choices")
	}

	content := resp.Choices[0].Message.Content
	// Models occasionally wrap JSON in a code fence
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var suggestions []KpiSuggestion
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &suggestions); err != nil {
		return nil, err
	}
	return suggestions, nil
}

func limit(suggestions []KpiSuggestion, max int) []KpiSuggestion {
	if max > 0 && len(suggestions) > max {
		return suggestions[:max]
	}
	return suggestions
}
