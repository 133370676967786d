// Package insights generates an optional natural-language summary of
// the aggregated habit table. It runs strictly after export; a failure
// here is a warning, never an abort.
package insights

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/GengGeng026/habitboard/internal/model"
)

// Summarizer produces a short written summary of category totals
type Summarizer struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewSummarizer creates a summarizer from the insights configuration
func NewSummarizer(cfg model.InsightsConfig) (*Summarizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("insights API key is required")
	}
	m := cfg.Model
	if m == "" {
		m = openai.GPT4oMini
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 500
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &Summarizer{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     m,
		maxTokens: maxTokens,
	}, nil
}

// Summarize asks the model for a 3-4 sentence read of the table
func (s *Summarizer) Summarize(ctx context.Context, table model.Table) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You summarize personal habit-tracking data. Be concrete and encouraging, never judgmental.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(table),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildPrompt(table model.Table) string {
	var b strings.Builder
	b.WriteString("Here are my habit categories with total minutes spent, highest first:\n\n")
	for i, row := range table {
		if i >= 20 {
			fmt.Fprintf(&b, "... and %d more categories\n", len(table)-20)
			break
		}
		fmt.Fprintf(&b, "- %s: %.0f minutes\n", row.Category, row.Total)
	}
	b.WriteString("\nWrite a 3-4 sentence summary of where my time went and one pattern worth noticing.")
	return b.String()
}
