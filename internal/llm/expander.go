// Package llm adapts an LLM provider to the query.Expander hook.
// The provider is a black box that returns a ranked list of query strings;
// all failures are reported to the caller and handled as soft warnings there.
package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"librarian/internal/logging"
)

const expanderSystemPrompt = `You rewrite code-search queries.
Given a developer request and the queries already tried, return up to %d
improved search queries, one per line, most promising first.
Return only the queries, no numbering or commentary.`

// GeminiExpander expands query sets with the Gemini API.
type GeminiExpander struct {
	client     *genai.Client
	model      string
	maxQueries int
}

// GeminiConfig holds configuration for the expander.
type GeminiConfig struct {
	APIKey     string
	Model      string
	MaxQueries int
}

// NewGeminiExpander creates an expander. The API key is required; model
// defaults to a fast flash model since expansion is latency-sensitive.
func NewGeminiExpander(ctx context.Context, cfg GeminiConfig) (*GeminiExpander, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.MaxQueries <= 0 {
		cfg.MaxQueries = 6
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiExpander{
		client:     client,
		model:      cfg.Model,
		maxQueries: cfg.MaxQueries,
	}, nil
}

// Expand asks the provider for an improved query list. The returned slice is
// ranked, deduplicated, and capped; an empty result with nil error means the
// provider had nothing better to offer.
func (e *GeminiExpander) Expand(ctx context.Context, request string, queries []string) ([]string, error) {
	timer := logging.StartTimer(logging.CategoryQuery, "GeminiExpander.Expand")
	defer timer.Stop()

	prompt := fmt.Sprintf("Request:\n%s\n\nQueries already tried:\n%s",
		request, strings.Join(queries, "\n"))

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	result, err := e.client.Models.GenerateContent(ctx, e.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(
			fmt.Sprintf(expanderSystemPrompt, e.maxQueries), genai.RoleUser),
	})
	if err != nil {
		return nil, fmt.Errorf("query expansion failed: %w", err)
	}

	return ParseQueryLines(result.Text(), e.maxQueries), nil
}

// ParseQueryLines turns raw provider output into a clean, capped query list.
// Exposed for tests; tolerant of numbering and bullet noise.
func ParseQueryLines(text string, max int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•0123456789.) ")
		line = strings.Trim(line, "\"'`")
		if line == "" || len(line) > 120 {
			continue
		}
		key := strings.ToLower(line)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, line)
		if len(out) >= max {
			break
		}
	}
	return out
}
