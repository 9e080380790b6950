package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/analysis"
)

type Provider interface {
	SuggestMappings(ctx context.Context, sample SheetSample) (*Suggestion, error)
}

// Options selects and configures a provider.
type Options struct {
	Kind   string
	Model  string
	APIKey string
}

// NewProvider builds the provider named by opts.Kind. An empty kind is the
// heuristic.
func NewProvider(opts Options, logger *slog.Logger) (Provider, error) {
	switch strings.ToLower(opts.Kind) {
	case "", "heuristic":
		return NewHeuristic(), nil
	case "openai":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("openai analyzer needs an API key (OPENAI_API_KEY)")
		}
		return NewOpenAI(opts.APIKey, opts.Model, logger), nil
	case "gemini":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("gemini analyzer needs an API key (GEMINI_API_KEY)")
		}
		return NewGemini(opts.APIKey, opts.Model, logger), nil
	case "claude-cli":
		return NewClaudeCLI(opts.Model, logger), nil
	}
	return nil, fmt.Errorf("unknown analyzer %q", opts.Kind)
}

// Normalize makes a model's reply safe to hand to the client: one entry per
// sampled column in header order, unknown fields dropped, confidences
// clamped to [0, 1].
func Normalize(sample SheetSample, s *Suggestion) *Suggestion {
	out := &Suggestion{
		Category:           s.Category,
		CategoryConfidence: clamp(s.CategoryConfidence),
		Issues:             s.Issues,
	}
	if !out.Category.Valid() {
		out.Category = analysis.CategoryUnknown
	}

	byColumn := make(map[string]ColumnSuggestion, len(s.Columns))
	for _, c := range s.Columns {
		if _, dup := byColumn[c.SourceColumn]; !dup {
			byColumn[c.SourceColumn] = c
		}
	}

	out.Columns = make([]ColumnSuggestion, 0, len(sample.Columns))
	for _, col := range sample.Columns {
		c, ok := byColumn[col.Name]
		if !ok {
			out.Columns = append(out.Columns, ColumnSuggestion{SourceColumn: col.Name})
			continue
		}
		c.Confidence = clamp(c.Confidence)
		if !analysis.Field(c.TargetField).Valid() {
			c.TargetField = ""
			c.Confidence = 0
		}
		out.Columns = append(out.Columns, c)
	}
	return out
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// decodeSuggestion parses a model reply, tolerating a markdown code fence
// around the JSON.
func decodeSuggestion(raw string) (*Suggestion, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}

	var suggestion Suggestion
	if err := json.Unmarshal([]byte(s), &suggestion); err != nil {
		return nil, fmt.Errorf("parsing suggestion: %w (raw: %s)", err, truncateStr(raw, 1000))
	}
	return &suggestion, nil
}
