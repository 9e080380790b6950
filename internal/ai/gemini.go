package ai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type Gemini struct {
	apiKey string
	Model  string
	logger *slog.Logger
}

func NewGemini(apiKey, model string, logger *slog.Logger) *Gemini {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Gemini{apiKey: apiKey, Model: model, logger: logger}
}

func (g *Gemini) SuggestMappings(ctx context.Context, sample SheetSample) (*Suggestion, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.Model)
	prompt := buildSystemPrompt() + "\n\nJSON schema:\n" + suggestionSchemaJSON() + "\n\n" + buildUserPrompt(sample)

	g.logger.Debug("invoking gemini", "model", g.Model, "sheet", sample.SheetName, "prompt_len", len(prompt))

	start := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		g.logger.Error("gemini request failed", "error", err, "elapsed", time.Since(start))
		return nil, fmt.Errorf("generating gemini content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini returned no content")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	g.logger.Debug("gemini response", "elapsed", time.Since(start), "result", truncateStr(text.String(), 2000))

	suggestion, err := decodeSuggestion(text.String())
	if err != nil {
		return nil, err
	}
	return Normalize(sample, suggestion), nil
}
