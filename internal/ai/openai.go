package ai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAI asks a chat completion model for a mapping, constrained to the
// suggestion schema.
type OpenAI struct {
	client openai.Client
	Model  string
	logger *slog.Logger
}

func NewOpenAI(apiKey, model string, logger *slog.Logger, opts ...option.RequestOption) *OpenAI {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAI{client: openai.NewClient(opts...), Model: model, logger: logger}
}

func (o *OpenAI) SuggestMappings(ctx context.Context, sample SheetSample) (*Suggestion, error) {
	systemPrompt := buildSystemPrompt()
	userPrompt := buildUserPrompt(sample)

	o.logger.Debug("invoking openai",
		"model", o.Model,
		"sheet", sample.SheetName,
		"columns", len(sample.Columns),
		"user_prompt_len", len(userPrompt),
	)

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "sheet_mapping",
					Description: openai.String("Category and column mapping of one spreadsheet sheet"),
					Schema:      suggestionSchema(),
					Strict:      openai.Bool(false),
				},
			},
		},
	})
	if err != nil {
		o.logger.Error("openai request failed", "error", err, "elapsed", time.Since(start))
		return nil, fmt.Errorf("requesting openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	content := resp.Choices[0].Message.Content
	o.logger.Debug("openai response",
		"elapsed", time.Since(start),
		"result", truncateStr(content, 2000),
	)

	suggestion, err := decodeSuggestion(content)
	if err != nil {
		return nil, err
	}
	return Normalize(sample, suggestion), nil
}
