package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// cleanEnv returns os.Environ() with Claude Code session vars removed
// so the subprocess doesn't get blocked by the nested-session check.
func cleanEnv() []string {
	blocked := map[string]bool{
		"CLAUDECODE":             true,
		"CLAUDE_CODE_ENTRYPOINT": true,
	}
	var env []string
	for _, e := range os.Environ() {
		key, _, _ := strings.Cut(e, "=")
		if !blocked[key] {
			env = append(env, e)
		}
	}
	return env
}

type ClaudeCLI struct {
	Model  string
	Binary string
	logger *slog.Logger
}

func NewClaudeCLI(model string, logger *slog.Logger) *ClaudeCLI {
	if model == "" {
		model = "haiku"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ClaudeCLI{Model: model, Binary: "claude", logger: logger}
}

func (c *ClaudeCLI) SuggestMappings(ctx context.Context, sample SheetSample) (*Suggestion, error) {
	systemPrompt := buildSystemPrompt()
	userPrompt := buildUserPrompt(sample)
	schema := suggestionSchemaJSON()

	args := []string{
		"-p", userPrompt,
		"--output-format", "json",
		"--model", c.Model,
		"--system-prompt", systemPrompt,
		"--json-schema", schema,
		"--no-session-persistence",
	}

	c.logger.Debug("invoking claude CLI",
		"model", c.Model,
		"sheet", sample.SheetName,
		"columns", len(sample.Columns),
		"system_prompt_len", len(systemPrompt),
		"user_prompt_len", len(userPrompt),
		"schema_len", len(schema),
	)

	result, err := c.runCLI(ctx, args)
	if err != nil {
		return nil, err
	}

	suggestion, err := decodeSuggestion(result)
	if err != nil {
		c.logger.Error("failed to parse suggestion", "error", err, "raw", truncateStr(result, 2000))
		return nil, err
	}

	c.logger.Debug("parsed suggestion",
		"category", suggestion.Category,
		"category_confidence", suggestion.CategoryConfidence,
		"columns", len(suggestion.Columns),
	)
	return Normalize(sample, suggestion), nil
}

// runCLI runs the CLI and unwraps the --output-format json envelope.
func (c *ClaudeCLI) runCLI(ctx context.Context, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, c.Binary, args...)
	cmd.Env = cleanEnv()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	startTime := time.Now()
	err := cmd.Run()
	elapsed := time.Since(startTime)

	c.logger.Debug("claude CLI finished",
		"elapsed", elapsed,
		"stdout_bytes", stdout.Len(),
		"stderr_bytes", stderr.Len(),
		"error", err,
	)

	if err != nil {
		c.logger.Error("claude CLI failed",
			"error", err,
			"elapsed", elapsed,
			"stderr", stderr.String(),
		)
		if ctx.Err() != nil {
			return "", fmt.Errorf("claude CLI timed out after %s", elapsed.Truncate(time.Second))
		}
		return "", fmt.Errorf("running claude CLI: %w (stderr: %s)", err, stderr.String())
	}

	// Prefer structured_output (typed JSON from --json-schema) over result.
	var wrapper struct {
		Type             string          `json:"type"`
		Subtype          string          `json:"subtype"`
		Result           json.RawMessage `json:"result"`
		StructuredOutput json.RawMessage `json:"structured_output"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &wrapper); err != nil {
		c.logger.Debug("wrapper parse failed, treating as raw output", "error", err)
		return stdout.String(), nil
	}

	if len(wrapper.StructuredOutput) > 0 && wrapper.StructuredOutput[0] == '{' {
		return string(wrapper.StructuredOutput), nil
	}
	if len(wrapper.Result) > 0 {
		var resultStr string
		if err := json.Unmarshal(wrapper.Result, &resultStr); err == nil && resultStr != "" {
			return resultStr, nil
		}
		if wrapper.Result[0] == '{' {
			return string(wrapper.Result), nil
		}
	}
	return stdout.String(), nil
}
