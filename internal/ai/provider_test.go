package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/analysis"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		opts    Options
		want    any
		wantErr string
	}{
		{opts: Options{}, want: &Heuristic{}},
		{opts: Options{Kind: "Heuristic"}, want: &Heuristic{}},
		{opts: Options{Kind: "openai", APIKey: "sk-test"}, want: &OpenAI{}},
		{opts: Options{Kind: "openai"}, wantErr: "OPENAI_API_KEY"},
		{opts: Options{Kind: "gemini", APIKey: "g-test"}, want: &Gemini{}},
		{opts: Options{Kind: "gemini"}, wantErr: "GEMINI_API_KEY"},
		{opts: Options{Kind: "claude-cli"}, want: &ClaudeCLI{}},
		{opts: Options{Kind: "magic"}, wantErr: `unknown analyzer "magic"`},
	}

	for _, tt := range tests {
		t.Run(tt.opts.Kind, func(t *testing.T) {
			p, err := NewProvider(tt.opts, nil)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, p)
		})
	}
}

func TestNormalize(t *testing.T) {
	sample := SheetSample{Columns: columns("Name", "Salary", "Dept")}
	got := Normalize(sample, &Suggestion{
		Category:           "payroll",
		CategoryConfidence: 1.4,
		Columns: []ColumnSuggestion{
			{SourceColumn: "Salary", TargetField: "wages", Confidence: 0.8},
			{SourceColumn: "Name", TargetField: "full_name", Confidence: 0.9},
			{SourceColumn: "Salary", TargetField: "hours", Confidence: 0.3},
			{SourceColumn: "Ghost", TargetField: "name", Confidence: 1},
		},
	})

	assert.Equal(t, analysis.CategoryPayroll, got.Category)
	assert.Equal(t, 1.0, got.CategoryConfidence)
	assert.Equal(t, []ColumnSuggestion{
		{SourceColumn: "Name"},
		{SourceColumn: "Salary", TargetField: "wages", Confidence: 0.8},
		{SourceColumn: "Dept"},
	}, got.Columns)

	got = Normalize(sample, &Suggestion{Category: "invoices", CategoryConfidence: -1})
	assert.Equal(t, analysis.CategoryUnknown, got.Category)
	assert.Zero(t, got.CategoryConfidence)
	assert.Len(t, got.Columns, 3)
}

func TestDecodeSuggestion(t *testing.T) {
	s, err := decodeSuggestion("```json\n{\"category\":\"expense\",\"category_confidence\":0.7,\"columns\":[]}\n```")
	require.NoError(t, err)
	assert.Equal(t, analysis.CategoryExpense, s.Category)

	_, err = decodeSuggestion("I could not classify this sheet")
	assert.ErrorContains(t, err, "parsing suggestion")
}

func TestSuggestionSchema(t *testing.T) {
	schema := suggestionSchema()
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "category")
	assert.Contains(t, props, "columns")
	assert.Contains(t, suggestionSchemaJSON(), `"payroll"`)
}

func TestBuildPrompts(t *testing.T) {
	system := buildSystemPrompt()
	for _, f := range analysis.Fields {
		assert.Contains(t, system, "- "+string(f)+": ")
	}
	user := buildUserPrompt(SheetSample{SheetName: "Payroll", Columns: columns("Full Name")})
	assert.Contains(t, user, `"sheet_name":"Payroll"`)
	assert.Contains(t, user, `"name":"Full Name"`)
}
