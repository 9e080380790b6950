package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/analysis"
)

func columns(names ...string) []ColumnSample {
	out := make([]ColumnSample, len(names))
	for i, n := range names {
		out[i] = ColumnSample{Name: n}
	}
	return out
}

func TestHeuristic_Payroll(t *testing.T) {
	h := NewHeuristic()
	s, err := h.SuggestMappings(context.Background(), SheetSample{
		SheetName: "Payroll 2024",
		RowCount:  3,
		Columns:   columns("Full Name", "Job_Title", "Annual Salary", "Notes"),
	})
	require.NoError(t, err)

	assert.Equal(t, analysis.CategoryPayroll, s.Category)
	assert.InDelta(t, 0.867, s.CategoryConfidence, 0.01)

	require.Len(t, s.Columns, 4)
	assert.Equal(t, "name", s.Columns[0].TargetField)
	assert.Equal(t, exactConfidence, s.Columns[0].Confidence)
	assert.Equal(t, "title", s.Columns[1].TargetField)
	assert.Equal(t, "wages", s.Columns[2].TargetField)
	assert.Equal(t, "description", s.Columns[3].TargetField)
	assert.Empty(t, s.Issues)
}

func TestHeuristic_Expense(t *testing.T) {
	h := NewHeuristic()
	s, err := h.SuggestMappings(context.Background(), SheetSample{
		SheetName: "Sheet1",
		RowCount:  2,
		Columns: []ColumnSample{
			{Name: "Vendor", Values: []string{"Acme"}},
			{Name: "Invoice Amount", Values: []string{"$1,200.50", "n/a"}},
			{Name: "Date"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, analysis.CategoryExpense, s.Category)
	assert.Greater(t, s.CategoryConfidence, 0.9)
	assert.Equal(t, "amount", s.Columns[1].TargetField)
	assert.Equal(t, []string{`Column "Invoice Amount" has non-numeric values`}, s.Issues)
}

func TestHeuristic_ContainsMatch(t *testing.T) {
	h := NewHeuristic()
	field, confidence := h.matchField(h.normalizeHeader("Total Hrs Q1"))
	assert.Equal(t, analysis.FieldHours, field)
	assert.Equal(t, containsConfidence, confidence)

	field, confidence = h.matchField(h.normalizeHeader("  project-code "))
	assert.Equal(t, analysis.FieldProjectID, field)
	assert.Equal(t, exactConfidence, confidence)
}

func TestHeuristic_Unknown(t *testing.T) {
	h := NewHeuristic()
	s, err := h.SuggestMappings(context.Background(), SheetSample{
		SheetName: "Misc",
		Columns:   columns("Foo", "Bar"),
	})
	require.NoError(t, err)

	assert.Equal(t, analysis.CategoryUnknown, s.Category)
	assert.Equal(t, 0.0, s.CategoryConfidence)
	for _, c := range s.Columns {
		assert.Empty(t, c.TargetField)
		assert.Zero(t, c.Confidence)
	}
	assert.Contains(t, s.Issues, "Sheet has no data rows")
}

func TestHeuristic_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHeuristic().SuggestMappings(ctx, SheetSample{})
	assert.ErrorIs(t, err, context.Canceled)
}
