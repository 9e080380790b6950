package reconcile

import (
	"testing"

	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/analysis"
	"github.com/stretchr/testify/assert"
)

func suggestion(column string, field analysis.Field, conf float64) analysis.ColumnMapping {
	m := analysis.ColumnMapping{SourceColumn: column, Confidence: conf}
	if field != "" {
		f := field
		m.SuggestedTargetField = &f
	}
	return m
}

func TestSeed_Threshold(t *testing.T) {
	sheet := analysis.Sheet{
		SheetName: "Payroll",
		ColumnMappings: []analysis.ColumnMapping{
			suggestion("Full Name", analysis.FieldName, 0.9),
			suggestion("Wages", analysis.FieldWages, 0.3),
			suggestion("Dept", analysis.FieldDepartment, 0.5),
			suggestion("Title", analysis.FieldTitle, 0.51),
			suggestion("Notes", "", 0.99),
		},
	}

	o := Seed(sheet, DefaultAcceptanceThreshold)

	assert.Equal(t, Overlay{
		analysis.FieldName:  "Full Name",
		analysis.FieldTitle: "Title",
	}, o)
}

func TestSeed_DuplicateSuggestionKeepsMostConfident(t *testing.T) {
	sheet := analysis.Sheet{ColumnMappings: []analysis.ColumnMapping{
		suggestion("Employee", analysis.FieldName, 0.7),
		suggestion("Full Name", analysis.FieldName, 0.9),
		suggestion("Name (legal)", analysis.FieldName, 0.9),
	}}

	o := Seed(sheet, DefaultAcceptanceThreshold)

	assert.Equal(t, Overlay{analysis.FieldName: "Full Name"}, o)
}

func TestOverlay_AssignReassignsColumn(t *testing.T) {
	o := Overlay{}

	o.Assign(analysis.FieldDepartment, "Col A")
	o.Assign(analysis.FieldTitle, "Col A")

	assert.Equal(t, Overlay{analysis.FieldTitle: "Col A"}, o)
	_, ok := o[analysis.FieldDepartment]
	assert.False(t, ok)
}

func TestOverlay_AssignReplacesFieldColumn(t *testing.T) {
	o := Overlay{analysis.FieldName: "A"}

	o.Assign(analysis.FieldName, "B")

	assert.Equal(t, Overlay{analysis.FieldName: "B"}, o)
}

func TestOverlay_AssignEmptyUnmaps(t *testing.T) {
	o := Overlay{analysis.FieldName: "A", analysis.FieldWages: "B"}

	o.Assign(analysis.FieldWages, "")

	assert.Equal(t, Overlay{analysis.FieldName: "A"}, o)
}

func TestOverlay_ClearColumn(t *testing.T) {
	o := Overlay{analysis.FieldName: "A", analysis.FieldWages: "B"}

	o.ClearColumn("B")
	o.ClearColumn("missing")

	assert.Equal(t, Overlay{analysis.FieldName: "A"}, o)
	f, ok := o.FieldFor("A")
	assert.True(t, ok)
	assert.Equal(t, analysis.FieldName, f)
	_, ok = o.FieldFor("B")
	assert.False(t, ok)
}

func TestOverlay_OneColumnOneField(t *testing.T) {
	ops := []struct {
		field  analysis.Field
		column string
	}{
		{analysis.FieldName, "A"},
		{analysis.FieldTitle, "B"},
		{analysis.FieldDepartment, "A"},
		{analysis.FieldWages, "B"},
		{analysis.FieldName, "C"},
		{analysis.FieldTitle, "C"},
		{analysis.FieldDepartment, ""},
		{analysis.FieldHours, "A"},
		{analysis.FieldAmount, "A"},
	}

	o := Overlay{}
	for i, op := range ops {
		o.Assign(op.field, op.column)

		seen := map[string]analysis.Field{}
		for f, c := range o {
			prev, dup := seen[c]
			assert.Falsef(t, dup, "after op %d column %q held by %q and %q", i, c, prev, f)
			seen[c] = f
		}
	}

	assert.Equal(t, Overlay{
		analysis.FieldWages:  "B",
		analysis.FieldTitle:  "C",
		analysis.FieldAmount: "A",
	}, o)
}

func TestOverlay_CloneAndFlatten(t *testing.T) {
	o := Overlay{analysis.FieldName: "Full Name", analysis.FieldWages: "Wages"}

	c := o.Clone()
	c.Assign(analysis.FieldWages, "")

	assert.Len(t, o, 2)
	assert.Equal(t, map[string]string{"name": "Full Name", "wages": "Wages"}, o.Flatten())
	assert.Equal(t, []analysis.Field{analysis.FieldName, analysis.FieldWages}, o.Fields())
}
