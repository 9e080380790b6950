package analysis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldPtr(f Field) *Field { return &f }

func TestResult_UnmarshalNullSuggestion(t *testing.T) {
	raw := `{
		"filename": "payroll.xlsx",
		"sheets": [{
			"sheet_name": "Sheet1",
			"detected_category": "payroll",
			"category_confidence": 0.92,
			"row_count": 42,
			"column_mappings": [
				{"source_column": "Full Name", "suggested_target_field": "name", "confidence": 0.9, "sample_values": ["Ada", "Linus"]},
				{"source_column": "Notes", "suggested_target_field": null, "confidence": 0.1, "sample_values": [1, 2.5]}
			],
			"issues": [],
			"preview_rows": [{"Full Name": "Ada", "Notes": 1}]
		}],
		"recommendations": ["Map the wages column"]
	}`

	var res Result
	require.NoError(t, json.Unmarshal([]byte(raw), &res))
	require.NoError(t, res.Validate())

	sheet := res.Sheets[0]
	assert.Equal(t, CategoryPayroll, sheet.DetectedCategory)
	assert.Equal(t, FieldName, sheet.ColumnMappings[0].Suggested())
	assert.Nil(t, sheet.ColumnMappings[1].SuggestedTargetField)
	assert.Equal(t, Field(""), sheet.ColumnMappings[1].Suggested())
	assert.Equal(t, []string{"Full Name", "Notes"}, sheet.Columns())
	assert.True(t, sheet.HasColumn("Notes"))
	assert.False(t, sheet.HasColumn("Wages"))
}

func TestResult_Validate(t *testing.T) {
	tests := []struct {
		name    string
		sheet   Sheet
		wantErr bool
	}{
		{
			name: "valid",
			sheet: Sheet{SheetName: "s", CategoryConfidence: 1, ColumnMappings: []ColumnMapping{
				{SourceColumn: "a", Confidence: 0},
				{SourceColumn: "b", Confidence: 1, SuggestedTargetField: fieldPtr(FieldWages)},
			}},
		},
		{
			name:    "category confidence above one",
			sheet:   Sheet{SheetName: "s", CategoryConfidence: 1.2},
			wantErr: true,
		},
		{
			name:    "negative row count",
			sheet:   Sheet{SheetName: "s", RowCount: -1},
			wantErr: true,
		},
		{
			name: "duplicate column",
			sheet: Sheet{SheetName: "s", ColumnMappings: []ColumnMapping{
				{SourceColumn: "a"}, {SourceColumn: "a"},
			}},
			wantErr: true,
		},
		{
			name: "negative column confidence",
			sheet: Sheet{SheetName: "s", ColumnMappings: []ColumnMapping{
				{SourceColumn: "a", Confidence: -0.1},
			}},
			wantErr: true,
		},
		{
			name: "empty string suggestion",
			sheet: Sheet{SheetName: "s", ColumnMappings: []ColumnMapping{
				{SourceColumn: "a", SuggestedTargetField: fieldPtr("")},
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &Result{Filename: "f.csv", Sheets: []Sheet{tt.sheet}}
			err := res.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			assert.NoError(t, err)
		})
	}

	var nilResult *Result
	assert.ErrorIs(t, nilResult.Validate(), ErrMalformed)
}

func TestResult_Primary(t *testing.T) {
	tests := []struct {
		name   string
		sheets []Sheet
		want   int
	}{
		{name: "no sheets", want: -1},
		{name: "all unknown", sheets: []Sheet{{DetectedCategory: CategoryUnknown}, {DetectedCategory: CategoryUnknown}}, want: 0},
		{
			name: "highest recognised confidence",
			sheets: []Sheet{
				{DetectedCategory: CategoryUnknown, CategoryConfidence: 0.99},
				{DetectedCategory: CategoryProject, CategoryConfidence: 0.6},
				{DetectedCategory: CategoryPayroll, CategoryConfidence: 0.8},
			},
			want: 2,
		},
		{
			name: "first wins ties",
			sheets: []Sheet{
				{DetectedCategory: CategoryExpense, CategoryConfidence: 0.7},
				{DetectedCategory: CategoryPayroll, CategoryConfidence: 0.7},
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &Result{Sheets: tt.sheets}
			assert.Equal(t, tt.want, res.Primary())
		})
	}
}

func TestEnums(t *testing.T) {
	assert.True(t, FieldDepartment.Valid())
	assert.False(t, Field("salary").Valid())
	assert.True(t, CategoryExpense.Valid())
	assert.False(t, Category("invoice").Valid())
}

func TestSchema(t *testing.T) {
	data, err := Schema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "sheets")
	assert.Contains(t, props, "recommendations")
}
