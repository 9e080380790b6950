package ai

import "github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/analysis"

// SheetSample is what a provider sees of one sheet: its header and a few
// values per column.
type SheetSample struct {
	SheetName string         `json:"sheet_name"`
	RowCount  int            `json:"row_count"`
	Columns   []ColumnSample `json:"columns"`
}

type ColumnSample struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

type Suggestion struct {
	Category           analysis.Category  `json:"category" jsonschema:"enum=payroll,enum=employee,enum=project,enum=expense,enum=unknown"`
	CategoryConfidence float64            `json:"category_confidence" jsonschema:"minimum=0,maximum=1"`
	Columns            []ColumnSuggestion `json:"columns"`
	Issues             []string           `json:"issues,omitempty"`
}

type ColumnSuggestion struct {
	SourceColumn string  `json:"source_column"`
	TargetField  string  `json:"target_field" jsonschema:"description=One of the target fields or an empty string when no field fits"`
	Confidence   float64 `json:"confidence" jsonschema:"minimum=0,maximum=1"`
}
