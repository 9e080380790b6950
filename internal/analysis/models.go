package analysis

import "io"

type Category string

const (
	CategoryPayroll  Category = "payroll"
	CategoryEmployee Category = "employee"
	CategoryProject  Category = "project"
	CategoryExpense  Category = "expense"
	CategoryUnknown  Category = "unknown"
)

var Categories = []Category{
	CategoryPayroll,
	CategoryEmployee,
	CategoryProject,
	CategoryExpense,
	CategoryUnknown,
}

func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// Field is a target field of the import endpoint.
type Field string

const (
	FieldName        Field = "name"
	FieldTitle       Field = "title"
	FieldDepartment  Field = "department"
	FieldLocation    Field = "location"
	FieldWages       Field = "wages"
	FieldHours       Field = "hours"
	FieldProjectID   Field = "project_id"
	FieldAmount      Field = "amount"
	FieldVendor      Field = "vendor"
	FieldDescription Field = "description"
	FieldDate        Field = "date"
)

// Fields lists the import fields in the order they are offered to the user.
var Fields = []Field{
	FieldName,
	FieldTitle,
	FieldDepartment,
	FieldLocation,
	FieldWages,
	FieldHours,
	FieldProjectID,
	FieldAmount,
	FieldVendor,
	FieldDescription,
	FieldDate,
}

func (f Field) Valid() bool {
	for _, k := range Fields {
		if f == k {
			return true
		}
	}
	return false
}

type Result struct {
	Filename        string   `json:"filename" jsonschema:"required"`
	Sheets          []Sheet  `json:"sheets" jsonschema:"required"`
	Recommendations []string `json:"recommendations"`
}

type Sheet struct {
	SheetName          string           `json:"sheet_name" jsonschema:"required"`
	DetectedCategory   Category         `json:"detected_category" jsonschema:"required,enum=payroll,enum=employee,enum=project,enum=expense,enum=unknown"`
	CategoryConfidence float64          `json:"category_confidence" jsonschema:"minimum=0,maximum=1"`
	RowCount           int              `json:"row_count" jsonschema:"minimum=0"`
	ColumnMappings     []ColumnMapping  `json:"column_mappings"`
	Issues             []string         `json:"issues"`
	PreviewRows        []map[string]any `json:"preview_rows"`
}

type ColumnMapping struct {
	SourceColumn         string  `json:"source_column" jsonschema:"required"`
	SuggestedTargetField *Field  `json:"suggested_target_field"`
	Confidence           float64 `json:"confidence" jsonschema:"minimum=0,maximum=1"`
	SampleValues         []any   `json:"sample_values"`
}

// Suggested returns the suggested field, or "" when the column is unmapped.
func (m ColumnMapping) Suggested() Field {
	if m.SuggestedTargetField == nil {
		return ""
	}
	return *m.SuggestedTargetField
}

// Columns returns the source column names in sheet order.
func (s Sheet) Columns() []string {
	cols := make([]string, len(s.ColumnMappings))
	for i, m := range s.ColumnMappings {
		cols[i] = m.SourceColumn
	}
	return cols
}

func (s Sheet) HasColumn(column string) bool {
	for _, m := range s.ColumnMappings {
		if m.SourceColumn == column {
			return true
		}
	}
	return false
}

// Primary returns the index of the sheet an import commits: the highest
// category confidence among recognised sheets, first on ties, sheet 0 when
// nothing was recognised. Returns -1 for a result without sheets.
func (r *Result) Primary() int {
	if r == nil || len(r.Sheets) == 0 {
		return -1
	}
	best := -1
	for i, s := range r.Sheets {
		if s.DetectedCategory == CategoryUnknown || s.DetectedCategory == "" {
			continue
		}
		if best < 0 || s.CategoryConfidence > r.Sheets[best].CategoryConfidence {
			best = i
		}
	}
	if best < 0 {
		return 0
	}
	return best
}

// ImportRequest is the body of the upload/import call.
type ImportRequest struct {
	DataType Category          `json:"data_type" validate:"required,oneof=payroll employee project expense unknown"`
	Mappings map[string]string `json:"mappings" validate:"required"`
	Data     []map[string]any  `json:"data" validate:"required"`
}

type Outcome struct {
	ImportedCount int `json:"imported_count"`
}

// Upload is a single file handed to the analysis service.
type Upload struct {
	Filename string
	Content  io.Reader
}

// Record is a denormalized read projection of a persisted study record.
type Record map[string]any
