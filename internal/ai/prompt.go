package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/analysis"
)

var fieldHints = map[analysis.Field]string{
	analysis.FieldName:        "employee or project name",
	analysis.FieldTitle:       "job title",
	analysis.FieldDepartment:  "department or cost center",
	analysis.FieldLocation:    "work location or state",
	analysis.FieldWages:       "annual or period wages, W-2 box 1",
	analysis.FieldHours:       "hours worked",
	analysis.FieldProjectID:   "project code or identifier",
	analysis.FieldAmount:      "expense or invoice amount",
	analysis.FieldVendor:      "vendor or supplier",
	analysis.FieldDescription: "free text description",
	analysis.FieldDate:        "transaction or period date",
}

// suggestionSchema is the JSON schema a model reply must satisfy.
var suggestionSchema = sync.OnceValue(func() map[string]any {
	r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	raw, err := json.Marshal(r.Reflect(&Suggestion{}))
	if err != nil {
		panic(fmt.Sprintf("marshaling suggestion schema: %v", err))
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		panic(fmt.Sprintf("decoding suggestion schema: %v", err))
	}
	return schema
})

func suggestionSchemaJSON() string {
	raw, _ := json.Marshal(suggestionSchema())
	return string(raw)
}

func buildSystemPrompt() string {
	var fields strings.Builder
	for _, f := range analysis.Fields {
		fmt.Fprintf(&fields, "- %s: %s\n", f, fieldHints[f])
	}

	categories := make([]string, 0, len(analysis.Categories))
	for _, c := range analysis.Categories {
		categories = append(categories, string(c))
	}

	return fmt.Sprintf(`You classify spreadsheet sheets uploaded to an R&D tax credit study and map their columns to import fields.

Categories: %s

Target fields:
%s
Rules:
- Pick the single category that best describes the sheet, or "unknown"
- Return one entry per source column, using the exact column name
- target_field must be one of the target fields above, or "" when nothing fits
- Never map two columns to the same target field
- Set confidence between 0 and 1 based on how clearly the header and values fit
- Use issues for data problems a reviewer should know about, such as blank names or non-numeric wages

Return valid JSON matching the required schema.`, strings.Join(categories, ", "), fields.String())
}

func buildUserPrompt(sample SheetSample) string {
	raw, _ := json.Marshal(sample)
	return fmt.Sprintf("Sheet to classify:\n%s", raw)
}
