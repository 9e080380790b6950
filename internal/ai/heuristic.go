package ai

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/analysis"
)

const (
	exactConfidence    = 0.95
	containsConfidence = 0.7

	// categoryFloor is the score below which a sheet is reported unknown.
	categoryFloor = 0.5
)

type fieldRule struct {
	Field    analysis.Field
	Exact    []string
	Contains []string
}

type categoryRule struct {
	Category analysis.Category
	Key      []analysis.Field
	Optional []analysis.Field
	Cues     []string
}

func defaultFieldRules() []fieldRule {
	return []fieldRule{
		{analysis.FieldName, []string{"name", "full name", "employee name", "employee", "emp name", "project name", "project"}, []string{"name"}},
		{analysis.FieldTitle, []string{"title", "job title", "position", "role"}, []string{"title", "position"}},
		{analysis.FieldDepartment, []string{"department", "dept", "cost center", "division"}, []string{"department", "dept"}},
		{analysis.FieldLocation, []string{"location", "state", "work state", "city", "site"}, []string{"location"}},
		{analysis.FieldWages, []string{"wages", "salary", "annual salary", "w2 wages", "box 1", "gross pay", "compensation", "total wages"}, []string{"wage", "salary", "compensation", "pay"}},
		{analysis.FieldHours, []string{"hours", "hours worked", "total hours", "hrs"}, []string{"hours", "hrs"}},
		{analysis.FieldProjectID, []string{"project id", "project code", "project number", "project no", "code"}, []string{"project id", "project code"}},
		{analysis.FieldAmount, []string{"amount", "total", "cost", "invoice amount", "expense amount"}, []string{"amount", "cost"}},
		{analysis.FieldVendor, []string{"vendor", "supplier", "payee", "contractor"}, []string{"vendor", "supplier"}},
		{analysis.FieldDescription, []string{"description", "desc", "memo", "notes", "details"}, []string{"description"}},
		{analysis.FieldDate, []string{"date", "invoice date", "transaction date", "pay date", "period"}, []string{"date"}},
	}
}

func defaultCategoryRules() []categoryRule {
	return []categoryRule{
		{
			Category: analysis.CategoryPayroll,
			Key:      []analysis.Field{analysis.FieldName, analysis.FieldWages},
			Optional: []analysis.Field{analysis.FieldTitle, analysis.FieldDepartment, analysis.FieldHours},
			Cues:     []string{"payroll", "w2", "salary", "wages"},
		},
		{
			Category: analysis.CategoryEmployee,
			Key:      []analysis.Field{analysis.FieldName},
			Optional: []analysis.Field{analysis.FieldTitle, analysis.FieldDepartment, analysis.FieldLocation},
			Cues:     []string{"employee", "staff", "roster", "personnel"},
		},
		{
			Category: analysis.CategoryProject,
			Key:      []analysis.Field{analysis.FieldName, analysis.FieldProjectID},
			Optional: []analysis.Field{analysis.FieldDescription, analysis.FieldHours},
			Cues:     []string{"project"},
		},
		{
			Category: analysis.CategoryExpense,
			Key:      []analysis.Field{analysis.FieldAmount},
			Optional: []analysis.Field{analysis.FieldVendor, analysis.FieldDate, analysis.FieldDescription},
			Cues:     []string{"expense", "invoice", "vendor", "supplies", "contract"},
		},
	}
}

// Heuristic suggests mappings from header names alone. It needs no network
// and is deterministic.
type Heuristic struct {
	fields     []fieldRule
	categories []categoryRule

	separatorRe  *regexp.Regexp
	whitespaceRe *regexp.Regexp
}

func NewHeuristic() *Heuristic {
	return &Heuristic{
		fields:       defaultFieldRules(),
		categories:   defaultCategoryRules(),
		separatorRe:  regexp.MustCompile(`[_\-./#:()]+`),
		whitespaceRe: regexp.MustCompile(`\s+`),
	}
}

func (h *Heuristic) SuggestMappings(ctx context.Context, sample SheetSample) (*Suggestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &Suggestion{Columns: make([]ColumnSuggestion, 0, len(sample.Columns))}
	mapped := make(map[analysis.Field]bool)
	headers := make([]string, 0, len(sample.Columns))

	for _, col := range sample.Columns {
		norm := h.normalizeHeader(col.Name)
		headers = append(headers, norm)

		field, confidence := h.matchField(norm)
		s.Columns = append(s.Columns, ColumnSuggestion{
			SourceColumn: col.Name,
			TargetField:  string(field),
			Confidence:   confidence,
		})
		if field == "" {
			continue
		}
		mapped[field] = true

		if numericField(field) && !allNumeric(col.Values) {
			s.Issues = append(s.Issues, fmt.Sprintf("Column %q has non-numeric values", col.Name))
		}
	}

	s.Category, s.CategoryConfidence = h.scoreCategory(h.normalizeHeader(sample.SheetName), headers, mapped)
	if sample.RowCount == 0 {
		s.Issues = append(s.Issues, "Sheet has no data rows")
	}
	return s, nil
}

func (h *Heuristic) normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = h.separatorRe.ReplaceAllString(s, " ")
	s = h.whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func (h *Heuristic) matchField(header string) (analysis.Field, float64) {
	if header == "" {
		return "", 0
	}
	for _, r := range h.fields {
		for _, e := range r.Exact {
			if header == e {
				return r.Field, exactConfidence
			}
		}
	}
	for _, r := range h.fields {
		for _, c := range r.Contains {
			if strings.Contains(header, c) {
				return r.Field, containsConfidence
			}
		}
	}
	return "", 0
}

// scoreCategory weighs key fields at 0.6, optional fields at 0.2 and a
// keyword cue in the sheet name or headers at 0.2. The first rule wins ties.
func (h *Heuristic) scoreCategory(sheetName string, headers []string, mapped map[analysis.Field]bool) (analysis.Category, float64) {
	best := analysis.CategoryUnknown
	bestScore := 0.0

	for _, r := range h.categories {
		score := 0.6*fraction(r.Key, mapped) + 0.2*fraction(r.Optional, mapped)
		if hasCue(r.Cues, sheetName, headers) {
			score += 0.2
		}
		if score > bestScore {
			best, bestScore = r.Category, score
		}
	}

	if bestScore < categoryFloor {
		best = analysis.CategoryUnknown
	}
	return best, bestScore
}

func fraction(fields []analysis.Field, mapped map[analysis.Field]bool) float64 {
	if len(fields) == 0 {
		return 0
	}
	hit := 0
	for _, f := range fields {
		if mapped[f] {
			hit++
		}
	}
	return float64(hit) / float64(len(fields))
}

func hasCue(cues []string, sheetName string, headers []string) bool {
	for _, c := range cues {
		if strings.Contains(sheetName, c) {
			return true
		}
		for _, h := range headers {
			if strings.Contains(h, c) {
				return true
			}
		}
	}
	return false
}

func numericField(f analysis.Field) bool {
	return f == analysis.FieldWages || f == analysis.FieldHours || f == analysis.FieldAmount
}

func allNumeric(values []string) bool {
	for _, v := range values {
		v = strings.NewReplacer("$", "", ",", "", " ", "").Replace(v)
		if v == "" {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return false
		}
	}
	return true
}
