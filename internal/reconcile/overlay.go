package reconcile

import (
	"sort"

	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/analysis"
)

// DefaultAcceptanceThreshold is the confidence a suggestion must exceed to be
// pre-assigned when a review starts.
const DefaultAcceptanceThreshold = 0.5

// Overlay is the user-editable field -> source column assignment of one
// sheet. A column is assigned to at most one field.
type Overlay map[analysis.Field]string

// Seed builds the initial overlay of a sheet from the suggestions whose
// confidence is strictly above threshold. When two columns suggest the same
// field the more confident one keeps it.
func Seed(sheet analysis.Sheet, threshold float64) Overlay {
	o := make(Overlay)
	conf := make(map[analysis.Field]float64)

	for _, m := range sheet.ColumnMappings {
		field := m.Suggested()
		if field == "" || m.Confidence <= threshold {
			continue
		}
		if prev, ok := conf[field]; ok && prev >= m.Confidence {
			continue
		}
		o.Assign(field, m.SourceColumn)
		conf[field] = m.Confidence
	}
	return o
}

// Assign points field at column. A column already used by another field is
// released first; an empty column leaves field unmapped.
func (o Overlay) Assign(field analysis.Field, column string) {
	if column == "" {
		delete(o, field)
		return
	}
	for f, c := range o {
		if c == column && f != field {
			delete(o, f)
		}
	}
	o[field] = column
}

// ClearColumn unmaps whichever field currently points at column.
func (o Overlay) ClearColumn(column string) {
	for f, c := range o {
		if c == column {
			delete(o, f)
		}
	}
}

// FieldFor reports the field assigned to column.
func (o Overlay) FieldFor(column string) (analysis.Field, bool) {
	for f, c := range o {
		if c == column {
			return f, true
		}
	}
	return "", false
}

func (o Overlay) Clone() Overlay {
	out := make(Overlay, len(o))
	for f, c := range o {
		out[f] = c
	}
	return out
}

// Flatten returns the plain field -> column object sent on import.
func (o Overlay) Flatten() map[string]string {
	out := make(map[string]string, len(o))
	for f, c := range o {
		out[string(f)] = c
	}
	return out
}

// Fields returns the assigned fields in a stable order.
func (o Overlay) Fields() []analysis.Field {
	fields := make([]analysis.Field, 0, len(o))
	for f := range o {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}
