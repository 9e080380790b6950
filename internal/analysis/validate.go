package analysis

import (
	"errors"
	"fmt"
)

var ErrMalformed = errors.New("malformed analysis")

// Validate checks the invariants the workflow relies on. A response that
// fails here is treated like any other server failure.
func (r *Result) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: empty response", ErrMalformed)
	}
	for i, s := range r.Sheets {
		if err := s.validate(); err != nil {
			return fmt.Errorf("%w: sheet %d (%q): %v", ErrMalformed, i, s.SheetName, err)
		}
	}
	return nil
}

func (s Sheet) validate() error {
	if !inUnit(s.CategoryConfidence) {
		return fmt.Errorf("category confidence %v outside [0,1]", s.CategoryConfidence)
	}
	if s.RowCount < 0 {
		return fmt.Errorf("negative row count %d", s.RowCount)
	}
	seen := make(map[string]bool, len(s.ColumnMappings))
	for _, m := range s.ColumnMappings {
		if seen[m.SourceColumn] {
			return fmt.Errorf("duplicate source column %q", m.SourceColumn)
		}
		seen[m.SourceColumn] = true

		if !inUnit(m.Confidence) {
			return fmt.Errorf("column %q: confidence %v outside [0,1]", m.SourceColumn, m.Confidence)
		}
		if m.SuggestedTargetField != nil && *m.SuggestedTargetField == "" {
			return fmt.Errorf("column %q: empty suggested field (use null for unmapped)", m.SourceColumn)
		}
	}
	return nil
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}
