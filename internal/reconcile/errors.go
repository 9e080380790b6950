package reconcile

import "errors"

var (
	ErrAnalysisInFlight = errors.New("an analysis is already in progress")
	ErrCommitInFlight   = errors.New("an import is already in progress")
	ErrNoAnalysis       = errors.New("no analysis loaded")
	ErrFrozen           = errors.New("mapping is read-only while the import is in progress")
	ErrSheetIndex       = errors.New("sheet index out of range")
	ErrUnknownColumn    = errors.New("unknown source column")
	ErrUnknownField     = errors.New("unknown target field")
	ErrRowsMismatch     = errors.New("local rows do not match the analyzed columns")
	ErrRows             = errors.New("reading local rows")
)

// Local reports whether err was raised by the reconciler itself, before any
// request reached the analyzer or importer.
func Local(err error) bool {
	for _, target := range []error{
		ErrAnalysisInFlight, ErrCommitInFlight, ErrNoAnalysis, ErrFrozen,
		ErrSheetIndex, ErrUnknownColumn, ErrUnknownField, ErrRows,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
