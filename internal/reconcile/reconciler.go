package reconcile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/analysis"
)

type Analyzer interface {
	Analyze(ctx context.Context, upload analysis.Upload) (*analysis.Result, error)
}

type Importer interface {
	Import(ctx context.Context, req analysis.ImportRequest) (*analysis.Outcome, error)
}

// RowSource supplies the full dataset of a sheet for import. Without one the
// preview rows of the analysis are sent. Columns is the set of keys Rows
// uses.
type RowSource interface {
	Columns(sheet string) ([]string, error)
	Rows(sheet string) ([]map[string]any, error)
}

// Reconciler is the state container of the upload -> review -> import
// workflow. Methods are safe for concurrent use; the state machine guards
// are the only coordination.
type Reconciler struct {
	mu        sync.Mutex
	state     State
	rows      RowSource
	analyzing bool

	analyzer  Analyzer
	importer  Importer
	threshold float64
	logger    *slog.Logger
}

func New(analyzer Analyzer, importer Importer, threshold float64, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultAcceptanceThreshold
	}
	return &Reconciler{
		state:     Empty{},
		analyzer:  analyzer,
		importer:  importer,
		threshold: threshold,
		logger:    logger,
	}
}

// State returns the current state. Review overlays are copies.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch st := r.state.(type) {
	case Reviewing:
		return Reviewing{st.snapshot()}
	case Committing:
		return Committing{st.snapshot()}
	}
	return r.state
}

// Analyzing reports whether an analysis call is outstanding.
func (r *Reconciler) Analyzing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.analyzing
}

// Analyze submits upload for analysis. On success the result and freshly
// seeded overlays replace any previous review; on failure the previous state
// is left as it was. rows may be nil, and is dropped when its columns for the
// primary sheet do not cover every analyzed column.
func (r *Reconciler) Analyze(ctx context.Context, upload analysis.Upload, rows RowSource) (*analysis.Result, error) {
	r.mu.Lock()
	if r.analyzing {
		r.mu.Unlock()
		return nil, ErrAnalysisInFlight
	}
	if _, ok := r.state.(Committing); ok {
		r.mu.Unlock()
		return nil, ErrCommitInFlight
	}
	r.analyzing = true
	r.mu.Unlock()

	r.logger.Debug("analyzing upload", "filename", upload.Filename)
	res, err := r.analyzer.Analyze(ctx, upload)
	if err == nil {
		err = res.Validate()
	}
	if err == nil && rows != nil {
		if mismatch := matchRows(res, rows); mismatch != nil {
			r.logger.Warn("importing preview rows instead of local rows", "filename", res.Filename, "error", mismatch)
			rows = nil
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyzing = false

	if err != nil {
		r.logger.Error("analysis failed", "filename", upload.Filename, "error", err)
		return nil, err
	}
	if _, ok := r.state.(Committing); ok {
		return nil, ErrCommitInFlight
	}

	r.state = Reviewing{newReview(res, r.threshold)}
	r.rows = rows
	r.logger.Debug("analysis loaded", "filename", res.Filename, "sheets", len(res.Sheets))
	return res, nil
}

// Assign maps field to column on the given sheet. An empty column unmaps
// field.
func (r *Reconciler) Assign(sheet int, field analysis.Field, column string) error {
	return r.edit(sheet, func(s analysis.Sheet, o Overlay) error {
		if !field.Valid() && !suggests(s, field) {
			return fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
		if column != "" && !s.HasColumn(column) {
			return fmt.Errorf("%w: %q", ErrUnknownColumn, column)
		}
		o.Assign(field, column)
		return nil
	})
}

// ClearColumn is the "Unmapped" choice for a column.
func (r *Reconciler) ClearColumn(sheet int, column string) error {
	return r.edit(sheet, func(s analysis.Sheet, o Overlay) error {
		if !s.HasColumn(column) {
			return fmt.Errorf("%w: %q", ErrUnknownColumn, column)
		}
		o.ClearColumn(column)
		return nil
	})
}

func (r *Reconciler) edit(sheet int, fn func(analysis.Sheet, Overlay) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := r.reviewing()
	if err != nil {
		return err
	}
	if sheet < 0 || sheet >= len(st.Overlays) {
		return fmt.Errorf("%w: %d", ErrSheetIndex, sheet)
	}
	return fn(st.Analysis.Sheets[sheet], st.Overlays[sheet])
}

// Expand opens sheet for review and collapses any other. Overlays are not
// affected.
func (r *Reconciler) Expand(sheet int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch st := r.state.(type) {
	case Reviewing:
		if sheet < -1 || sheet >= len(st.Overlays) {
			return fmt.Errorf("%w: %d", ErrSheetIndex, sheet)
		}
		st.Expanded = sheet
		r.state = st
	case Committing:
		if sheet < -1 || sheet >= len(st.Overlays) {
			return fmt.Errorf("%w: %d", ErrSheetIndex, sheet)
		}
		st.Expanded = sheet
		r.state = st
	default:
		return ErrNoAnalysis
	}
	return nil
}

func (r *Reconciler) Collapse() error {
	return r.Expand(-1)
}

// Cancel discards the loaded analysis and its overlays.
func (r *Reconciler) Cancel() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state.(type) {
	case Committing:
		return ErrFrozen
	case Reviewing:
		r.logger.Debug("review cancelled")
	}
	r.state = Empty{}
	r.rows = nil
	return nil
}

// Commit sends the primary sheet's overlay and rows to the importer. The
// review is frozen until the call returns; on failure it is restored
// unchanged so the user can correct and retry.
func (r *Reconciler) Commit(ctx context.Context) (*analysis.Outcome, error) {
	r.mu.Lock()
	if _, ok := r.state.(Committing); ok {
		r.mu.Unlock()
		return nil, ErrCommitInFlight
	}
	st, err := r.reviewing()
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	req, err := buildRequest(st.Review, r.rows)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.state = Committing{st.Review}
	r.mu.Unlock()

	r.logger.Debug("committing import",
		"data_type", req.DataType,
		"mappings", len(req.Mappings),
		"rows", len(req.Data),
	)
	outcome, err := r.importer.Import(ctx, req)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		if c, ok := r.state.(Committing); ok {
			r.state = Reviewing{c.Review}
		} else {
			r.state = st
		}
		r.logger.Error("import failed", "data_type", req.DataType, "error", err)
		return nil, err
	}

	r.state = Empty{}
	r.rows = nil
	r.logger.Debug("import committed", "imported", outcome.ImportedCount)
	return outcome, nil
}

// CommitTarget returns the sheet index a commit would import.
func (r *Reconciler) CommitTarget() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch st := r.state.(type) {
	case Reviewing:
		return st.Analysis.Primary()
	case Committing:
		return st.Analysis.Primary()
	}
	return -1
}

func (r *Reconciler) reviewing() (Reviewing, error) {
	switch st := r.state.(type) {
	case Reviewing:
		return st, nil
	case Committing:
		return Reviewing{}, ErrFrozen
	}
	return Reviewing{}, ErrNoAnalysis
}

func buildRequest(rv Review, rows RowSource) (analysis.ImportRequest, error) {
	idx := rv.Analysis.Primary()
	if idx < 0 {
		return analysis.ImportRequest{}, fmt.Errorf("%w: analysis has no sheets", ErrNoAnalysis)
	}
	sheet := rv.Analysis.Sheets[idx]

	data := sheet.PreviewRows
	if rows != nil {
		full, err := rows.Rows(sheet.SheetName)
		if err != nil {
			return analysis.ImportRequest{}, fmt.Errorf("%w of %q: %w", ErrRows, sheet.SheetName, err)
		}
		data = full
	}
	if data == nil {
		data = []map[string]any{}
	}

	dataType := sheet.DetectedCategory
	if dataType == "" {
		dataType = analysis.CategoryUnknown
	}

	return analysis.ImportRequest{
		DataType: dataType,
		Mappings: rv.Overlays[idx].Flatten(),
		Data:     data,
	}, nil
}

// matchRows checks that rows holds the primary sheet under the column names
// the analysis reported, so every mapped column is a key of the sent rows.
func matchRows(res *analysis.Result, rows RowSource) error {
	idx := res.Primary()
	if idx < 0 {
		return nil
	}
	sheet := res.Sheets[idx]

	header, err := rows.Columns(sheet.SheetName)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[h] = true
	}

	var missing []string
	for _, m := range sheet.ColumnMappings {
		if !have[m.SourceColumn] {
			missing = append(missing, m.SourceColumn)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %q", ErrRowsMismatch, missing)
	}
	return nil
}

func suggests(s analysis.Sheet, field analysis.Field) bool {
	for _, m := range s.ColumnMappings {
		if m.Suggested() == field {
			return true
		}
	}
	return false
}
