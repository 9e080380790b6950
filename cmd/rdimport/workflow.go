package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/analysis"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/config"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/extract"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/notify"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/rdstudy"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/reconcile"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/session"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/store"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/tui"
)

const lastStudyKey = "last_study_id"

// workflow wires the study client, local history and notifications for one
// command invocation.
type workflow struct {
	cfg      *config.Config
	logger   *slog.Logger
	dataDir  string
	studyID  string
	study    *rdstudy.StudyClient
	notifier notify.Notifier
	out      io.Writer
}

func newWorkflow(cfg *config.Config, logger *slog.Logger) (*workflow, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	sessionPath, err := config.SessionPath()
	if err != nil {
		return nil, err
	}

	var sess session.Session = session.NewFileSession(sessionPath, logger)
	if cfg.Token != "" {
		sess = session.NewStatic(cfg.Token, func() {
			logger.Warn("server rejected RDIMPORT_TOKEN")
		})
	}

	notifiers := notify.Multi{notify.NewTerminal(os.Stdout)}
	if cfg.Notifications.Enabled {
		notifiers = append(notifiers, notify.NewDesktop())
	}

	w := &workflow{
		cfg:      cfg,
		logger:   logger,
		dataDir:  dir,
		notifier: notifiers,
		out:      os.Stdout,
	}
	w.studyID = w.resolveStudyID()

	client := rdstudy.NewClient(cfg.API.BaseURL, sess, cfg.Timeout(), logger)
	w.study = client.Study(w.studyID)
	return w, nil
}

// resolveStudyID falls back to the study of the last import.
func (w *workflow) resolveStudyID() string {
	if w.cfg.API.StudyID != "" {
		return w.cfg.API.StudyID
	}
	db, err := store.Open(w.dataDir)
	if err != nil {
		w.logger.Debug("history unavailable", "error", err)
		return ""
	}
	defer db.Close()

	id, err := db.GetState(lastStudyKey)
	if err != nil {
		w.logger.Debug("reading last study", "error", err)
		return ""
	}
	return id
}

func (w *workflow) reconciler() *reconcile.Reconciler {
	return reconcile.New(w.study, w.study, w.cfg.Import.AcceptanceThreshold, w.logger)
}

func (w *workflow) newApp(path string) *tui.App {
	return tui.NewApp(w.reconciler(), w.open, w.studyID, path, w.cfg.Import.AcceptanceThreshold, w.logger)
}

// open reads the file for upload. In full data mode the rows are also
// extracted locally so the whole sheet is imported, not just the preview.
func (w *workflow) open(path string) (analysis.Upload, reconcile.RowSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return analysis.Upload{}, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	upload := analysis.Upload{Filename: filepath.Base(path), Content: bytes.NewReader(data)}

	if w.cfg.Import.DataMode != config.DataModeFull || !extract.Supported(path) {
		return upload, nil, nil
	}
	wb, err := extract.Read(upload.Filename, bytes.NewReader(data))
	if err != nil {
		return analysis.Upload{}, nil, fmt.Errorf("reading rows from %s: %w", path, err)
	}
	return upload, wb, nil
}

func (w *workflow) analyzeFile(ctx context.Context, rec *reconcile.Reconciler, path string) (*analysis.Result, error) {
	upload, rows, err := w.open(path)
	if err != nil {
		return nil, err
	}
	res, err := rec.Analyze(ctx, upload, rows)
	if err != nil {
		if reconcile.Local(err) {
			return nil, err
		}
		return nil, errors.New(rdstudy.Message(err, rdstudy.AnalyzeFailed))
	}
	return res, nil
}

// importNow commits the seeded mapping without review.
func (w *workflow) importNow(ctx context.Context, path string) error {
	rec := w.reconciler()
	if _, err := w.analyzeFile(ctx, rec, path); err != nil {
		return err
	}

	st, ok := rec.State().(reconcile.Reviewing)
	if !ok {
		return fmt.Errorf("analysis was not loaded")
	}
	target := rec.CommitTarget()
	if target < 0 {
		return fmt.Errorf("%s has no sheets to import", path)
	}
	sheet := st.Analysis.Sheets[target]
	attempt := tui.Attempt{
		Filename:  st.Analysis.Filename,
		SheetName: sheet.SheetName,
		DataType:  sheet.DetectedCategory,
		Mappings:  st.Overlays[target].Flatten(),
		RowCount:  sheet.RowCount,
	}

	outcome, err := rec.Commit(ctx)
	attempt.Err = err
	if outcome != nil {
		attempt.ImportedCount = outcome.ImportedCount
	}
	w.finish(ctx, []tui.Attempt{attempt})

	if err != nil {
		return errors.New(tui.CommitMessage(err))
	}
	return nil
}

// finish records every attempt that reached the server, announces the
// successful one and reloads the record list it changed. None of this fails
// the command.
func (w *workflow) finish(ctx context.Context, attempts []tui.Attempt) {
	w.recordHistory(attempts)

	for _, at := range attempts {
		if at.Err != nil {
			continue
		}
		if err := w.notifier.Notify("rdimport", notify.Imported(at.ImportedCount)); err != nil {
			w.logger.Debug("notification failed", "error", err)
		}
		w.reloadList(ctx, at.DataType)
	}
}

func (w *workflow) recordHistory(attempts []tui.Attempt) {
	db, err := store.Open(w.dataDir)
	if err != nil {
		w.logger.Error("opening history", "error", err)
		return
	}
	defer db.Close()

	for _, at := range attempts {
		if at.Err != nil && reconcile.Local(at.Err) {
			continue
		}
		imp := store.Import{
			StudyID:       w.studyID,
			Filename:      at.Filename,
			SheetName:     at.SheetName,
			DataType:      string(at.DataType),
			Mappings:      at.Mappings,
			RowCount:      at.RowCount,
			ImportedCount: at.ImportedCount,
			Status:        store.StatusImported,
		}
		if at.Err != nil {
			imp.Status = store.StatusFailed
			imp.Error = rdstudy.Message(at.Err, rdstudy.ImportFailed)
		}
		if _, err := db.InsertImport(&imp); err != nil {
			w.logger.Error("saving import history", "error", err)
		}
	}

	if w.studyID != "" {
		if err := db.SetState(lastStudyKey, w.studyID); err != nil {
			w.logger.Debug("saving last study", "error", err)
		}
	}
}

func (w *workflow) reloadList(ctx context.Context, category analysis.Category) {
	if _, ok := rdstudy.ListResource(category); !ok {
		return
	}
	records, err := w.study.ListRecords(ctx, category)
	if err != nil {
		w.logger.Warn("reloading records", "category", category, "error", err)
		return
	}
	fmt.Fprintf(w.out, "Study %s now has %d %s records\n", w.studyID, len(records), category)
}
