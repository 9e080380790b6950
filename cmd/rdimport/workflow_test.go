package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/ai"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/analysis"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/config"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/devserver"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/notify"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/rdstudy"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/reconcile"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/store"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/tui"
)

const testToken = "tok"

func newTestWorkflow(t *testing.T, mutate func(*config.Config)) (*workflow, *bytes.Buffer, string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("RDIMPORT_CONFIG_DIR", dir)

	server := httptest.NewServer(devserver.New(ai.NewHeuristic(), testToken, nil))
	t.Cleanup(server.Close)

	cfg := config.DefaultConfig()
	cfg.API.BaseURL = server.URL + "/api"
	cfg.API.StudyID = "st-1"
	cfg.Token = testToken
	cfg.Notifications.Enabled = false
	if mutate != nil {
		mutate(&cfg)
	}

	w, err := newWorkflow(&cfg, nil)
	require.NoError(t, err)

	var out bytes.Buffer
	w.out = &out
	w.notifier = notify.Multi{notify.NewTerminal(&out)}
	return w, &out, dir
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func payrollCSV(rows int) string {
	var sb strings.Builder
	sb.WriteString("Full Name,Annual Salary\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&sb, "Person %d,%d\n", i+1, 50000+i)
	}
	return sb.String()
}

func listHistory(t *testing.T, dir string) []store.Import {
	t.Helper()
	db, err := store.Open(dir)
	require.NoError(t, err)
	defer db.Close()
	imports, err := db.ListImports(time.Time{}, 0)
	require.NoError(t, err)
	return imports
}

func TestImportNow_FullData(t *testing.T) {
	w, out, dir := newTestWorkflow(t, nil)
	path := writeFile(t, "payroll.csv", payrollCSV(7))

	require.NoError(t, w.importNow(context.Background(), path))

	assert.Contains(t, out.String(), "Successfully imported 7 records")
	assert.Contains(t, out.String(), "Study st-1 now has 7 payroll records")

	imports := listHistory(t, dir)
	require.Len(t, imports, 1)
	assert.Equal(t, store.StatusImported, imports[0].Status)
	assert.Equal(t, "payroll", imports[0].DataType)
	assert.Equal(t, 7, imports[0].ImportedCount)
	assert.Equal(t, map[string]string{"name": "Full Name", "wages": "Annual Salary"}, imports[0].Mappings)

	db, err := store.Open(dir)
	require.NoError(t, err)
	defer db.Close()
	last, err := db.GetState(lastStudyKey)
	require.NoError(t, err)
	assert.Equal(t, "st-1", last)
}

func TestImportNow_PreviewData(t *testing.T) {
	w, out, _ := newTestWorkflow(t, func(c *config.Config) {
		c.Import.DataMode = config.DataModePreview
	})
	path := writeFile(t, "payroll.csv", payrollCSV(7))

	require.NoError(t, w.importNow(context.Background(), path))
	assert.Contains(t, out.String(), "Successfully imported 5 records")
}

func TestImportNow_FailureRecorded(t *testing.T) {
	w, out, dir := newTestWorkflow(t, nil)
	path := writeFile(t, "shapes.csv", "Color,Shape\nred,circle\n")

	err := w.importNow(context.Background(), path)
	require.Error(t, err)
	assert.NotContains(t, out.String(), "Successfully imported")

	imports := listHistory(t, dir)
	require.Len(t, imports, 1)
	assert.Equal(t, store.StatusFailed, imports[0].Status)
	assert.Equal(t, err.Error(), imports[0].Error)
}

func TestAnalyzeFile_Unauthorized(t *testing.T) {
	w, _, dir := newTestWorkflow(t, func(c *config.Config) {
		c.Token = "stale"
	})
	path := writeFile(t, "payroll.csv", payrollCSV(1))

	_, err := w.analyzeFile(context.Background(), w.reconciler(), path)
	require.Error(t, err)
	assert.Equal(t, "Invalid or expired token", err.Error())
	assert.Empty(t, listHistory(t, dir))
}

func TestAnalyzeFile_MissingFile(t *testing.T) {
	w, _, _ := newTestWorkflow(t, nil)

	_, err := w.analyzeFile(context.Background(), w.reconciler(), filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading")
}

func TestResolveStudyID_FallsBackToLastImport(t *testing.T) {
	w, _, dir := newTestWorkflow(t, nil)
	require.NoError(t, w.importNow(context.Background(), writeFile(t, "payroll.csv", payrollCSV(1))))

	cfg := *w.cfg
	cfg.API.StudyID = ""
	w2, err := newWorkflow(&cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, dir, w2.dataDir)
	assert.Equal(t, "st-1", w2.studyID)
}

func TestNewApp_ShowsResolvedStudy(t *testing.T) {
	w, _, _ := newTestWorkflow(t, nil)
	require.NoError(t, w.importNow(context.Background(), writeFile(t, "payroll.csv", payrollCSV(1))))

	cfg := *w.cfg
	cfg.API.StudyID = ""
	w2, err := newWorkflow(&cfg, nil)
	require.NoError(t, err)
	assert.Contains(t, w2.newApp("").View(), "Study st-1")
}

func TestAnalyzeFile_MissingStudy(t *testing.T) {
	w, _, dir := newTestWorkflow(t, func(c *config.Config) {
		c.API.StudyID = ""
	})
	require.Empty(t, w.studyID)

	_, err := w.analyzeFile(context.Background(), w.reconciler(), writeFile(t, "payroll.csv", payrollCSV(1)))
	require.Error(t, err)
	assert.Equal(t, rdstudy.ErrNoStudy.Error(), err.Error())
	assert.Empty(t, listHistory(t, dir))
}

func TestRecordHistory_SkipsLocalFailures(t *testing.T) {
	w, _, dir := newTestWorkflow(t, nil)

	w.recordHistory([]tui.Attempt{
		{Filename: "a.xlsx", SheetName: "Payroll", DataType: analysis.CategoryPayroll,
			Err: fmt.Errorf("%w of %q: %w", reconcile.ErrRows, "Payroll", errors.New("sheet not found"))},
		{Filename: "a.xlsx", SheetName: "Payroll", DataType: analysis.CategoryPayroll,
			Err: &rdstudy.APIError{StatusCode: 422, Detail: "Missing required field: wages"}},
	})

	imports := listHistory(t, dir)
	require.Len(t, imports, 1)
	assert.Equal(t, "Missing required field: wages", imports[0].Error)
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, nil)
	assert.Equal(t, "No imports recorded.\n", buf.String())

	buf.Reset()
	printHistory(&buf, []store.Import{
		{StudyID: "st-1", Filename: "a.csv", SheetName: "a", DataType: "payroll", RowCount: 3, ImportedCount: 3,
			Status: store.StatusImported, Mappings: map[string]string{"wages": "Pay", "name": "Who"}, CreatedAt: time.Now()},
		{StudyID: "st-1", Filename: "b.csv", SheetName: "b", DataType: "unknown", Status: store.StatusFailed,
			Error: "Cannot import data of type unknown", CreatedAt: time.Now()},
	})
	assert.Contains(t, buf.String(), "name=Who, wages=Pay")
	assert.Contains(t, buf.String(), "[failed: Cannot import data of type unknown]")
	assert.Contains(t, buf.String(), "3 records imported (2 attempts)")
}

func TestPrintReview(t *testing.T) {
	w, _, _ := newTestWorkflow(t, nil)
	rec := w.reconciler()
	_, err := w.analyzeFile(context.Background(), rec, writeFile(t, "payroll.csv", payrollCSV(2)))
	require.NoError(t, err)

	st, ok := rec.State().(reconcile.Reviewing)
	require.True(t, ok)

	var buf bytes.Buffer
	printReview(&buf, st.Review, rec.CommitTarget(), w.cfg.Import.AcceptanceThreshold)

	assert.Contains(t, buf.String(), "payroll.csv")
	assert.Contains(t, buf.String(), "[import]")
	assert.Contains(t, buf.String(), "→ name")
	assert.Contains(t, buf.String(), string(analysis.CategoryPayroll))
}
