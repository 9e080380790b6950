package tui

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/analysis"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/notify"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/rdstudy"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/reconcile"
)

type viewState int

const (
	inputView viewState = iota
	analyzingView
	reviewView
	editView
	committingView
	doneView
)

// Opener loads the file at path for analysis. The row source may be nil, in
// which case the preview rows are imported.
type Opener func(path string) (analysis.Upload, reconcile.RowSource, error)

// Attempt is one commit as it was sent, with its outcome.
type Attempt struct {
	Filename      string
	SheetName     string
	DataType      analysis.Category
	Mappings      map[string]string
	RowCount      int
	ImportedCount int
	Err           error
}

type Result struct {
	Attempts []Attempt
}

type analyzedMsg struct {
	res   *analysis.Result
	err   error
	local bool
}

type committedMsg struct {
	attempt Attempt
}

type App struct {
	state       viewState
	input       inputModel
	spinner     spinner.Model
	suggestions suggestionsModel
	edit        editModel
	result      Result
	errMsg      string
	notice      string

	rec       *reconcile.Reconciler
	open      Opener
	threshold float64
	path      string
	logger    *slog.Logger
}

// NewApp builds the import workflow UI. A non-empty path is analyzed as soon
// as the program starts.
func NewApp(rec *reconcile.Reconciler, open Opener, studyID, path string, threshold float64, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if threshold <= 0 || threshold >= 1 {
		threshold = reconcile.DefaultAcceptanceThreshold
	}

	s := spinner.New()
	s.Spinner = spinner.Dot

	return &App{
		state:     inputView,
		input:     newInputModel("Study "+studyID, path),
		spinner:   s,
		rec:       rec,
		open:      open,
		threshold: threshold,
		path:      path,
		logger:    logger,
	}
}

func (a *App) Init() tea.Cmd {
	if a.path != "" {
		return a.startAnalyze(a.path)
	}
	return a.spinner.Tick
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
	case analyzedMsg:
		return a.handleAnalyzed(msg)
	case committedMsg:
		return a.handleCommitted(msg)
	}

	switch a.state {
	case inputView:
		return a.updateInput(msg)
	case analyzingView, committingView:
		return a.updateBusy(msg)
	case reviewView:
		return a.updateReview(msg)
	case editView:
		return a.updateEdit(msg)
	case doneView:
		return a.updateDone(msg)
	}

	return a, nil
}

func (a *App) View() string {
	banner := ""
	if a.errMsg != "" {
		banner = errorStyle.Render("Error: ") + a.errMsg + "\n\n"
	}

	switch a.state {
	case inputView:
		return banner + a.input.View()
	case analyzingView:
		return a.spinner.View() + " Analyzing " + a.path + "..."
	case reviewView:
		return boxStyle.Render(banner + a.suggestions.View() + "\n" +
			helpStyle.Render("Enter: expand/edit • u: unmap • c: import • j/k: nav • r: start over • Esc: cancel"))
	case editView:
		return banner + a.edit.View()
	case committingView:
		return boxStyle.Render(a.suggestions.View() + "\n" + a.spinner.View() + " Importing...")
	case doneView:
		return successStyle.Render(a.notice) + "\n\n" + helpStyle.Render("r: import another file • any other key: exit")
	}
	return ""
}

func (a *App) GetResult() Result {
	return a.result
}

func (a *App) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.String() == "enter" && a.input.Value() != "" {
			return a, a.startAnalyze(a.input.Value())
		}
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) updateBusy(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	a.spinner, cmd = a.spinner.Update(msg)
	return a, cmd
}

func (a *App) updateReview(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return a, nil
	}

	switch keyMsg.String() {
	case "up", "k":
		a.suggestions.up()
	case "down", "j":
		a.suggestions.down()
	case "enter":
		it, ok := a.suggestions.current()
		if !ok {
			return a, nil
		}
		if it.column < 0 {
			a.toggleSheet(it.sheet)
			return a, nil
		}
		return a, a.openEdit(it)
	case "u":
		it, ok := a.suggestions.current()
		if !ok || it.column < 0 {
			return a, nil
		}
		col := a.suggestions.review.Analysis.Sheets[it.sheet].ColumnMappings[it.column]
		a.apply(a.rec.ClearColumn(it.sheet, col.SourceColumn))
	case "c":
		return a, a.startCommit()
	case "esc", "r":
		return a, a.startOver()
	}
	return a, nil
}

func (a *App) toggleSheet(sheet int) {
	var err error
	if a.suggestions.review.Expanded == sheet {
		err = a.rec.Collapse()
	} else {
		err = a.rec.Expand(sheet)
	}
	a.apply(err)
}

func (a *App) openEdit(it reviewItem) tea.Cmd {
	sheet := a.suggestions.review.Analysis.Sheets[it.sheet]
	col := sheet.ColumnMappings[it.column]
	current, _ := a.suggestions.review.Overlays[it.sheet].FieldFor(col.SourceColumn)

	var extra []analysis.Field
	for _, m := range sheet.ColumnMappings {
		if s := m.Suggested(); s != "" {
			extra = append(extra, s)
		}
	}

	a.edit = newEditModel(it.sheet, col, current, extra)
	a.state = editView
	return a.edit.textInput.Focus()
}

func (a *App) updateEdit(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			a.state = reviewView
			return a, nil
		case "enter":
			field, unmap, ok := a.edit.Selected()
			if !ok {
				return a, nil
			}
			var err error
			if unmap {
				err = a.rec.ClearColumn(a.edit.sheet, a.edit.column)
			} else {
				err = a.rec.Assign(a.edit.sheet, field, a.edit.column)
			}
			a.state = reviewView
			a.apply(err)
			return a, nil
		}
	}

	var cmd tea.Cmd
	a.edit, cmd = a.edit.Update(msg)
	return a, cmd
}

func (a *App) updateDone(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.String() == "r" {
			a.state = inputView
			a.input = newInputModel(a.input.studyInfo, "")
			return a, a.input.textInput.Focus()
		}
		return a, tea.Quit
	}
	return a, nil
}

// apply shows the outcome of an edit and refreshes the review snapshot.
func (a *App) apply(err error) {
	if err != nil {
		a.logger.Debug("edit rejected", "error", err)
		a.errMsg = err.Error()
	} else {
		a.errMsg = ""
	}
	a.refresh()
}

func (a *App) refresh() {
	switch st := a.rec.State().(type) {
	case reconcile.Reviewing:
		a.suggestions = a.suggestions.refresh(st.Review, a.rec.CommitTarget())
	case reconcile.Committing:
		a.suggestions = a.suggestions.refresh(st.Review, a.rec.CommitTarget())
	}
}

func (a *App) startOver() tea.Cmd {
	if err := a.rec.Cancel(); err != nil {
		a.errMsg = err.Error()
		return nil
	}
	a.errMsg = ""
	a.state = inputView
	a.input = newInputModel(a.input.studyInfo, "")
	return a.input.textInput.Focus()
}

func (a *App) startAnalyze(path string) tea.Cmd {
	a.path = path
	a.errMsg = ""
	a.state = analyzingView
	return tea.Batch(a.spinner.Tick, a.analyze(path))
}

func (a *App) analyze(path string) tea.Cmd {
	return func() tea.Msg {
		upload, rows, err := a.open(path)
		if err != nil {
			return analyzedMsg{err: err, local: true}
		}
		if c, ok := upload.Content.(io.Closer); ok {
			defer c.Close()
		}
		res, err := a.rec.Analyze(context.Background(), upload, rows)
		return analyzedMsg{res: res, err: err}
	}
}

func (a *App) handleAnalyzed(msg analyzedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		a.errMsg = analyzeMessage(msg)
		if _, ok := a.rec.State().(reconcile.Reviewing); ok {
			a.state = reviewView
			a.refresh()
			return a, nil
		}
		a.state = inputView
		return a, nil
	}

	st, ok := a.rec.State().(reconcile.Reviewing)
	if !ok {
		a.state = inputView
		return a, nil
	}
	a.suggestions = newSuggestionsModel(st.Review, a.rec.CommitTarget(), a.threshold)
	a.state = reviewView
	return a, nil
}

// analyzeMessage is the banner for a failed analysis: local errors as they
// are, server errors as the server's detail or the generic message.
func analyzeMessage(msg analyzedMsg) string {
	if msg.local || reconcile.Local(msg.err) {
		return msg.err.Error()
	}
	return rdstudy.Message(msg.err, rdstudy.AnalyzeFailed)
}

// CommitMessage is the text shown for a failed import. Errors raised before
// the request was sent are shown as they are.
func CommitMessage(err error) string {
	if reconcile.Local(err) {
		return err.Error()
	}
	return rdstudy.Message(err, rdstudy.ImportFailed)
}

func (a *App) startCommit() tea.Cmd {
	st, ok := a.rec.State().(reconcile.Reviewing)
	if !ok {
		return nil
	}
	target := a.rec.CommitTarget()
	if target < 0 {
		return nil
	}
	sheet := st.Analysis.Sheets[target]
	attempt := Attempt{
		Filename:  st.Analysis.Filename,
		SheetName: sheet.SheetName,
		DataType:  sheet.DetectedCategory,
		Mappings:  st.Overlays[target].Flatten(),
		RowCount:  sheet.RowCount,
	}

	a.errMsg = ""
	a.state = committingView
	return tea.Batch(a.spinner.Tick, a.commit(attempt))
}

func (a *App) commit(attempt Attempt) tea.Cmd {
	return func() tea.Msg {
		outcome, err := a.rec.Commit(context.Background())
		attempt.Err = err
		if outcome != nil {
			attempt.ImportedCount = outcome.ImportedCount
		}
		return committedMsg{attempt: attempt}
	}
}

func (a *App) handleCommitted(msg committedMsg) (tea.Model, tea.Cmd) {
	a.result.Attempts = append(a.result.Attempts, msg.attempt)

	if msg.attempt.Err != nil {
		a.errMsg = CommitMessage(msg.attempt.Err)
		a.state = reviewView
		a.refresh()
		return a, nil
	}

	a.logger.Info("import committed",
		"filename", msg.attempt.Filename,
		"sheet", msg.attempt.SheetName,
		"imported", msg.attempt.ImportedCount,
	)
	a.notice = notify.Imported(msg.attempt.ImportedCount)
	a.state = doneView
	return a, nil
}

// Summary is the line printed after the program exits.
func (r Result) Summary() string {
	var imported, failed int
	for _, at := range r.Attempts {
		if at.Err != nil {
			failed++
			continue
		}
		imported += at.ImportedCount
	}
	if failed == 0 {
		return fmt.Sprintf("%d records imported", imported)
	}
	return fmt.Sprintf("%d records imported, %d failed attempts", imported, failed)
}
