package tui

import (
	"fmt"
	"strings"

	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/analysis"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/reconcile"
)

// reviewItem is one line of the review list: a sheet header (column -1) or
// a column of the expanded sheet.
type reviewItem struct {
	sheet  int
	column int
}

type suggestionsModel struct {
	review    reconcile.Review
	target    int
	threshold float64
	cursor    int
}

func newSuggestionsModel(rv reconcile.Review, target int, threshold float64) suggestionsModel {
	m := suggestionsModel{review: rv, target: target, threshold: threshold}
	if rv.Expanded >= 0 {
		m.cursor = m.indexOf(reviewItem{sheet: rv.Expanded, column: -1})
	}
	return m
}

// refresh swaps in a newer snapshot and keeps the cursor on the same item
// when it still exists.
func (m suggestionsModel) refresh(rv reconcile.Review, target int) suggestionsModel {
	current, ok := m.current()
	m.review = rv
	m.target = target
	if ok {
		if i := m.indexOf(current); i >= 0 {
			m.cursor = i
			return m
		}
		if i := m.indexOf(reviewItem{sheet: current.sheet, column: -1}); i >= 0 {
			m.cursor = i
			return m
		}
	}
	m.cursor = min(m.cursor, len(m.items())-1)
	return m
}

func (m suggestionsModel) items() []reviewItem {
	var items []reviewItem
	if m.review.Analysis == nil {
		return items
	}
	for i, sheet := range m.review.Analysis.Sheets {
		items = append(items, reviewItem{sheet: i, column: -1})
		if i != m.review.Expanded {
			continue
		}
		for c := range sheet.ColumnMappings {
			items = append(items, reviewItem{sheet: i, column: c})
		}
	}
	return items
}

func (m suggestionsModel) indexOf(it reviewItem) int {
	for i, x := range m.items() {
		if x == it {
			return i
		}
	}
	return -1
}

func (m suggestionsModel) current() (reviewItem, bool) {
	items := m.items()
	if m.cursor < 0 || m.cursor >= len(items) {
		return reviewItem{}, false
	}
	return items[m.cursor], true
}

func (m *suggestionsModel) up() {
	if m.cursor > 0 {
		m.cursor--
	}
}

func (m *suggestionsModel) down() {
	if m.cursor < len(m.items())-1 {
		m.cursor++
	}
}

func (m suggestionsModel) View() string {
	var sb strings.Builder

	res := m.review.Analysis
	sb.WriteString(titleStyle.Render("Review mapping: " + res.Filename))
	sb.WriteString("\n")

	items := m.items()
	for i, it := range items {
		sheet := res.Sheets[it.sheet]
		var line string
		if it.column < 0 {
			line = m.sheetLine(it.sheet, sheet)
		} else {
			line = m.columnLine(m.review.Overlays[it.sheet], sheet.ColumnMappings[it.column])
		}

		prefix := "  "
		if i == m.cursor {
			prefix = "> "
			line = highlightStyle.Render(line)
		}
		sb.WriteString(prefix + line + "\n")

		if it.column < 0 && it.sheet == m.review.Expanded {
			for _, issue := range sheet.Issues {
				sb.WriteString("    " + warningStyle.Render("! "+issue) + "\n")
			}
		}
	}

	if len(res.Recommendations) > 0 {
		sb.WriteString("\n")
		for _, r := range res.Recommendations {
			sb.WriteString(dimStyle.Render("• "+r) + "\n")
		}
	}

	return sb.String()
}

func (m suggestionsModel) sheetLine(i int, sheet analysis.Sheet) string {
	marker := "▸"
	if i == m.review.Expanded {
		marker = "▾"
	}
	line := fmt.Sprintf("%s %s  %s %s  %d rows",
		marker,
		sheet.SheetName,
		sheet.DetectedCategory,
		confidenceStyle(sheet.CategoryConfidence, m.threshold).Render(fmt.Sprintf("%.0f%%", sheet.CategoryConfidence*100)),
		sheet.RowCount,
	)
	if i == m.target {
		line += "  " + successStyle.Render("[import]")
	}
	return line
}

func (m suggestionsModel) columnLine(overlay reconcile.Overlay, col analysis.ColumnMapping) string {
	mapped := dimStyle.Render("unmapped")
	if f, ok := overlay.FieldFor(col.SourceColumn); ok {
		mapped = selectedStyle.Render(string(f))
	}

	line := fmt.Sprintf("    %-24s → %s", col.SourceColumn, mapped)

	if s := col.Suggested(); s != "" {
		if f, _ := overlay.FieldFor(col.SourceColumn); f != s {
			line += "  " + dimStyle.Render("suggested ") + string(s)
		}
		line += " " + confidenceStyle(col.Confidence, m.threshold).Render(fmt.Sprintf("%.0f%%", col.Confidence*100))
	}

	if len(col.SampleValues) > 0 {
		samples := make([]string, 0, len(col.SampleValues))
		for _, v := range col.SampleValues {
			samples = append(samples, fmt.Sprint(v))
		}
		line += "  " + dimStyle.Render("e.g. "+strings.Join(samples, ", "))
	}
	return line
}
