package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/analysis"
)

// unmappedOption is the picker entry that clears a column's mapping.
const unmappedOption = "Unmapped"

// editModel picks the target field of one column.
type editModel struct {
	sheet     int
	column    string
	current   analysis.Field
	options   []string
	filtered  []string
	cursor    int
	textInput textinput.Model
}

func newEditModel(sheet int, col analysis.ColumnMapping, current analysis.Field, extra []analysis.Field) editModel {
	ti := textinput.New()
	ti.Placeholder = "Filter fields..."
	ti.CharLimit = 50
	ti.Width = 30
	ti.Focus()

	options := []string{unmappedOption}
	for _, f := range analysis.Fields {
		options = append(options, string(f))
	}
	for _, f := range extra {
		if !f.Valid() {
			options = append(options, string(f))
		}
	}

	m := editModel{
		sheet:     sheet,
		column:    col.SourceColumn,
		current:   current,
		options:   options,
		filtered:  options,
		textInput: ti,
	}
	for i, o := range options {
		if o == string(current) {
			m.cursor = i
		}
	}
	return m
}

func (m editModel) Update(msg tea.Msg) (editModel, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "up", "ctrl+k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "ctrl+j":
			if m.cursor < len(m.filtered)-1 {
				m.cursor++
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)

	query := strings.ToLower(strings.TrimSpace(m.textInput.Value()))
	m.filtered = nil
	for _, o := range m.options {
		if strings.Contains(strings.ToLower(o), query) {
			m.filtered = append(m.filtered, o)
		}
	}
	if m.cursor >= len(m.filtered) {
		m.cursor = max(len(m.filtered)-1, 0)
	}
	return m, cmd
}

// Selected returns the highlighted field. unmap is true for the Unmapped
// entry; ok is false when the filter matches nothing.
func (m editModel) Selected() (field analysis.Field, unmap bool, ok bool) {
	if len(m.filtered) == 0 {
		return "", false, false
	}
	o := m.filtered[m.cursor]
	if o == unmappedOption {
		return "", true, true
	}
	return analysis.Field(o), false, true
}

func (m editModel) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(fmt.Sprintf("Map column %q", m.column)))
	sb.WriteString("\n")
	sb.WriteString(m.textInput.View())
	sb.WriteString("\n\n")

	for i, o := range m.filtered {
		prefix := "  "
		if i == m.cursor {
			prefix = "> "
		}
		line := prefix + o
		if o == string(m.current) || (o == unmappedOption && m.current == "") {
			line += dimStyle.Render("  (current)")
		}
		if i == m.cursor {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	if len(m.filtered) == 0 {
		sb.WriteString(dimStyle.Render("  no matching field"))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render("Enter: select • ↑/↓: nav • type to filter • Esc: back"))

	return boxStyle.Render(sb.String())
}
