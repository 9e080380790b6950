package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// inputModel asks for the path of the file to upload.
type inputModel struct {
	textInput textinput.Model
	studyInfo string
}

func newInputModel(studyInfo string, prefill string) inputModel {
	ti := textinput.New()
	ti.Placeholder = "path/to/payroll.xlsx"
	ti.CharLimit = 500
	ti.Width = 60
	ti.Focus()

	if prefill != "" {
		ti.SetValue(prefill)
	}

	return inputModel{
		textInput: ti,
		studyInfo: studyInfo,
	}
}

func (m inputModel) Update(msg tea.Msg) (inputModel, tea.Cmd) {
	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	header := titleStyle.Render("rdimport: Upload data")
	studyLabel := subtitleStyle.Render(m.studyInfo)
	help := helpStyle.Render("Enter: analyze • Ctrl+C: quit")

	return header + "\n" + studyLabel + "\n" + m.textInput.View() + "\n" + help
}

func (m inputModel) Value() string {
	return m.textInput.Value()
}
