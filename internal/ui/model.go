package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hx0day/dashprobe/internal/scanner"
)

// ResultMsg carries a completed port result into the UI loop
type ResultMsg struct {
	Current int
	Total   int
	Result  scanner.Result
}

// DebugMsg appends a line to the debug log
type DebugMsg string

// DoneMsg signals that the scan has finished
type DoneMsg struct{}

// Model is the bubbletea model wrapping the view state
type Model struct {
	view *View
}

// NewModel creates a UI model around a view
func NewModel(view *View) Model {
	return Model{view: view}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		width := msg.Width - 2*BorderPadding - 2
		if width > 0 {
			m.view.Progress.Width = width
			if m.view.Progress.Width > DefaultWidth-4 {
				m.view.Progress.Width = DefaultWidth - 4
			}
		}

	case ResultMsg:
		m.view.RecordResult(msg.Current, msg.Total, msg.Result)

	case DebugMsg:
		m.view.AddDebugMessage(string(msg))

	case DoneMsg:
		m.view.Done = true
	}

	return m, nil
}

func (m Model) View() string {
	return m.view.Render()
}
