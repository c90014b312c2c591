package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hx0day/dashprobe/internal/scanner"
)

func TestRecordResultTallies(t *testing.T) {
	view := NewView()

	view.RecordResult(1, 4, scanner.Result{Port: 80, Status: scanner.StatusOpen})
	view.RecordResult(2, 4, scanner.Result{Port: 81, Status: scanner.StatusClosed})
	view.RecordResult(3, 4, scanner.Result{Port: 82, Status: scanner.StatusTimeout})
	view.RecordResult(4, 4, scanner.Result{Port: 83, Status: scanner.StatusError})

	if view.Open != 1 || view.Closed != 1 || view.Timeout != 1 || view.Errored != 1 {
		t.Errorf("tallies = open:%d closed:%d timeout:%d error:%d",
			view.Open, view.Closed, view.Timeout, view.Errored)
	}
	if view.Current != 4 || view.Total != 4 {
		t.Errorf("progress = %d/%d", view.Current, view.Total)
	}
}

func TestRecentResultsBounded(t *testing.T) {
	view := NewView()

	for i := 1; i <= maxVisibleResults+10; i++ {
		view.RecordResult(i, 100, scanner.Result{Port: 8000 + i, Status: scanner.StatusClosed})
	}

	if len(view.Recent) != maxVisibleResults {
		t.Errorf("recent = %d entries, want %d", len(view.Recent), maxVisibleResults)
	}
	// Oldest entries fall off the front
	if view.Recent[0].Port != 8000+11 {
		t.Errorf("oldest visible port = %d", view.Recent[0].Port)
	}
}

func TestRenderContainsResults(t *testing.T) {
	view := NewView()
	view.Target = "10.0.0.5"
	view.DashboardURL = "http://dash.example:3000"
	view.RecordResult(1, 2, scanner.Result{Port: 80, Status: scanner.StatusOpen, StatusCode: 200})

	output := view.Render()

	for _, want := range []string{"dashprobe", "80", "open:1", "1/2 ports"} {
		if !strings.Contains(output, want) {
			t.Errorf("render output missing %q", want)
		}
	}
}

func TestRenderModes(t *testing.T) {
	view := NewView()
	view.SetMode(false, false)
	if view.Mode != ModeDefault {
		t.Errorf("mode = %v, want default", view.Mode)
	}

	view.SetMode(true, false)
	if view.Mode != ModeVerbose {
		t.Errorf("mode = %v, want verbose", view.Mode)
	}

	// Debug wins over verbose
	view.SetMode(true, true)
	if view.Mode != ModeDebug {
		t.Errorf("mode = %v, want debug", view.Mode)
	}
}

func TestRenderDebugLog(t *testing.T) {
	view := NewView()
	view.SetMode(false, true)
	view.AddDebugMessage("created datasource id=42 port=80")

	output := view.Render()
	if !strings.Contains(output, "created datasource id=42 port=80") {
		t.Error("debug log missing from debug mode render")
	}

	view.SetMode(false, false)
	output = view.Render()
	if strings.Contains(output, "created datasource id=42") {
		t.Error("debug log should not render in default mode")
	}
}

func TestDebugMessagesBounded(t *testing.T) {
	view := NewView()
	for i := 0; i < 80; i++ {
		view.AddDebugMessage("message")
	}
	if len(view.DebugMessages) != 50 {
		t.Errorf("debug messages = %d, want 50", len(view.DebugMessages))
	}
}

func TestModelUpdate(t *testing.T) {
	view := NewView()
	model := NewModel(view)

	next, _ := model.Update(ResultMsg{
		Current: 1,
		Total:   3,
		Result:  scanner.Result{Port: 80, Status: scanner.StatusOpen},
	})
	model = next.(Model)

	if view.Open != 1 {
		t.Errorf("open = %d, want 1", view.Open)
	}

	next, _ = model.Update(DoneMsg{})
	model = next.(Model)
	if !view.Done {
		t.Error("done flag not set")
	}

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Error("expected quit command on q")
	}
}

func TestStatusIconAndStyle(t *testing.T) {
	tests := []struct {
		status string
		icon   string
	}{
		{"open", IconOpen},
		{"closed/filtered", IconClosed},
		{"timeout", IconTimeout},
		{"error", IconError},
	}

	for _, tt := range tests {
		if got := StatusIcon(tt.status); got != tt.icon {
			t.Errorf("StatusIcon(%q) = %q, want %q", tt.status, got, tt.icon)
		}
	}
}
