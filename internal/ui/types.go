package ui

import (
	"github.com/charmbracelet/bubbles/progress"

	"github.com/hx0day/dashprobe/internal/scanner"
)

// ViewMode represents the display mode
type ViewMode int

const (
	ModeDefault ViewMode = iota
	ModeVerbose
	ModeDebug
)

// maxVisibleResults bounds the result lines kept on screen
const maxVisibleResults = 15

// View represents the main UI state
type View struct {
	// Progress tracking
	Progress progress.Model
	Total    int
	Current  int

	// Per-status counters
	Open    int
	Closed  int
	Timeout int
	Errored int

	// Most recent port results, newest last
	Recent []scanner.Result

	// Display mode
	Mode ViewMode

	// Debug messages
	DebugMessages []string

	// Scan metadata
	DashboardURL string
	Target       string
	Version      string

	Done bool
}

// NewView creates a new View with sensible defaults
func NewView() *View {
	return &View{
		Progress:      progress.New(progress.WithDefaultGradient()),
		Recent:        make([]scanner.Result, 0, maxVisibleResults),
		DebugMessages: make([]string, 0),
		Mode:          ModeDefault,
	}
}

// SetMode sets the display mode
func (v *View) SetMode(verbose, debug bool) {
	if debug {
		v.Mode = ModeDebug
	} else if verbose {
		v.Mode = ModeVerbose
	} else {
		v.Mode = ModeDefault
	}
}

// AddDebugMessage adds a debug message to the log
func (v *View) AddDebugMessage(msg string) {
	v.DebugMessages = append(v.DebugMessages, msg)
	// Keep only last 50 messages
	if len(v.DebugMessages) > 50 {
		v.DebugMessages = v.DebugMessages[len(v.DebugMessages)-50:]
	}
}

// RecordResult folds a completed port result into the view state
func (v *View) RecordResult(current, total int, result scanner.Result) {
	v.Current = current
	v.Total = total

	switch result.Status {
	case scanner.StatusOpen:
		v.Open++
	case scanner.StatusClosed:
		v.Closed++
	case scanner.StatusTimeout:
		v.Timeout++
	default:
		v.Errored++
	}

	v.Recent = append(v.Recent, result)
	if len(v.Recent) > maxVisibleResults {
		v.Recent = v.Recent[len(v.Recent)-maxVisibleResults:]
	}
}

// PercentDone returns scan completion as a fraction
func (v *View) PercentDone() float64 {
	if v.Total == 0 {
		return 0
	}
	return float64(v.Current) / float64(v.Total)
}

// IsValid checks if the View state is valid
func (v *View) IsValid() bool {
	return v.Total >= 0 &&
		v.Current >= 0 &&
		v.Current <= v.Total &&
		v.Recent != nil
}
