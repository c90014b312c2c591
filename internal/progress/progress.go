package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressIndicator provides different types of progress indication for CLI
// runs without the full interactive display
type ProgressIndicator interface {
	Start(total int)
	Update(current int, status string)
	Finish(message string)
	SetOutput(writer io.Writer)
}

// ProgressType represents different types of progress indicators
type ProgressType string

const (
	ProgressTypeNone    ProgressType = "none"    // No progress indication
	ProgressTypeBasic   ProgressType = "basic"   // Simple text progress
	ProgressTypeBar     ProgressType = "bar"     // Progress bar
	ProgressTypePercent ProgressType = "percent" // Percentage only
)

// Config holds configuration for progress indicators
type Config struct {
	Type      ProgressType
	Width     int       // Width of progress bar
	ShowETA   bool      // Show estimated completion time
	ShowStats bool      // Show per-status counts
	NoColor   bool      // Disable colored output
	Output    io.Writer // Output destination (default: os.Stderr)
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Type:      ProgressTypeBar,
		Width:     50,
		ShowETA:   true,
		ShowStats: true,
		NoColor:   false,
		Output:    os.Stderr,
	}
}

// NewProgressIndicator creates a progress indicator based on the configuration
func NewProgressIndicator(config Config) ProgressIndicator {
	if config.Output == nil {
		config.Output = os.Stderr
	}
	if config.Width <= 0 {
		config.Width = 50
	}

	switch config.Type {
	case ProgressTypeNone:
		return &NoneIndicator{}
	case ProgressTypeBasic:
		return &BasicIndicator{config: config}
	case ProgressTypeBar:
		return &BarIndicator{config: config}
	case ProgressTypePercent:
		return &PercentIndicator{config: config}
	default:
		return &BasicIndicator{config: config}
	}
}

// Stats holds progress statistics. Each port lands in exactly one bucket,
// keyed by the classification the scanner assigned.
type Stats struct {
	Total     int
	Current   int
	Open      int
	Closed    int
	Timeout   int
	Errored   int
	StartTime time.Time
	ETA       time.Duration
	Rate      float64 // ports per second
}

func (s *Stats) record(current int, status string) {
	s.Current = current

	switch status {
	case "open":
		s.Open++
	case "closed/filtered":
		s.Closed++
	case "timeout":
		s.Timeout++
	default:
		s.Errored++
	}

	elapsed := time.Since(s.StartTime)
	if current > 0 && elapsed > 0 {
		s.Rate = float64(current) / elapsed.Seconds()
		if s.Rate > 0 {
			remaining := float64(s.Total - current)
			s.ETA = time.Duration(remaining/s.Rate) * time.Second
		}
	}
}

func (s *Stats) statsLine(noColor bool) string {
	if noColor {
		return fmt.Sprintf(" | open:%d closed:%d timeout:%d error:%d",
			s.Open, s.Closed, s.Timeout, s.Errored)
	}
	return fmt.Sprintf(" | \033[32mopen:%d\033[0m closed:%d timeout:%d \033[31merror:%d\033[0m",
		s.Open, s.Closed, s.Timeout, s.Errored)
}

// NoneIndicator provides no progress indication
type NoneIndicator struct{}

func (n *NoneIndicator) Start(total int)                  {}
func (n *NoneIndicator) Update(current int, status string) {}
func (n *NoneIndicator) Finish(message string)            {}
func (n *NoneIndicator) SetOutput(writer io.Writer)       {}

// BasicIndicator provides simple text-based progress
type BasicIndicator struct {
	config Config
	stats  Stats
	mutex  sync.Mutex
}

func (b *BasicIndicator) Start(total int) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.stats = Stats{
		Total:     total,
		StartTime: time.Now(),
	}

	fmt.Fprintf(b.config.Output, "Starting scan: %d ports to probe\n", total)
}

func (b *BasicIndicator) Update(current int, status string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.stats.record(current, status)

	progress := float64(current) / float64(b.stats.Total) * 100
	statusLine := fmt.Sprintf("Progress: %d/%d (%.1f%%)", current, b.stats.Total, progress)

	if b.config.ShowStats {
		statusLine += b.stats.statsLine(true)
	}

	if b.config.ShowETA && b.stats.ETA > 0 {
		statusLine += fmt.Sprintf(" | ETA: %v", b.stats.ETA.Round(time.Second))
	}

	fmt.Fprintf(b.config.Output, "\r%s", statusLine)

	if current == b.stats.Total {
		fmt.Fprintf(b.config.Output, "\n")
	}
}

func (b *BasicIndicator) Finish(message string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	elapsed := time.Since(b.stats.StartTime)

	fmt.Fprintf(b.config.Output, "\nCompleted: %d ports scanned in %v\n",
		b.stats.Current, elapsed.Round(time.Second))

	if b.config.ShowStats {
		fmt.Fprintf(b.config.Output, "Results: %d open, %d closed/filtered, %d timeout, %d error\n",
			b.stats.Open, b.stats.Closed, b.stats.Timeout, b.stats.Errored)
	}

	if message != "" {
		fmt.Fprintf(b.config.Output, "%s\n", message)
	}
}

func (b *BasicIndicator) SetOutput(writer io.Writer) {
	b.config.Output = writer
}

// BarIndicator provides a visual progress bar
type BarIndicator struct {
	config Config
	stats  Stats
	mutex  sync.Mutex
}

func (b *BarIndicator) Start(total int) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.stats = Stats{
		Total:     total,
		StartTime: time.Now(),
	}

	fmt.Fprintf(b.config.Output, "dashprobe: Scanning %d ports\n", total)
}

func (b *BarIndicator) Update(current int, status string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.stats.record(current, status)

	progress := float64(current) / float64(b.stats.Total)

	filledWidth := int(progress * float64(b.config.Width))
	var bar string
	if b.config.NoColor {
		bar = strings.Repeat("█", filledWidth) + strings.Repeat("░", b.config.Width-filledWidth)
	} else {
		bar = fmt.Sprintf("\033[32m%s\033[37m%s\033[0m",
			strings.Repeat("█", filledWidth),
			strings.Repeat("░", b.config.Width-filledWidth))
	}

	statusLine := fmt.Sprintf("\r[%s] %d/%d (%.1f%%)",
		bar, current, b.stats.Total, progress*100)

	if b.config.ShowStats {
		statusLine += b.stats.statsLine(b.config.NoColor)
	}

	if b.config.ShowETA && b.stats.ETA > 0 {
		statusLine += fmt.Sprintf(" | ETA: %v", b.stats.ETA.Round(time.Second))
	}

	if b.stats.Rate > 0 {
		statusLine += fmt.Sprintf(" | %.1f/s", b.stats.Rate)
	}

	fmt.Fprint(b.config.Output, statusLine)
}

func (b *BarIndicator) Finish(message string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	elapsed := time.Since(b.stats.StartTime)

	fmt.Fprintf(b.config.Output, "\n\nCompleted in %v\n", elapsed.Round(time.Second))

	if b.config.ShowStats {
		if b.config.NoColor {
			fmt.Fprintf(b.config.Output, "Results: %d open, %d closed/filtered, %d timeout, %d error\n",
				b.stats.Open, b.stats.Closed, b.stats.Timeout, b.stats.Errored)
		} else {
			fmt.Fprintf(b.config.Output, "Results: \033[32m%d open\033[0m, %d closed/filtered, %d timeout, \033[31m%d error\033[0m\n",
				b.stats.Open, b.stats.Closed, b.stats.Timeout, b.stats.Errored)
		}
	}

	if message != "" {
		fmt.Fprintf(b.config.Output, "%s\n", message)
	}
}

func (b *BarIndicator) SetOutput(writer io.Writer) {
	b.config.Output = writer
}

// PercentIndicator shows only percentage progress
type PercentIndicator struct {
	config      Config
	stats       Stats
	mutex       sync.Mutex
	lastPercent int
}

func (p *PercentIndicator) Start(total int) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.stats = Stats{
		Total:     total,
		StartTime: time.Now(),
	}
	p.lastPercent = -1

	fmt.Fprintf(p.config.Output, "Scanning %d ports: 0%%", total)
}

func (p *PercentIndicator) Update(current int, status string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.stats.record(current, status)
	percent := int(float64(current) / float64(p.stats.Total) * 100)

	// Only redraw when the percentage changes
	if percent != p.lastPercent {
		p.lastPercent = percent
		fmt.Fprintf(p.config.Output, "\rScanning %d ports: %d%%", p.stats.Total, percent)
	}
}

func (p *PercentIndicator) Finish(message string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	elapsed := time.Since(p.stats.StartTime)

	fmt.Fprintf(p.config.Output, "\rCompleted: 100%% (%d ports in %v)\n",
		p.stats.Current, elapsed.Round(time.Second))

	if p.config.ShowStats {
		fmt.Fprintf(p.config.Output, "Results: %d open, %d closed/filtered, %d timeout, %d error\n",
			p.stats.Open, p.stats.Closed, p.stats.Timeout, p.stats.Errored)
	}

	if message != "" {
		fmt.Fprintf(p.config.Output, "%s\n", message)
	}
}

func (p *PercentIndicator) SetOutput(writer io.Writer) {
	p.config.Output = writer
}
