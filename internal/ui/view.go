package ui

import (
	"fmt"
	"strings"
)

// Render renders the view based on the current display mode
func (v *View) Render() string {
	if !v.IsValid() {
		return ErrorStyle.Render("Invalid view state - cannot render")
	}

	var sections []string

	sections = append(sections, v.renderTitle())

	if progressSection := v.renderProgress(); progressSection != "" {
		sections = append(sections, progressSection)
	}

	if resultsSection := v.renderResults(); resultsSection != "" {
		sections = append(sections, resultsSection)
	}

	if v.Mode == ModeDebug && len(v.DebugMessages) > 0 {
		sections = append(sections, v.renderDebugLog())
	}

	if v.Done {
		sections = append(sections, InfoStyle.Render("Scan complete. Press q to exit"))
	} else {
		sections = append(sections, InfoStyle.Render("Press q to quit"))
	}

	return strings.Join(sections, "\n\n")
}

func (v *View) renderTitle() string {
	title := "dashprobe"
	if v.Version != "" {
		title += " " + v.Version
	}
	switch v.Mode {
	case ModeVerbose:
		title += " (verbose)"
	case ModeDebug:
		title += " (debug)"
	}
	return HeaderStyle.Render(title)
}

func (v *View) renderProgress() string {
	var builder strings.Builder

	if v.Target != "" {
		builder.WriteString(fmt.Sprintf("%s %s via %s\n",
			MetricLabelStyle.Render("Scanning"), v.Target, v.DashboardURL))
	}

	builder.WriteString(v.Progress.ViewAs(v.PercentDone()))
	builder.WriteString(fmt.Sprintf("\n%d/%d ports", v.Current, v.Total))

	builder.WriteString(fmt.Sprintf("  %s %s %s %s",
		OpenStyle.Render(fmt.Sprintf("open:%d", v.Open)),
		ClosedStyle.Render(fmt.Sprintf("closed:%d", v.Closed)),
		TimeoutStyle.Render(fmt.Sprintf("timeout:%d", v.Timeout)),
		ErrorStyle.Render(fmt.Sprintf("error:%d", v.Errored))))

	return ProgressStyle.Render(builder.String())
}

func (v *View) renderResults() string {
	if len(v.Recent) == 0 {
		if v.Current == 0 {
			return InfoStyle.Render("Waiting for first probe...")
		}
		return ""
	}

	var builder strings.Builder
	builder.WriteString(MetricLabelStyle.Render("Recent results:"))
	builder.WriteString("\n")

	for _, result := range v.Recent {
		status := string(result.Status)
		style := StatusStyle(status)

		line := fmt.Sprintf("%s %5d  %s", StatusIcon(status), result.Port, status)
		if result.StatusCode != 0 && v.Mode != ModeDefault {
			line += fmt.Sprintf(" (HTTP %d)", result.StatusCode)
		}
		if result.Message != "" && v.Mode == ModeDebug {
			line += " - " + result.Message
		}

		builder.WriteString(style.Render(line))
		builder.WriteString("\n")
	}

	return ResultBlockStyle.Render(strings.TrimRight(builder.String(), "\n"))
}

func (v *View) renderDebugLog() string {
	start := 0
	if len(v.DebugMessages) > 10 {
		start = len(v.DebugMessages) - 10
	}

	var builder strings.Builder
	for _, msg := range v.DebugMessages[start:] {
		builder.WriteString(DebugTextStyle.Render(msg))
		builder.WriteString("\n")
	}

	return DebugBlockStyle.Render(strings.TrimRight(builder.String(), "\n"))
}
