package output

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hx0day/dashprobe/internal/sanitizer"
	"github.com/hx0day/dashprobe/internal/scanner"
)

// PortResultOutput represents a single port result for output formatting
type PortResultOutput struct {
	Port       int             `json:"port"`
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code,omitempty"`
	Response   string          `json:"response,omitempty"`
	JSON       json.RawMessage `json:"json,omitempty"`
	Message    string          `json:"message,omitempty"`
	DurationMS int64           `json:"duration_ms"`
}

// Summary represents per-status counts for a scan run
type Summary struct {
	Total   int `json:"total"`
	Open    int `json:"open"`
	Closed  int `json:"closed"`
	Timeout int `json:"timeout"`
	Error   int `json:"error"`
}

// Report is the full scan report written to disk
type Report struct {
	Target       string             `json:"target"`
	DashboardURL string             `json:"dashboard_url"`
	Timestamp    time.Time          `json:"timestamp"`
	Results      []PortResultOutput `json:"results"`
	Summary      Summary            `json:"summary"`
}

// ConvertToOutputFormat converts scanner results to output format,
// sanitizing response excerpts on the way out
func ConvertToOutputFormat(results []scanner.Result) []PortResultOutput {
	return ConvertToOutputFormatWithSanitizer(results, sanitizer.DefaultSanitizer())
}

// ConvertToOutputFormatWithSanitizer converts results using a custom sanitizer
func ConvertToOutputFormatWithSanitizer(results []scanner.Result, s *sanitizer.Sanitizer) []PortResultOutput {
	output := make([]PortResultOutput, len(results))
	for i, result := range results {
		output[i] = PortResultOutput{
			Port:       result.Port,
			Status:     string(result.Status),
			StatusCode: result.StatusCode,
			Response:   s.SanitizeResponse(result.Response),
			JSON:       result.JSON,
			Message:    s.SanitizeError(result.Message),
			DurationMS: result.Duration.Milliseconds(),
		}
	}
	return output
}

// GenerateReport builds the full report from scanner results. The summary
// counts every result exactly once, so the four buckets always add up to
// Total.
func GenerateReport(target, dashboardURL string, results []scanner.Result) Report {
	report := Report{
		Target:       target,
		DashboardURL: dashboardURL,
		Timestamp:    time.Now(),
		Results:      ConvertToOutputFormat(results),
		Summary:      Summary{Total: len(results)},
	}

	for _, result := range results {
		switch result.Status {
		case scanner.StatusOpen:
			report.Summary.Open++
		case scanner.StatusClosed:
			report.Summary.Closed++
		case scanner.StatusTimeout:
			report.Summary.Timeout++
		default:
			report.Summary.Error++
		}
	}

	return report
}

// WriteJSONOutput writes the report to a JSON file
func WriteJSONOutput(filename string, report Report) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// WriteTextOutput writes the report to a human-readable text file
func WriteTextOutput(filename string, report Report) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	fmt.Fprintf(file, "dashprobe results - %s\n", report.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(file, "Dashboard: %s\n", report.DashboardURL)
	fmt.Fprintf(file, "Target:    %s\n", report.Target)
	fmt.Fprintf(file, "=====================================\n\n")

	for _, result := range report.Results {
		switch result.Status {
		case string(scanner.StatusOpen):
			fmt.Fprintf(file, "[+] %d open (HTTP %d)", result.Port, result.StatusCode)
		case string(scanner.StatusClosed):
			fmt.Fprintf(file, "[-] %d closed/filtered (HTTP %d)", result.Port, result.StatusCode)
		case string(scanner.StatusTimeout):
			fmt.Fprintf(file, "[?] %d timeout", result.Port)
		default:
			fmt.Fprintf(file, "[!] %d error", result.Port)
			if result.Message != "" {
				fmt.Fprintf(file, " - %s", result.Message)
			}
		}
		fmt.Fprintf(file, "\n")
	}

	fmt.Fprintf(file, "\n=====================================\n")
	fmt.Fprintf(file, "SUMMARY\n")
	fmt.Fprintf(file, "=====================================\n")
	fmt.Fprintf(file, "Ports scanned:   %d\n", report.Summary.Total)
	fmt.Fprintf(file, "Open:            %d\n", report.Summary.Open)
	fmt.Fprintf(file, "Closed/filtered: %d\n", report.Summary.Closed)
	fmt.Fprintf(file, "Timeouts:        %d\n", report.Summary.Timeout)
	fmt.Fprintf(file, "Errors:          %d\n", report.Summary.Error)

	return nil
}

// WriteOpenPortsOutput writes only the open ports, one per line, in a
// format other tools can consume directly
func WriteOpenPortsOutput(filename string, report Report) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	fmt.Fprintf(file, "# Open ports on %s - Generated %s\n", report.Target, report.Timestamp.Format(time.RFC3339))

	for _, result := range report.Results {
		if result.Status == string(scanner.StatusOpen) {
			fmt.Fprintf(file, "%s:%d\n", report.Target, result.Port)
		}
	}

	return nil
}
