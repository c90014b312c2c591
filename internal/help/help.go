package help

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

const (
	// Version information
	Version = "0.3.0"
	AppName = "dashprobe"

	// Colors for terminal output
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// Example represents a usage example
type Example struct {
	Description string
	Command     string
	Explanation string
}

// GetBanner returns the application banner
func GetBanner(noColor bool) string {
	if noColor {
		return fmt.Sprintf(`
%s v%s - Internal Port Scanner via Dashboard Datasource Proxy
SSRF Assessment | Service Discovery | Blind Confirmation
`, AppName, Version)
	}

	return fmt.Sprintf(`
%s%s%s v%s - %sInternal Port Scanner via Dashboard Datasource Proxy%s
%sSSRF Assessment | Service Discovery | Blind Confirmation%s
`, colorBold+colorBlue, AppName, colorReset, Version, colorBold, colorReset, colorCyan, colorReset)
}

// GetQuickStart returns quick start guide
func GetQuickStart(noColor bool) string {
	b := &strings.Builder{}

	header := "QUICK START"
	if !noColor {
		header = colorBold + colorGreen + header + colorReset
	}

	fmt.Fprintf(b, "\n%s\n\n", header)
	fmt.Fprintf(b, "1. Point dashprobe at the dashboard and pick an internal target:\n")
	if noColor {
		fmt.Fprintf(b, "   dashprobe -u http://dash.corp:3000 -t 10.0.0.5\n\n")
	} else {
		fmt.Fprintf(b, "   %sdashprobe -u http://dash.corp:3000 -t 10.0.0.5%s\n\n", colorCyan, colorReset)
	}

	fmt.Fprintf(b, "2. Narrow the port set (single ports, ranges, or @file):\n")
	if noColor {
		fmt.Fprintf(b, "   dashprobe -u http://dash.corp:3000 -t 10.0.0.5 -p 22,80,443,8000-8100\n\n")
	} else {
		fmt.Fprintf(b, "   %sdashprobe -u http://dash.corp:3000 -t 10.0.0.5 -p 22,80,443,8000-8100%s\n\n", colorCyan, colorReset)
	}

	fmt.Fprintf(b, "3. Save results:\n")
	if noColor {
		fmt.Fprintf(b, "   dashprobe -u http://dash.corp:3000 -t 10.0.0.5 -o results.txt -j results.json\n")
	} else {
		fmt.Fprintf(b, "   %sdashprobe -u http://dash.corp:3000 -t 10.0.0.5 -o results.txt -j results.json%s\n", colorCyan, colorReset)
	}

	return b.String()
}

// GetFullHelp returns the complete help text
func GetFullHelp(noColor bool) string {
	b := &strings.Builder{}

	fmt.Fprint(b, GetBanner(noColor))

	fmt.Fprintf(b, "Usage:\n")
	fmt.Fprintf(b, "  dashprobe -u DASHBOARD_URL -t TARGET [flags]\n\n")

	fmt.Fprintf(b, "Flags:\n")

	sectionHeader(b, "TARGET:")
	w := tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "   -u string\tdashboard base URL (e.g. http://dash.corp:3000)\n")
	fmt.Fprintf(w, "   -t string\tinternal host to scan through the datasource proxy\n")
	fmt.Fprintf(w, "   -p string\tports to scan: 80,443,8000-8100 or @ports.txt (default \"1-1000\")\n")
	fmt.Fprintf(w, "   -config string\tconfiguration file path (default \"config/default.yaml\")\n")
	w.Flush()
	fmt.Fprintln(b)

	sectionHeader(b, "AUTH & REQUEST:")
	w = tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "   -token string\tAPI token sent on proxy requests (create/delete go unauthenticated)\n")
	fmt.Fprintf(w, "   -H value\textra header, repeatable (e.g. -H 'Cookie: grafana_session=...')\n")
	fmt.Fprintf(w, "   -type string\tdatasource type to register (default \"alertmanager\")\n")
	fmt.Fprintf(w, "   -prefix string\tdatasource name prefix (default \"dashprobe\")\n")
	fmt.Fprintf(w, "   -timeout duration\tper-port probe timeout (default 1s)\n")
	fmt.Fprintf(w, "   -delay duration\tpause between ports\n")
	fmt.Fprintf(w, "   -proxy string\tupstream proxy (http, https, socks4 or socks5 URL)\n")
	w.Flush()
	fmt.Fprintln(b)

	sectionHeader(b, "OUTPUT:")
	w = tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "   -o string\tfile to save text results\n")
	fmt.Fprintf(w, "   -j string\tfile to save JSON results\n")
	fmt.Fprintf(w, "   -open-out string\tfile to save only open ports (host:port per line)\n")
	fmt.Fprintf(w, "   -v\tenable verbose output\n")
	fmt.Fprintf(w, "   -d\tenable debug mode with detailed logs\n")
	fmt.Fprintf(w, "   -no-ui\tdisable terminal UI (for automation/scripting)\n")
	fmt.Fprintf(w, "   -progress string\tprogress style with -no-ui: none, basic, bar, percent (default \"bar\")\n")
	w.Flush()
	fmt.Fprintln(b)

	sectionHeader(b, "ADVANCED:")
	w = tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "   -oob\tconfirm blind SSRF via an out-of-band callback before scanning\n")
	fmt.Fprintf(w, "   -oob-server string\tself-hosted interactsh server URL\n")
	fmt.Fprintf(w, "   -metrics\texpose Prometheus metrics during the scan\n")
	fmt.Fprintf(w, "   -metrics-addr string\tmetrics listen address (default \":9090\")\n")
	fmt.Fprintf(w, "   -hot-reload\treload the config file on change\n")
	w.Flush()
	fmt.Fprintln(b)

	return b.String()
}

// GetExamples returns usage examples
func GetExamples() []Example {
	return []Example{
		{
			Description: "Scan the default port range",
			Command:     "dashprobe -u http://dash.corp:3000 -t 10.0.0.5",
			Explanation: "",
		},
		{
			Description: "Scan specific ports with an authenticated session",
			Command:     "dashprobe -u http://dash.corp:3000 -t 10.0.0.5 -p 22,3306,6379 -token eyJrIjoi...",
			Explanation: "The token is only sent on proxy requests; vulnerable builds accept the unauthenticated create",
		},
		{
			Description: "Save results in multiple formats",
			Command:     "dashprobe -u http://dash.corp:3000 -t 10.0.0.5 -o results.txt -j results.json -open-out open.txt",
			Explanation: "Saves text report, JSON data, and open-port list",
		},
		{
			Description: "Non-interactive mode for automation",
			Command:     "dashprobe -u http://dash.corp:3000 -t 10.0.0.5 -no-ui -progress basic -j results.json",
			Explanation: "Runs without TUI, shows basic progress, saves results",
		},
		{
			Description: "Confirm blind SSRF before a full scan",
			Command:     "dashprobe -u http://dash.corp:3000 -t 10.0.0.5 -oob",
			Explanation: "Points a datasource at an out-of-band callback host and waits for the hit",
		},
		{
			Description: "Route through a SOCKS proxy with a slow, quiet scan",
			Command:     "dashprobe -u http://dash.corp:3000 -t 10.0.0.5 -proxy socks5://127.0.0.1:1080 -delay 2s",
			Explanation: "Adds 2 seconds between ports to stay under rate limits",
		},
		{
			Description: "Long scan with metrics and hot config reload",
			Command:     "dashprobe -u http://dash.corp:3000 -t 10.0.0.5 -p 1-65535 -metrics -hot-reload",
			Explanation: "Exposes Prometheus metrics on :9090 and re-reads the config on change",
		},
	}
}

// PrintHelp prints help to the specified writer
func PrintHelp(w io.Writer, noColor bool) {
	fmt.Fprint(w, GetFullHelp(noColor))
}

// PrintQuickStart prints quick start guide
func PrintQuickStart(w io.Writer, noColor bool) {
	fmt.Fprint(w, GetBanner(noColor))
	fmt.Fprint(w, GetQuickStart(noColor))
}

// PrintVersion prints version information
func PrintVersion(w io.Writer, noColor bool) {
	if noColor {
		fmt.Fprintf(w, "%s version %s\n", AppName, Version)
	} else {
		fmt.Fprintf(w, "%s%s%s version %s%s%s\n",
			colorBold+colorBlue, AppName, colorReset,
			colorGreen, Version, colorReset)
	}
	fmt.Fprintln(w, "Internal port scanner via dashboard datasource proxy SSRF")
}

// PrintUsageError prints a usage error with suggestion
func PrintUsageError(w io.Writer, err error, noColor bool) {
	if noColor {
		fmt.Fprintf(w, "Error: %v\n\n", err)
		fmt.Fprintf(w, "Usage: dashprobe -u DASHBOARD_URL -t TARGET [OPTIONS]\n")
		fmt.Fprintf(w, "Try 'dashprobe --help' for more information.\n")
	} else {
		fmt.Fprintf(w, "%sError:%s %v\n\n", colorRed, colorReset, err)
		fmt.Fprintf(w, "Usage: %sdashprobe -u DASHBOARD_URL -t TARGET [OPTIONS]%s\n", colorCyan, colorReset)
		fmt.Fprintf(w, "Try '%sdashprobe --help%s' for more information.\n", colorYellow, colorReset)
	}
}

func sectionHeader(b *strings.Builder, title string) {
	fmt.Fprintf(b, "%s\n", title)
}

// DetectNoColor checks if color should be disabled
func DetectNoColor() bool {
	if os.Getenv("DASHPROBE_NO_COLOR") == "1" {
		return true
	}
	if os.Getenv("NO_COLOR") != "" {
		return true
	}

	if fileInfo, _ := os.Stdout.Stat(); (fileInfo.Mode() & os.ModeCharDevice) == 0 {
		return true
	}

	return false
}
