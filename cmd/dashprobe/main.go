package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hx0day/dashprobe/internal/config"
	"github.com/hx0day/dashprobe/internal/errors"
	"github.com/hx0day/dashprobe/internal/grafana"
	"github.com/hx0day/dashprobe/internal/help"
	"github.com/hx0day/dashprobe/internal/logging"
	"github.com/hx0day/dashprobe/internal/metrics"
	"github.com/hx0day/dashprobe/internal/oob"
	"github.com/hx0day/dashprobe/internal/output"
	"github.com/hx0day/dashprobe/internal/ports"
	progresspkg "github.com/hx0day/dashprobe/internal/progress"
	"github.com/hx0day/dashprobe/internal/scanner"
	"github.com/hx0day/dashprobe/internal/ui"
)

// oobWait bounds how long the pre-scan blind SSRF check waits for the
// callback server to report a hit
const oobWait = 30 * time.Second

// headerList collects repeatable -H flags
type headerList map[string]string

func (h headerList) String() string {
	pairs := make([]string, 0, len(h))
	for k, v := range h {
		pairs = append(pairs, k+": "+v)
	}
	return strings.Join(pairs, ", ")
}

func (h headerList) Set(value string) error {
	name, val, found := strings.Cut(value, ":")
	if !found || strings.TrimSpace(name) == "" {
		return fmt.Errorf("header must be in 'Name: value' form, got %q", value)
	}
	h[strings.TrimSpace(name)] = strings.TrimSpace(val)
	return nil
}

func main() {
	// Target flags
	dashboardURL := flag.String("u", "", "Dashboard base URL")
	target := flag.String("t", "", "Internal host to scan through the datasource proxy")
	portSpec := flag.String("p", "1-1000", "Ports to scan: 80,443,8000-8100 or @ports.txt")
	configFile := flag.String("config", "config/default.yaml", "Path to config file")

	// Auth and request flags
	token := flag.String("token", "", "API token sent on proxy requests")
	headers := headerList{}
	flag.Var(headers, "H", "Extra header, repeatable (e.g. -H 'Cookie: session=...')")
	dsType := flag.String("type", "", "Datasource type to register (overrides config)")
	namePrefix := flag.String("prefix", "", "Datasource name prefix (overrides config)")
	probeTimeout := flag.Duration("timeout", 0, "Per-port probe timeout (overrides config)")
	delay := flag.Duration("delay", 0, "Pause between ports (overrides config)")
	upstreamProxy := flag.String("proxy", "", "Upstream proxy URL (overrides config)")
	insecure := flag.Bool("insecure", false, "Skip TLS certificate verification")

	// Output flags
	outputFile := flag.String("o", "", "Output results to text file")
	jsonFile := flag.String("j", "", "Output results to JSON file")
	openPortsFile := flag.String("open-out", "", "Output open ports to file (host:port per line)")
	verbose := flag.Bool("v", false, "Enable verbose output")
	debug := flag.Bool("d", false, "Enable debug mode")
	noUI := flag.Bool("no-ui", false, "Disable terminal UI (for automation/scripting)")

	// Progress indicator flags for non-TUI mode
	progressType := flag.String("progress", "bar", "Progress indicator type for non-TUI mode (none, basic, bar, percent)")
	progressWidth := flag.Int("progress-width", 50, "Width of progress bar")
	progressNoColor := flag.Bool("progress-no-color", false, "Disable colored progress output")

	// Out-of-band confirmation flags
	oobCheck := flag.Bool("oob", false, "Confirm blind SSRF via an out-of-band callback before scanning")
	oobServer := flag.String("oob-server", "", "Self-hosted interactsh server URL")
	oobToken := flag.String("oob-token", "", "Interactsh server authentication token")

	// Metrics flags
	enableMetrics := flag.Bool("metrics", false, "Enable Prometheus metrics endpoint")
	metricsAddr := flag.String("metrics-addr", ":9090", "Address to serve metrics on")

	// Config hot-reload
	hotReload := flag.Bool("hot-reload", false, "Enable configuration hot-reloading")

	// Help and version flags
	showHelp := flag.Bool("help", false, "Show help message")
	showHelpShort := flag.Bool("h", false, "Show help message (short)")
	showVersion := flag.Bool("version", false, "Show version information")
	showQuickStart := flag.Bool("quickstart", false, "Show quick start guide")

	flag.Usage = func() {
		help.PrintHelp(os.Stderr, help.DetectNoColor())
	}

	flag.Parse()

	noColor := help.DetectNoColor()

	if *showHelp || *showHelpShort {
		help.PrintHelp(os.Stdout, noColor)
		os.Exit(0)
	}
	if *showVersion {
		help.PrintVersion(os.Stdout, noColor)
		os.Exit(0)
	}
	if *showQuickStart {
		help.PrintQuickStart(os.Stdout, noColor)
		os.Exit(0)
	}

	if *dashboardURL == "" {
		help.PrintUsageError(os.Stderr, fmt.Errorf("dashboard URL is required (-u)"), noColor)
		os.Exit(1)
	}
	if *target == "" {
		help.PrintUsageError(os.Stderr, fmt.Errorf("target host is required (-t)"), noColor)
		os.Exit(1)
	}

	logLevel := logging.LevelInfo
	if *debug {
		logLevel = logging.LevelDebug
	}
	logger := logging.NewLogger(logging.Config{
		Level:  logLevel,
		Format: "text",
	})

	// Load and validate configuration
	cfg, validationResult, err := config.ValidateAndLoad(*configFile)
	if err != nil {
		logger.Error("Failed to load configuration",
			"error", err,
			"file", *configFile,
			"category", errors.GetErrorCategory(err))
		os.Exit(1)
	}

	for _, warning := range validationResult.Warnings {
		logger.Warn("Configuration validation warning", "warning", warning)
	}
	if !validationResult.Valid {
		for _, validationErr := range validationResult.Errors {
			logger.Error("Configuration error", "error", validationErr.Error())
		}
		os.Exit(1)
	}
	logger.ConfigLoaded(*configFile)

	var configWatcher *config.ConfigWatcher

	// Override config with command line flags if specified
	if *dsType != "" {
		cfg.DatasourceType = *dsType
	}
	if *namePrefix != "" {
		cfg.NamePrefix = *namePrefix
	}
	if *delay > 0 {
		cfg.Delay = *delay
	}
	if *upstreamProxy != "" {
		cfg.Proxy = *upstreamProxy
	}
	if *insecure {
		cfg.InsecureSkipVerify = true
	}
	if *enableMetrics {
		cfg.Metrics.Enabled = true
		cfg.Metrics.ListenAddr = *metricsAddr
	}
	if *oobCheck {
		cfg.OOB.Enabled = true
	}
	if *oobServer != "" {
		cfg.OOB.ServerURL = *oobServer
	}
	if *oobToken != "" {
		cfg.OOB.Token = *oobToken
	}

	effectiveProbeTimeout := cfg.ProbeTimeout()
	if *probeTimeout > 0 {
		effectiveProbeTimeout = *probeTimeout
	}

	// Parse the port specification
	portList, err := ports.Parse(*portSpec)
	if err != nil {
		help.PrintUsageError(os.Stderr, err, noColor)
		os.Exit(1)
	}
	logger.PortsParsed(len(portList), *portSpec)

	// Merge config headers with -H flags; flags win
	mergedHeaders := make(map[string]string, len(cfg.DefaultHeaders)+len(headers))
	for k, v := range cfg.DefaultHeaders {
		mergedHeaders[k] = v
	}
	for k, v := range headers {
		mergedHeaders[k] = v
	}

	client, err := grafana.NewClient(grafana.Config{
		BaseURL:            *dashboardURL,
		Token:              *token,
		ExtraHeaders:       mergedHeaders,
		UserAgent:          cfg.UserAgent,
		CreateTimeout:      cfg.CreateDeleteTimeout(),
		ProbeTimeout:       effectiveProbeTimeout,
		UpstreamProxy:      cfg.Proxy,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if err != nil {
		logger.Error("Failed to create dashboard client", "error", err)
		os.Exit(1)
	}

	// Initialize metrics collector
	var metricsCollector *metrics.Collector
	if cfg.Metrics.Enabled {
		metricsCollector = metrics.NewCollector()
		if err := metricsCollector.StartServer(cfg.Metrics.ListenAddr); err != nil {
			logger.Warn("Failed to start metrics server", "error", err, "addr", cfg.Metrics.ListenAddr)
		} else {
			logger.Info("Metrics server started", "addr", cfg.Metrics.ListenAddr, "path", cfg.Metrics.Path)
		}
	}

	sc := scanner.New(client, scanner.Config{
		TargetHost:     *target,
		DatasourceType: cfg.DatasourceType,
		NamePrefix:     cfg.NamePrefix,
		Query:          cfg.Query,
		Delay:          cfg.Delay,
	}, logger)
	if metricsCollector != nil {
		sc.SetMetrics(metricsCollector)
	}

	// Config hot-reload: probe timeout and inter-port delay take effect on
	// the running scan. Values pinned by command-line flags stay pinned.
	if *hotReload {
		watcherConfig := config.WatcherConfig{
			DebounceDelay:        1 * time.Second,
			ValidateBeforeReload: true,
			OnReload: func(newConfig *config.Config, result *config.ValidationResult) {
				for _, warning := range result.Warnings {
					logger.Warn("Configuration warning after reload", "warning", warning)
				}
				if *probeTimeout <= 0 {
					client.SetProbeTimeout(newConfig.ProbeTimeout())
				}
				if *delay <= 0 {
					sc.SetDelay(newConfig.Delay)
				}
				logger.Info("Configuration reloaded",
					"file", *configFile,
					"probe_timeout", newConfig.ProbeTimeout(),
					"delay", newConfig.Delay)
			},
			OnError: func(err error) {
				logger.Error("Configuration reload failed", "error", err)
			},
		}

		configWatcher, err = config.NewConfigWatcher(*configFile, watcherConfig)
		if err != nil {
			logger.Warn("Failed to enable configuration hot-reloading", "error", err)
		} else {
			logger.Info("Configuration hot-reloading enabled", "file", *configFile)
		}
	}

	// Graceful shutdown: first signal cancels the scan, results gathered so
	// far still get reported
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdownChan
		logger.ShutdownReceived()
		cancel()
	}()

	// Optional out-of-band confirmation before the scan proper
	if cfg.OOB.Enabled {
		runOOBCheck(ctx, sc, cfg, logger)
	}

	logger.ScanStart(*dashboardURL, *target, len(portList))
	if metricsCollector != nil {
		metricsCollector.RecordScanStart(len(portList))
	}

	start := time.Now()
	var results []scanner.Result
	if *noUI {
		results = runWithoutUI(ctx, sc, portList, progresspkg.Config{
			Type:      progresspkg.ProgressType(*progressType),
			Width:     *progressWidth,
			NoColor:   *progressNoColor || noColor,
			ShowETA:   true,
			ShowStats: true,
		})
	} else {
		results = runWithUI(ctx, cancel, sc, portList, *dashboardURL, *target, *verbose, *debug, logger)
	}
	elapsed := time.Since(start)

	if metricsCollector != nil {
		metricsCollector.RecordScanComplete()
	}

	rate := 0.0
	if elapsed.Seconds() > 0 {
		rate = float64(len(results)) / elapsed.Seconds()
	}
	logger.ScanComplete(len(results), elapsed.Seconds(), rate)

	report := output.GenerateReport(*target, *dashboardURL, results)
	logger.SummaryStats(report.Summary.Total, report.Summary.Open,
		report.Summary.Closed, report.Summary.Timeout, report.Summary.Error)

	printOpenPorts(report)
	writeOutputFiles(report, *outputFile, *jsonFile, *openPortsFile, logger)

	if configWatcher != nil {
		if err := configWatcher.Stop(); err != nil {
			logger.Warn("Error stopping config watcher", "error", err)
		}
	}
	if metricsCollector != nil {
		if err := metricsCollector.StopServer(); err != nil {
			logger.Warn("Error stopping metrics server", "error", err)
		}
	}
}

// runOOBCheck points a datasource at an out-of-band callback host and waits
// for the hit. A confirmed interaction proves the dashboard makes outbound
// connections on our behalf even if every probe response looks opaque.
func runOOBCheck(ctx context.Context, sc *scanner.Scanner, cfg *config.Config, logger *logging.Logger) {
	tester, err := oob.NewTester(cfg.OOB.ServerURL, cfg.OOB.Token)
	if err != nil {
		logger.Warn("Out-of-band check unavailable, continuing without it", "error", err)
		return
	}
	defer tester.Close()

	callbackHost := "http://" + tester.URL()
	logger.Info("Running out-of-band blind SSRF check", "callback", callbackHost)

	if err := sc.ProbeCallback(ctx, callbackHost, 80); err != nil {
		logger.Warn("Out-of-band probe failed", "error", err)
		return
	}

	interactions := tester.WaitForInteraction(oobWait)
	if len(interactions) == 0 {
		logger.Warn("No out-of-band interaction received; the dashboard may still be exploitable on internal-only targets")
		return
	}
	logger.OOBConfirmed(interactions[0].Protocol, interactions[0].RemoteAddress)
	for _, line := range oob.Summarize(interactions) {
		logger.Info("Out-of-band interaction", "detail", line)
	}
}

// runWithoutUI drives the scan with a line-based progress indicator
func runWithoutUI(ctx context.Context, sc *scanner.Scanner, portList []int, progressConfig progresspkg.Config) []scanner.Result {
	indicator := progresspkg.NewProgressIndicator(progressConfig)
	indicator.Start(len(portList))

	sc.OnResult = func(current, total int, result scanner.Result) {
		indicator.Update(current, string(result.Status))
	}

	results := sc.Run(ctx, portList)
	indicator.Finish("Scan complete")
	return results
}

// runWithUI drives the scan behind the interactive terminal display. Quitting
// the UI cancels the scan; results gathered so far are still reported.
func runWithUI(ctx context.Context, cancel context.CancelFunc, sc *scanner.Scanner, portList []int,
	dashboardURL, target string, verbose, debug bool, logger *logging.Logger) []scanner.Result {

	view := ui.NewView()
	view.Target = target
	view.DashboardURL = dashboardURL
	view.Version = help.Version
	view.Total = len(portList)
	view.SetMode(verbose, debug)

	program := tea.NewProgram(ui.NewModel(view))

	resultsCh := make(chan []scanner.Result, 1)
	go func() {
		sc.OnResult = func(current, total int, result scanner.Result) {
			program.Send(ui.ResultMsg{Current: current, Total: total, Result: result})
			if debug {
				program.Send(ui.DebugMsg(fmt.Sprintf("port %d -> %s", result.Port, result.Status)))
			}
		}

		results := sc.Run(ctx, portList)
		resultsCh <- results

		program.Send(ui.DoneMsg{})
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		logger.Error("Failed to run terminal UI", "error", err)
	}

	// The UI may have been quit mid-scan; stop the scanner and collect
	// whatever it finished
	cancel()
	return <-resultsCh
}

// printOpenPorts lists open ports on stdout so results survive the
// alternate-screen TUI teardown
func printOpenPorts(report output.Report) {
	if report.Summary.Open == 0 {
		fmt.Printf("No open ports found on %s (%d scanned)\n", report.Target, report.Summary.Total)
		return
	}

	fmt.Printf("Open ports on %s:\n", report.Target)
	for _, result := range report.Results {
		if result.Status == string(scanner.StatusOpen) {
			fmt.Printf("  %s:%d (HTTP %d)\n", report.Target, result.Port, result.StatusCode)
		}
	}
}

func writeOutputFiles(report output.Report, textFile, jsonFile, openPortsFile string, logger *logging.Logger) {
	if textFile != "" {
		if err := output.WriteTextOutput(textFile, report); err != nil {
			logger.Error("Failed to write text output", "error", err, "file", textFile)
		} else {
			logger.ResultsSaved(textFile, "text")
		}
	}

	if jsonFile != "" {
		if err := output.WriteJSONOutput(jsonFile, report); err != nil {
			logger.Error("Failed to write JSON output", "error", err, "file", jsonFile)
		} else {
			logger.ResultsSaved(jsonFile, "json")
		}
	}

	if openPortsFile != "" {
		if err := output.WriteOpenPortsOutput(openPortsFile, report); err != nil {
			logger.Error("Failed to write open ports output", "error", err, "file", openPortsFile)
		} else {
			logger.ResultsSaved(openPortsFile, "open_ports")
		}
	}
}
