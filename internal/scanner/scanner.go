package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hx0day/dashprobe/internal/grafana"
	"github.com/hx0day/dashprobe/internal/logging"
	"github.com/hx0day/dashprobe/internal/metrics"
)

// Status classifies the outcome of probing a single port
type Status string

const (
	StatusOpen    Status = "open"
	StatusClosed  Status = "closed/filtered"
	StatusTimeout Status = "timeout"
	StatusError   Status = "error"
)

// responseSnippetLen caps the stored response excerpt per result
const responseSnippetLen = 200

// Result represents the outcome of scanning one port
type Result struct {
	Port       int             `json:"port"`
	Status     Status          `json:"status"`
	StatusCode int             `json:"status_code"`
	Response   string          `json:"response,omitempty"`
	JSON       json.RawMessage `json:"json,omitempty"`
	Message    string          `json:"message,omitempty"`
	Duration   time.Duration   `json:"-"`
}

// Config represents scan configuration
type Config struct {
	TargetHost     string
	DatasourceType string
	NamePrefix     string
	Query          string
	// Delay inserts a pause between ports; probing itself is always
	// strictly sequential
	Delay time.Duration
}

// ProgressFunc is invoked after each port completes
type ProgressFunc func(current, total int, result Result)

// Scanner drives the register-probe-cleanup sequence against the dashboard's
// datasource API, one port at a time
type Scanner struct {
	client  *grafana.Client
	config  Config
	logger  *logging.Logger
	metrics *metrics.Collector

	// delayMu guards config.Delay, which config hot-reload may change
	// while a scan is running
	delayMu sync.Mutex

	// OnResult receives per-port progress updates; may be nil
	OnResult ProgressFunc
}

// New creates a new scanner
func New(client *grafana.Client, config Config, logger *logging.Logger) *Scanner {
	if config.DatasourceType == "" {
		config.DatasourceType = "alertmanager"
	}
	if config.NamePrefix == "" {
		config.NamePrefix = "dashprobe"
	}
	if config.Query == "" {
		config.Query = "up"
	}
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}

	return &Scanner{
		client: client,
		config: config,
		logger: logger,
	}
}

// SetMetrics attaches a metrics collector
func (s *Scanner) SetMetrics(collector *metrics.Collector) {
	s.metrics = collector
}

// SetDelay changes the inter-port delay. Safe to call while a scan is
// running; the next gap between ports uses the new value.
func (s *Scanner) SetDelay(d time.Duration) {
	s.delayMu.Lock()
	s.config.Delay = d
	s.delayMu.Unlock()
}

// Delay returns the current inter-port delay
func (s *Scanner) Delay() time.Duration {
	s.delayMu.Lock()
	defer s.delayMu.Unlock()
	return s.config.Delay
}

// Run scans all ports sequentially and returns the per-port results. The
// context is checked between ports, so cancellation returns the results
// gathered so far; the in-flight port still gets its cleanup call.
func (s *Scanner) Run(ctx context.Context, ports []int) []Result {
	// Unique run id keeps datasource names from colliding with stale
	// entries left by aborted runs
	runID := fmt.Sprintf("%d", time.Now().UnixNano())

	results := make([]Result, 0, len(ports))
	total := len(ports)

	for i, port := range ports {
		if ctx.Err() != nil {
			s.logger.ShutdownReceived()
			break
		}

		result := s.ScanPort(ctx, runID, port)
		results = append(results, result)
		s.record(result)

		if s.OnResult != nil {
			s.OnResult(i+1, total, result)
		}

		if d := s.Delay(); d > 0 && i+1 < total {
			select {
			case <-time.After(d):
			case <-ctx.Done():
			}
		}
	}

	return results
}

// ScanPort runs the full create-probe-delete sequence for a single port
func (s *Scanner) ScanPort(ctx context.Context, runID string, port int) Result {
	name := fmt.Sprintf("%s-%s-%d", s.config.NamePrefix, runID, port)
	start := time.Now()

	id, err := s.client.CreateDatasource(ctx, name, s.config.TargetHost, port, s.config.DatasourceType)
	if err != nil {
		s.logger.CreateFailed(port, err)
		if s.metrics != nil {
			s.metrics.RecordCreateFailure()
		}
		return Result{
			Port:     port,
			Status:   StatusError,
			Message:  "failed to create datasource",
			Duration: time.Since(start),
		}
	}

	defer func() {
		// Cleanup runs on a detached context: cancelling the scan
		// mid-probe must not leave the datasource behind on the
		// dashboard
		if derr := s.client.DeleteDatasource(context.WithoutCancel(ctx), id); derr != nil {
			s.logger.CleanupFailed(port, id, derr)
		}
	}()

	probe, err := s.client.ProxyQuery(ctx, id, s.config.Query)
	if err != nil {
		if grafana.IsTimeout(err) {
			s.logger.PortTimeout(port)
			return Result{
				Port:     port,
				Status:   StatusTimeout,
				Message:  "probe timed out",
				Duration: time.Since(start),
			}
		}
		s.logger.ProbeError(port, err)
		return Result{
			Port:     port,
			Status:   StatusError,
			Message:  truncate(err.Error(), responseSnippetLen),
			Duration: time.Since(start),
		}
	}

	status := Classify(probe.StatusCode)
	switch status {
	case StatusOpen:
		s.logger.PortOpen(port, probe.StatusCode)
	case StatusClosed:
		s.logger.PortClosed(port, probe.StatusCode)
	}

	return Result{
		Port:       port,
		Status:     status,
		StatusCode: probe.StatusCode,
		Response:   truncate(probe.Body, responseSnippetLen),
		JSON:       probe.JSON,
		Duration:   time.Since(start),
	}
}

// Classify maps the proxy endpoint's HTTP status onto port state. The
// dashboard answers 502/503 when its server-side connection to the backend
// failed; any other status means something accepted the connection.
func Classify(statusCode int) Status {
	switch statusCode {
	case 502, 503:
		return StatusClosed
	default:
		return StatusOpen
	}
}

// ProbeCallback registers the out-of-band callback endpoint as a datasource
// and queries it once, forcing the dashboard server to connect out to it.
// Used for blind SSRF confirmation; the caller polls the callback server for
// the interaction.
func (s *Scanner) ProbeCallback(ctx context.Context, host string, port int) error {
	name := fmt.Sprintf("%s-oob-%d", s.config.NamePrefix, time.Now().UnixNano())

	id, err := s.client.CreateDatasource(ctx, name, host, port, s.config.DatasourceType)
	if err != nil {
		return err
	}
	defer func() {
		if derr := s.client.DeleteDatasource(context.WithoutCancel(ctx), id); derr != nil {
			s.logger.CleanupFailed(port, id, derr)
		}
	}()

	// Outcome of the query itself is irrelevant, only the outbound
	// connection attempt matters
	if _, err := s.client.ProxyQuery(ctx, id, s.config.Query); err != nil && !grafana.IsTimeout(err) {
		s.logger.ProbeError(port, err)
	}
	return nil
}

func (s *Scanner) record(result Result) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordPortScan(string(result.Status), result.Duration)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
