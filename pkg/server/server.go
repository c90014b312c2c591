// Package server exposes dashprobe as a long-running service: scans are
// submitted over a REST API and progress streams out over WebSocket, so
// assessment pipelines can drive the tool without a terminal.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	appconfig "github.com/hx0day/dashprobe/internal/config"
	"github.com/hx0day/dashprobe/internal/grafana"
	"github.com/hx0day/dashprobe/internal/logging"
	"github.com/hx0day/dashprobe/internal/metrics"
	"github.com/hx0day/dashprobe/internal/output"
	"github.com/hx0day/dashprobe/internal/ports"
	"github.com/hx0day/dashprobe/internal/scanner"
)

// Config holds server settings
type Config struct {
	// ListenAddr is the address for the REST/WebSocket API
	ListenAddr string

	// MaxPorts caps the number of ports a single scan request may ask for
	MaxPorts int

	// MetricsEnabled exposes the Prometheus registry on /metrics
	MetricsEnabled bool
}

// DefaultMaxPorts bounds a single request; a full 1-65535 sweep through the
// proxy takes hours and belongs in the CLI, not a request/response API.
const DefaultMaxPorts = 10000

// Server is the dashprobe API server. Scans run one at a time: probing is
// strictly sequential against the dashboard, so concurrent scan requests
// would only interleave traffic and skew classification.
type Server struct {
	config    *Config
	appConfig *appconfig.Config
	logger    *logging.Logger
	metrics   *metrics.Collector
	ws        *WebSocketService

	httpServer *http.Server
	scanMu     sync.Mutex
}

// ScanRequest is the body of POST /api/v1/scan
type ScanRequest struct {
	DashboardURL string            `json:"dashboard_url"`
	Target       string            `json:"target"`
	Ports        string            `json:"ports,omitempty"`
	Token        string            `json:"token,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`

	DatasourceType string `json:"datasource_type,omitempty"`
	NamePrefix     string `json:"name_prefix,omitempty"`
	Query          string `json:"query,omitempty"`

	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
	DelayMS        int `json:"delay_ms,omitempty"`
}

// errorResponse is the JSON body for all error statuses
type errorResponse struct {
	Error string `json:"error"`
}

// NewServer creates a dashprobe API server. The application config supplies
// defaults for anything a scan request leaves unset.
func NewServer(cfg *Config, appCfg *appconfig.Config, logger *logging.Logger) *Server {
	if cfg.MaxPorts <= 0 {
		cfg.MaxPorts = DefaultMaxPorts
	}
	if appCfg == nil {
		appCfg = appconfig.GetDefaultConfig()
	}
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}

	s := &Server{
		config:    cfg,
		appConfig: appCfg,
		logger:    logger,
		ws:        NewWebSocketService(logger),
	}

	if cfg.MetricsEnabled {
		s.metrics = metrics.NewCollector()
	}

	return s
}

// Handler returns the full route table. Exposed so tests can mount it on an
// httptest server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/scan", s.handleScan)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws", s.ws.handleWebSocket)

	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.GetMetricsHandler())
	}

	return mux
}

// Start runs the API server until Shutdown is called
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.config.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting dashprobe API server", "addr", s.config.ListenAddr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the API server
func (s *Server) Shutdown(ctx context.Context) error {
	s.ws.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleScan runs a full scan for one request and returns the report. The
// request context drives cancellation: a disconnected client stops the scan
// after the in-flight port finishes its cleanup.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DashboardURL == "" {
		s.writeError(w, http.StatusBadRequest, "dashboard_url is required")
		return
	}
	if req.Target == "" {
		s.writeError(w, http.StatusBadRequest, "target is required")
		return
	}

	spec := req.Ports
	if spec == "" {
		spec = "1-1000"
	}
	portList, err := ports.Parse(spec)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid port specification: %v", err))
		return
	}
	if len(portList) > s.config.MaxPorts {
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("request asks for %d ports, limit is %d", len(portList), s.config.MaxPorts))
		return
	}

	if !s.scanMu.TryLock() {
		s.writeError(w, http.StatusConflict, "a scan is already in progress")
		return
	}
	defer s.scanMu.Unlock()

	client, err := s.buildClient(req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	scanConfig := scanner.Config{
		TargetHost:     req.Target,
		DatasourceType: firstNonEmpty(req.DatasourceType, s.appConfig.DatasourceType),
		NamePrefix:     firstNonEmpty(req.NamePrefix, s.appConfig.NamePrefix),
		Query:          firstNonEmpty(req.Query, s.appConfig.Query),
		Delay:          time.Duration(req.DelayMS) * time.Millisecond,
	}
	if scanConfig.Delay == 0 {
		scanConfig.Delay = s.appConfig.Delay
	}

	sc := scanner.New(client, scanConfig, s.logger)
	if s.metrics != nil {
		sc.SetMetrics(s.metrics)
	}
	sc.OnResult = func(current, total int, result scanner.Result) {
		s.ws.BroadcastResult(current, total, result)
		if s.metrics != nil {
			s.metrics.SetPortsRemaining(total - current)
		}
	}

	s.logger.ScanStart(req.DashboardURL, req.Target, len(portList))
	s.ws.BroadcastScanStarted(req.Target, req.DashboardURL, len(portList))
	if s.metrics != nil {
		s.metrics.RecordScanStart(len(portList))
	}

	start := time.Now()
	results := sc.Run(r.Context(), portList)
	elapsed := time.Since(start)

	if s.metrics != nil {
		s.metrics.RecordScanComplete()
	}

	report := output.GenerateReport(req.Target, req.DashboardURL, results)
	s.ws.BroadcastScanComplete(req.Target, report.Summary, elapsed)
	s.logger.SummaryStats(report.Summary.Total, report.Summary.Open,
		report.Summary.Closed, report.Summary.Timeout, report.Summary.Error)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

// buildClient turns a scan request into a dashboard API client, filling the
// gaps from the application config
func (s *Server) buildClient(req ScanRequest) (*grafana.Client, error) {
	headers := make(map[string]string, len(s.appConfig.DefaultHeaders)+len(req.Headers))
	for k, v := range s.appConfig.DefaultHeaders {
		headers[k] = v
	}
	for k, v := range req.Headers {
		headers[k] = v
	}

	probeTimeout := s.appConfig.ProbeTimeout()
	if req.TimeoutSeconds > 0 {
		probeTimeout = time.Duration(req.TimeoutSeconds) * time.Second
	}

	return grafana.NewClient(grafana.Config{
		BaseURL:            req.DashboardURL,
		Token:              req.Token,
		ExtraHeaders:       headers,
		UserAgent:          s.appConfig.UserAgent,
		CreateTimeout:      s.appConfig.CreateDeleteTimeout(),
		ProbeTimeout:       probeTimeout,
		UpstreamProxy:      s.appConfig.Proxy,
		InsecureSkipVerify: s.appConfig.InsecureSkipVerify,
	})
}

// handleHealth reports server liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	scanning := !s.scanMu.TryLock()
	if !scanning {
		s.scanMu.Unlock()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      "healthy",
		"scan_active": scanning,
		"ws_clients":  s.ws.ClientCount(),
		"max_ports":   s.config.MaxPorts,
	})
}

// handleStats reports WebSocket service statistics
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.ws.GetStats())
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
