package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector manages all dashprobe metrics
type Collector struct {
	// Counters
	portsScanned   prometheus.Counter
	createFailures prometheus.Counter
	scansStarted   prometheus.Counter
	scansCompleted prometheus.Counter

	// Histograms
	probeDuration prometheus.Histogram

	// Gauges
	scanActive     prometheus.Gauge
	portsRemaining prometheus.Gauge

	// Labels
	portsPerStatus *prometheus.CounterVec

	registry *prometheus.Registry
	server   *http.Server
	mutex    sync.RWMutex
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
	}

	c.initMetrics()
	c.registerMetrics()

	return c
}

// initMetrics initializes all Prometheus metrics
func (c *Collector) initMetrics() {
	c.portsScanned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dashprobe_ports_scanned_total",
		Help: "Total number of ports probed through the datasource proxy",
	})

	c.createFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dashprobe_datasource_create_failures_total",
		Help: "Total number of failed datasource registrations",
	})

	c.scansStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dashprobe_scans_started_total",
		Help: "Total number of scan runs started",
	})

	c.scansCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dashprobe_scans_completed_total",
		Help: "Total number of scan runs completed",
	})

	c.probeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dashprobe_probe_duration_seconds",
		Help:    "Duration of the per-port create-probe-delete sequence in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
	})

	c.scanActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dashprobe_scan_active",
		Help: "Whether a scan run is currently in progress",
	})

	c.portsRemaining = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dashprobe_ports_remaining",
		Help: "Number of ports left in the current scan run",
	})

	c.portsPerStatus = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashprobe_ports_per_status_total",
			Help: "Total number of scanned ports per classification",
		},
		[]string{"status"},
	)
}

// registerMetrics registers all metrics with the Prometheus registry
func (c *Collector) registerMetrics() {
	c.registry.MustRegister(
		c.portsScanned,
		c.createFailures,
		c.scansStarted,
		c.scansCompleted,
		c.probeDuration,
		c.scanActive,
		c.portsRemaining,
		c.portsPerStatus,
	)
}

// StartServer starts the metrics HTTP server
func (c *Collector) StartServer(addr string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.server != nil {
		return fmt.Errorf("metrics server already running")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	c.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		server := c.server
		if server != nil {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				// Metrics are best-effort, never take down the scan
			}
		}
	}()

	return nil
}

// StopServer stops the metrics HTTP server
func (c *Collector) StopServer() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := c.server.Shutdown(ctx)
	c.server = nil
	return err
}

// Metrics recording methods

// RecordPortScan records a completed per-port sequence
func (c *Collector) RecordPortScan(status string, duration time.Duration) {
	c.portsScanned.Inc()
	c.probeDuration.Observe(duration.Seconds())
	c.portsPerStatus.WithLabelValues(status).Inc()
}

// RecordCreateFailure records a failed datasource registration
func (c *Collector) RecordCreateFailure() {
	c.createFailures.Inc()
}

// RecordScanStart records the start of a scan run
func (c *Collector) RecordScanStart(totalPorts int) {
	c.scansStarted.Inc()
	c.scanActive.Set(1)
	c.portsRemaining.Set(float64(totalPorts))
}

// RecordScanComplete records the end of a scan run
func (c *Collector) RecordScanComplete() {
	c.scansCompleted.Inc()
	c.scanActive.Set(0)
	c.portsRemaining.Set(0)
}

// SetPortsRemaining updates the remaining ports gauge
func (c *Collector) SetPortsRemaining(count int) {
	c.portsRemaining.Set(float64(count))
}

// GetRegistry returns the Prometheus registry for external use
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// GetMetricsHandler returns an HTTP handler for the /metrics endpoint
func (c *Collector) GetMetricsHandler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
