package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger provides structured logging capabilities
type Logger struct {
	*slog.Logger
}

// LogLevel represents log level constants
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Config represents logger configuration
type Config struct {
	Level  LogLevel
	Format string // "json" or "text"
	Output io.Writer
}

// NewLogger creates a new structured logger
func NewLogger(config Config) *Logger {
	var level slog.Level
	switch config.Level {
	case LevelDebug:
		level = slog.LevelDebug
	case LevelInfo:
		level = slog.LevelInfo
	case LevelWarn:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	output := config.Output
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if config.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// GetDefaultLogger returns a logger with sensible defaults
func GetDefaultLogger() *Logger {
	return NewLogger(Config{
		Level:  LevelInfo,
		Format: "text",
		Output: os.Stderr,
	})
}

// WithContext adds contextual fields to the logger
func (l *Logger) WithContext(args ...any) *Logger {
	return &Logger{
		Logger: l.With(args...),
	}
}

// WithPort adds port context
func (l *Logger) WithPort(port int) *Logger {
	return l.WithContext("port", port)
}

// WithTarget adds target host context
func (l *Logger) WithTarget(target string) *Logger {
	return l.WithContext("target", target)
}

// ConfigLoaded logs successful configuration loading
func (l *Logger) ConfigLoaded(file string) {
	l.Info("Configuration loaded", "file", file)
}

// ConfigNotFound logs when config file is not found
func (l *Logger) ConfigNotFound(file string) {
	l.Warn("Config file not found, using defaults", "file", file)
}

// PortsParsed logs successful port specification parsing
func (l *Logger) PortsParsed(count int, spec string) {
	l.Info("Port specification parsed", "count", count, "spec", spec)
}

// ScanStart logs the start of a scan run
func (l *Logger) ScanStart(dashboardURL, target string, total int) {
	l.Info("Starting datasource proxy scan",
		"dashboard", dashboardURL,
		"target", target,
		"ports", total)
}

// ScanComplete logs scan completion with timing
func (l *Logger) ScanComplete(total int, elapsedSeconds, rate float64) {
	l.Info("Scan complete",
		"ports", total,
		"elapsed_seconds", elapsedSeconds,
		"ports_per_second", rate)
}

// PortOpen logs an open port finding
func (l *Logger) PortOpen(port, statusCode int) {
	l.WithPort(port).Info("Port open", "status_code", statusCode)
}

// PortClosed logs a closed/filtered port
func (l *Logger) PortClosed(port, statusCode int) {
	l.WithPort(port).Debug("Port closed or filtered", "status_code", statusCode)
}

// PortTimeout logs a probe timeout
func (l *Logger) PortTimeout(port int) {
	l.WithPort(port).Debug("Probe timed out")
}

// ProbeError logs a per-port probe error
func (l *Logger) ProbeError(port int, err error) {
	l.WithPort(port).Debug("Probe error", "error", err)
}

// CreateFailed logs a datasource registration failure
func (l *Logger) CreateFailed(port int, err error) {
	l.WithPort(port).Debug("Datasource create failed", "error", err)
}

// CleanupFailed logs a datasource delete failure; the datasource is left behind
func (l *Logger) CleanupFailed(port int, datasourceID int64, err error) {
	l.WithPort(port).Warn("Datasource cleanup failed, stale entry left on server",
		"datasource_id", datasourceID,
		"error", err)
}

// OOBConfirmed logs an out-of-band SSRF confirmation
func (l *Logger) OOBConfirmed(protocol, remoteIP string) {
	l.Info("Out-of-band interaction received, SSRF confirmed",
		"protocol", protocol,
		"remote_ip", remoteIP)
}

// ResultsSaved logs when results are saved to file
func (l *Logger) ResultsSaved(file string, format string) {
	l.Info("Results saved", "file", file, "format", format)
}

// ShutdownReceived logs shutdown signal
func (l *Logger) ShutdownReceived() {
	l.Info("Shutdown signal received, cleaning up...")
}

// SummaryStats logs summary statistics
func (l *Logger) SummaryStats(total, open, closed, timeout, errored int) {
	l.Info("Summary statistics",
		"total", total,
		"open", open,
		"closed", closed,
		"timeout", timeout,
		"error", errored,
	)
}
