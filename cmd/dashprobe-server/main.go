package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	appconfig "github.com/hx0day/dashprobe/internal/config"
	"github.com/hx0day/dashprobe/internal/help"
	"github.com/hx0day/dashprobe/internal/logging"
	"github.com/hx0day/dashprobe/pkg/server"
)

func main() {
	var (
		apiAddr    = flag.String("api", ":8888", "API/WebSocket listen address")
		configFile = flag.String("config", "config/default.yaml", "Configuration file")
		maxPorts   = flag.Int("max-ports", server.DefaultMaxPorts, "Maximum ports per scan request")
		logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		logFormat  = flag.String("log-format", "text", "Log format (text, json)")

		enableMetrics = flag.Bool("metrics", false, "Expose Prometheus metrics on /metrics")

		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
	)

	flag.Parse()

	if *showHelp {
		printHelp()
		os.Exit(0)
	}
	if *showVersion {
		help.PrintVersion(os.Stdout, help.DetectNoColor())
		os.Exit(0)
	}

	logger := logging.NewLogger(logging.Config{
		Level:  parseLogLevel(*logLevel),
		Format: *logFormat,
	})

	appCfg, validationResult, err := appconfig.ValidateAndLoad(*configFile)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err, "file", *configFile)
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

	srv := server.NewServer(&server.Config{
		ListenAddr:     *apiAddr,
		MaxPorts:       *maxPorts,
		MetricsEnabled: *enableMetrics,
	}, appCfg, logger)

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	case sig := <-signalChan:
		logger.Info("Received shutdown signal", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Shutdown failed", "error", err)
			os.Exit(1)
		}
		logger.Info("Server shut down successfully")
	}
}

func parseLogLevel(level string) logging.LogLevel {
	switch level {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func printHelp() {
	fmt.Print(`dashprobe-server - dashboard datasource proxy scanner as a service

DESCRIPTION:
    Runs dashprobe as a long-lived API server. Scans are submitted over REST
    and progress streams out over WebSocket, so assessment pipelines can
    drive the scanner without a terminal.

USAGE:
    dashprobe-server [flags]

FLAGS:
    -api string
        API/WebSocket listen address (default ":8888")

    -config string
        Configuration file (default "config/default.yaml")

    -max-ports int
        Maximum ports per scan request (default 10000)

    -log-level string
        Log level: debug, info, warn, error (default "info")

    -log-format string
        Log format: text, json (default "text")

    -metrics
        Expose Prometheus metrics on /metrics

    -help
        Show this help message

    -version
        Show version information

ENDPOINTS:
    POST /api/v1/scan    Run a scan and return the report
    GET  /api/v1/stats   WebSocket hub statistics
    GET  /health         Liveness and scan state
    GET  /metrics        Prometheus metrics (with -metrics)
    WS   /ws             Scan progress stream

EXAMPLES:
    # Start with defaults
    dashprobe-server

    # Submit a scan
    curl -X POST http://localhost:8888/api/v1/scan \
        -d '{"dashboard_url":"http://dash.corp:3000","target":"10.0.0.5","ports":"1-1000"}'

    # Watch progress
    websocat ws://localhost:8888/ws
`)
}
