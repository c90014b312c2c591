package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration
type Config struct {
	// Timeout is the per-port probe timeout in seconds. Port state is
	// inferred from how the dashboard's server-side connection behaves,
	// so this bounds the slowest classification.
	Timeout int `yaml:"timeout"`

	// CreateTimeout covers datasource create and delete calls in seconds
	CreateTimeout int `yaml:"create_timeout"`

	InsecureSkipVerify bool              `yaml:"insecure_skip_verify"`
	UserAgent          string            `yaml:"user_agent"`
	DefaultHeaders     map[string]string `yaml:"default_headers"`

	// Datasource registration settings
	DatasourceType string `yaml:"datasource_type"`
	NamePrefix     string `yaml:"name_prefix"`
	Query          string `yaml:"query"`

	// Delay between ports; scanning is always sequential
	Delay time.Duration `yaml:"delay"`

	// Proxy routes all dashboard traffic through an upstream proxy
	// (http, https, socks4 or socks5 URL)
	Proxy string `yaml:"proxy"`

	Metrics MetricsConfig `yaml:"metrics"`
	OOB     OOBConfig     `yaml:"oob"`
}

// MetricsConfig contains Prometheus metrics settings
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
	Path       string `yaml:"path"`
}

// OOBConfig contains out-of-band interaction settings for blind SSRF
// confirmation
type OOBConfig struct {
	Enabled   bool   `yaml:"enabled"`
	ServerURL string `yaml:"server_url"`
	Token     string `yaml:"token"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filename string) (*Config, error) {
	// Missing file falls back to defaults so the tool works with zero setup
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return GetDefaultConfig(), nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	// Merge with defaults for any missing fields
	defaults := GetDefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.CreateTimeout <= 0 {
		config.CreateTimeout = defaults.CreateTimeout
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}
	if config.DatasourceType == "" {
		config.DatasourceType = defaults.DatasourceType
	}
	if config.NamePrefix == "" {
		config.NamePrefix = defaults.NamePrefix
	}
	if config.Query == "" {
		config.Query = defaults.Query
	}
	if config.Metrics.ListenAddr == "" {
		config.Metrics.ListenAddr = defaults.Metrics.ListenAddr
	}
	if config.Metrics.Path == "" {
		config.Metrics.Path = defaults.Metrics.Path
	}

	return &config, nil
}

// GetDefaultConfig returns a configuration with default values
func GetDefaultConfig() *Config {
	return &Config{
		Timeout:            1,
		CreateTimeout:      2,
		InsecureSkipVerify: false,
		UserAgent:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		DatasourceType:     "alertmanager",
		NamePrefix:         "dashprobe",
		Query:              "up",
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: ":9090",
			Path:       "/metrics",
		},
	}
}

// ProbeTimeout returns the probe timeout as a duration
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// CreateDeleteTimeout returns the create/delete timeout as a duration
func (c *Config) CreateDeleteTimeout() time.Duration {
	return time.Duration(c.CreateTimeout) * time.Second
}
