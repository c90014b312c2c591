package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ValidationResult represents the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ConfigValidationError
	Warnings []string
}

// ConfigValidationError represents a configuration validation error
type ConfigValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation error in %s: %s (value: %v)", e.Field, e.Message, e.Value)
}

// Datasource types Grafana ships with; unknown types still get sent, the
// dashboard decides whether it likes them
var knownDatasourceTypes = map[string]bool{
	"alertmanager":  true,
	"prometheus":    true,
	"loki":          true,
	"elasticsearch": true,
	"graphite":      true,
	"influxdb":      true,
	"mysql":         true,
	"postgres":      true,
	"tempo":         true,
}

var namePrefixPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateConfig performs comprehensive validation on a configuration
func ValidateConfig(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ConfigValidationError{},
		Warnings: []string{},
	}

	// Validate timeouts
	if config.Timeout <= 0 {
		result.Valid = false
		result.Errors = append(result.Errors, ConfigValidationError{
			Field:   "timeout",
			Value:   config.Timeout,
			Message: "probe timeout must be positive",
		})
	} else if config.Timeout > 30 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("probe timeout of %d seconds is very high, scans will be slow", config.Timeout))
	}

	if config.CreateTimeout <= 0 {
		result.Valid = false
		result.Errors = append(result.Errors, ConfigValidationError{
			Field:   "create_timeout",
			Value:   config.CreateTimeout,
			Message: "create timeout must be positive",
		})
	}

	if config.Delay < 0 {
		result.Valid = false
		result.Errors = append(result.Errors, ConfigValidationError{
			Field:   "delay",
			Value:   config.Delay,
			Message: "delay cannot be negative",
		})
	}

	validateDatasourceSettings(config, result)
	validateHeaders(config, result)
	validateProxySettings(config, result)
	validateMetricsSettings(config, result)
	validateOOBSettings(config, result)

	return result
}

// validateDatasourceSettings validates the datasource registration settings
func validateDatasourceSettings(config *Config, result *ValidationResult) {
	if strings.TrimSpace(config.DatasourceType) == "" {
		result.Valid = false
		result.Errors = append(result.Errors, ConfigValidationError{
			Field:   "datasource_type",
			Value:   config.DatasourceType,
			Message: "datasource type cannot be empty",
		})
	} else if !knownDatasourceTypes[config.DatasourceType] {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("datasource type '%s' is not a built-in type, the dashboard may reject it", config.DatasourceType))
	}

	if strings.TrimSpace(config.NamePrefix) == "" {
		result.Valid = false
		result.Errors = append(result.Errors, ConfigValidationError{
			Field:   "name_prefix",
			Value:   config.NamePrefix,
			Message: "name prefix cannot be empty",
		})
	} else if !namePrefixPattern.MatchString(config.NamePrefix) {
		result.Valid = false
		result.Errors = append(result.Errors, ConfigValidationError{
			Field:   "name_prefix",
			Value:   config.NamePrefix,
			Message: "name prefix may only contain letters, digits, '-' and '_'",
		})
	}

	if strings.TrimSpace(config.Query) == "" {
		result.Warnings = append(result.Warnings, "empty probe query, the proxy endpoint may answer differently")
	}
}

// validateHeaders validates HTTP headers
func validateHeaders(config *Config, result *ValidationResult) {
	for name, value := range config.DefaultHeaders {
		if strings.TrimSpace(name) == "" {
			result.Valid = false
			result.Errors = append(result.Errors, ConfigValidationError{
				Field:   "default_headers",
				Value:   fmt.Sprintf("%s: %s", name, value),
				Message: "header name cannot be empty",
			})
		}

		lowerName := strings.ToLower(name)
		if lowerName == "host" || lowerName == "content-length" || lowerName == "transfer-encoding" {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("header '%s' may interfere with request handling", name))
		}
	}

	if strings.TrimSpace(config.UserAgent) == "" {
		result.Warnings = append(result.Warnings, "empty User-Agent may cause requests to be blocked")
	}
}

// validateProxySettings validates the upstream proxy URL
func validateProxySettings(config *Config, result *ValidationResult) {
	if config.Proxy == "" {
		return
	}

	parsed, err := url.Parse(config.Proxy)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, ConfigValidationError{
			Field:   "proxy",
			Value:   config.Proxy,
			Message: fmt.Sprintf("invalid URL: %v", err),
		})
		return
	}

	switch parsed.Scheme {
	case "http", "https", "socks4", "socks5":
	default:
		result.Valid = false
		result.Errors = append(result.Errors, ConfigValidationError{
			Field:   "proxy",
			Value:   config.Proxy,
			Message: fmt.Sprintf("unsupported proxy scheme '%s', use http, https, socks4 or socks5", parsed.Scheme),
		})
	}

	if parsed.Host == "" {
		result.Valid = false
		result.Errors = append(result.Errors, ConfigValidationError{
			Field:   "proxy",
			Value:   config.Proxy,
			Message: "proxy URL must include a host",
		})
	}
}

// validateMetricsSettings validates metrics configuration
func validateMetricsSettings(config *Config, result *ValidationResult) {
	if !config.Metrics.Enabled {
		return
	}

	if strings.TrimSpace(config.Metrics.ListenAddr) == "" {
		result.Valid = false
		result.Errors = append(result.Errors, ConfigValidationError{
			Field:   "metrics.listen_addr",
			Value:   config.Metrics.ListenAddr,
			Message: "metrics listen address cannot be empty when metrics are enabled",
		})
	} else if !strings.Contains(config.Metrics.ListenAddr, ":") {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("metrics listen address '%s' should include port (e.g., ':9090' or 'localhost:9090')", config.Metrics.ListenAddr))
	}

	if strings.TrimSpace(config.Metrics.Path) == "" {
		result.Valid = false
		result.Errors = append(result.Errors, ConfigValidationError{
			Field:   "metrics.path",
			Value:   config.Metrics.Path,
			Message: "metrics path cannot be empty when metrics are enabled",
		})
	} else if !strings.HasPrefix(config.Metrics.Path, "/") {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("metrics path '%s' should start with '/' for proper HTTP routing", config.Metrics.Path))
	}
}

// validateOOBSettings validates out-of-band interaction configuration
func validateOOBSettings(config *Config, result *ValidationResult) {
	if !config.OOB.Enabled {
		return
	}

	if config.OOB.ServerURL != "" {
		if _, err := url.Parse(config.OOB.ServerURL); err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, ConfigValidationError{
				Field:   "oob.server_url",
				Value:   config.OOB.ServerURL,
				Message: fmt.Sprintf("invalid URL: %v", err),
			})
		}
	}

	if config.OOB.Token != "" && config.OOB.ServerURL == "" {
		result.Warnings = append(result.Warnings, "oob token set without a server URL, the public servers will be used")
	}
}

// ValidateAndLoad loads and validates a configuration file
func ValidateAndLoad(filename string) (*Config, *ValidationResult, error) {
	config, err := LoadConfig(filename)
	if err != nil {
		return nil, nil, err
	}

	validationResult := ValidateConfig(config)
	return config, validationResult, nil
}
