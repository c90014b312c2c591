package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if config.Timeout != 1 {
		t.Errorf("timeout = %d, want 1", config.Timeout)
	}
	if config.CreateTimeout != 2 {
		t.Errorf("create_timeout = %d, want 2", config.CreateTimeout)
	}
	if config.DatasourceType != "alertmanager" {
		t.Errorf("datasource_type = %q", config.DatasourceType)
	}
	if config.NamePrefix != "dashprobe" {
		t.Errorf("name_prefix = %q", config.NamePrefix)
	}
	if config.Query != "up" {
		t.Errorf("query = %q", config.Query)
	}
}

func TestLoadConfigMergesDefaults(t *testing.T) {
	path := writeConfig(t, `
timeout: 5
datasource_type: prometheus
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if config.Timeout != 5 {
		t.Errorf("timeout = %d, want 5", config.Timeout)
	}
	if config.DatasourceType != "prometheus" {
		t.Errorf("datasource_type = %q, want prometheus", config.DatasourceType)
	}
	// Unset fields fall back to defaults
	if config.CreateTimeout != 2 {
		t.Errorf("create_timeout = %d, want default 2", config.CreateTimeout)
	}
	if config.NamePrefix != "dashprobe" {
		t.Errorf("name_prefix = %q, want default", config.NamePrefix)
	}
}

func TestLoadConfigFull(t *testing.T) {
	path := writeConfig(t, `
timeout: 3
create_timeout: 4
insecure_skip_verify: true
datasource_type: loki
name_prefix: audit
query: count(up)
delay: 250ms
proxy: socks5://127.0.0.1:1080
default_headers:
  Cookie: grafana_session=abc
metrics:
  enabled: true
  listen_addr: ":9191"
  path: /metrics
oob:
  enabled: true
  server_url: https://oast.example
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if config.ProbeTimeout() != 3*time.Second {
		t.Errorf("probe timeout = %v", config.ProbeTimeout())
	}
	if config.CreateDeleteTimeout() != 4*time.Second {
		t.Errorf("create timeout = %v", config.CreateDeleteTimeout())
	}
	if !config.InsecureSkipVerify {
		t.Error("insecure_skip_verify not set")
	}
	if config.Delay != 250*time.Millisecond {
		t.Errorf("delay = %v", config.Delay)
	}
	if config.Proxy != "socks5://127.0.0.1:1080" {
		t.Errorf("proxy = %q", config.Proxy)
	}
	if config.DefaultHeaders["Cookie"] != "grafana_session=abc" {
		t.Errorf("headers = %v", config.DefaultHeaders)
	}
	if !config.Metrics.Enabled || config.Metrics.ListenAddr != ":9191" {
		t.Errorf("metrics = %+v", config.Metrics)
	}
	if !config.OOB.Enabled || config.OOB.ServerURL != "https://oast.example" {
		t.Errorf("oob = %+v", config.OOB)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeConfig(t, "timeout: [not a number\n")

	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}
