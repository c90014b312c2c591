package grafana

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"h12.io/socks"

	scanerrors "github.com/hx0day/dashprobe/internal/errors"
)

const maxBodyBytes = 1 << 20 // cap on proxied response bodies

// Config represents dashboard API client configuration
type Config struct {
	BaseURL string
	Token   string
	// ExtraHeaders are applied to every request (Cookie-based auth goes here)
	ExtraHeaders map[string]string
	UserAgent    string

	// CreateTimeout bounds datasource create/delete calls, ProbeTimeout
	// bounds proxy queries. The probe timeout doubles as the effective
	// port-scan timeout against the target.
	CreateTimeout time.Duration
	ProbeTimeout  time.Duration

	// UpstreamProxy routes all scanner traffic through an http, https,
	// socks4 or socks5 proxy URL
	UpstreamProxy      string
	InsecureSkipVerify bool
}

// Client talks to the dashboard's datasource API. It keeps two sessions: the
// create/delete session never sends the bearer token (vulnerable builds
// reject authenticated creates), while the probe session sends full
// authentication.
type Client struct {
	config      Config
	baseURL     string
	probeClient *http.Client
	plainClient *http.Client

	// probeTimeout holds the per-probe deadline in nanoseconds. Kept
	// atomic so config hot-reload can retune it mid-scan; each probe
	// derives its own context deadline from it.
	probeTimeout atomic.Int64
}

// NewClient creates a new dashboard API client
func NewClient(config Config) (*Client, error) {
	if config.CreateTimeout <= 0 {
		config.CreateTimeout = 2 * time.Second
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 1 * time.Second
	}

	transport, err := buildTransport(config)
	if err != nil {
		return nil, err
	}

	c := &Client{
		config:  config,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		// The probe client carries no fixed Timeout; each probe gets a
		// context deadline from the current probe timeout instead
		probeClient: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		plainClient: &http.Client{
			Transport: transport,
			Timeout:   config.CreateTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
	c.probeTimeout.Store(int64(config.ProbeTimeout))
	return c, nil
}

// SetProbeTimeout changes the per-probe deadline. Safe to call while a scan
// is running; the next probe uses the new value.
func (c *Client) SetProbeTimeout(d time.Duration) {
	if d > 0 {
		c.probeTimeout.Store(int64(d))
	}
}

// ProbeTimeout returns the current per-probe deadline
func (c *Client) ProbeTimeout() time.Duration {
	return time.Duration(c.probeTimeout.Load())
}

// buildTransport creates the shared HTTP transport, wiring in the upstream
// proxy when one is configured
func buildTransport(config Config) (*http.Transport, error) {
	transport := &http.Transport{
		TLSHandshakeTimeout:   config.CreateTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		DisableKeepAlives:     true,
		ForceAttemptHTTP2:     false,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.InsecureSkipVerify,
		},
	}

	if config.UpstreamProxy == "" {
		return transport, nil
	}

	proxyURL, err := url.Parse(config.UpstreamProxy)
	if err != nil {
		return nil, scanerrors.NewNetworkError(scanerrors.ErrorUpstreamProxyFailed,
			"invalid upstream proxy URL", config.UpstreamProxy, err)
	}

	switch proxyURL.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(proxyURL)

	case "socks4", "socks5":
		dialSocksProxy := socks.Dial(fmt.Sprintf("%s://%s", proxyURL.Scheme, proxyURL.Host))
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialSocksProxy(network, addr)
		}

	default:
		return nil, scanerrors.NewNetworkError(scanerrors.ErrorUpstreamProxyFailed,
			fmt.Sprintf("unsupported upstream proxy scheme %q", proxyURL.Scheme),
			config.UpstreamProxy, nil)
	}

	return transport, nil
}

// applyHeaders sets the shared headers; withAuth additionally attaches the
// bearer token
func (c *Client) applyHeaders(req *http.Request, withAuth bool) {
	req.Header.Set("Content-Type", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	for key, value := range c.config.ExtraHeaders {
		req.Header.Set(key, value)
	}
	if withAuth && c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
}

// CreateDatasource registers a proxy datasource whose backend URL is the
// scan target. Returns the new datasource id.
func (c *Client) CreateDatasource(ctx context.Context, name, targetHost string, port int, dsType string) (int64, error) {
	payload := DatasourcePayload{
		Name:   name,
		Type:   dsType,
		Access: "proxy",
		URL:    fmt.Sprintf("%s:%d", targetHost, port),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, scanerrors.NewDatasourceError(scanerrors.ErrorDatasourceCreateFailed,
			"failed to encode datasource payload", port, err)
	}

	endpoint := c.baseURL + "/api/datasources/"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, scanerrors.NewHTTPError(scanerrors.ErrorHTTPRequestFailed,
			"failed to build create request", endpoint, err)
	}
	c.applyHeaders(req, false)

	resp, err := c.plainClient.Do(req)
	if err != nil {
		return 0, scanerrors.NewDatasourceError(scanerrors.ErrorDatasourceCreateFailed,
			"datasource create request failed", port, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return 0, scanerrors.NewDatasourceError(scanerrors.ErrorDatasourceCreateFailed,
			fmt.Sprintf("datasource create returned HTTP %d", resp.StatusCode), port, nil)
	}

	var envelope datasourceEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&envelope); err != nil {
		return 0, scanerrors.NewDatasourceError(scanerrors.ErrorDatasourceCreateFailed,
			"malformed datasource create response", port, err)
	}

	id := envelope.ID
	if envelope.Datasource != nil && envelope.Datasource.ID != 0 {
		id = envelope.Datasource.ID
	}
	if id == 0 {
		return 0, scanerrors.NewDatasourceError(scanerrors.ErrorDatasourceIDMissing,
			"datasource create response carried no id", port, nil)
	}

	return id, nil
}

// ProxyQuery issues a query through the datasource proxy endpoint. The
// dashboard server forwards it to the registered backend, so the response
// reflects the reachability of the scan target.
func (c *Client) ProxyQuery(ctx context.Context, datasourceID int64, query string) (*ProbeResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.ProbeTimeout())
	defer cancel()

	endpoint := fmt.Sprintf("%s/api/datasources/proxy/%d/api/v1/query", c.baseURL, datasourceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, scanerrors.NewHTTPError(scanerrors.ErrorHTTPRequestFailed,
			"failed to build probe request", endpoint, err)
	}

	q := req.URL.Query()
	q.Set("query", query)
	req.URL.RawQuery = q.Encode()
	c.applyHeaders(req, true)

	resp, err := c.probeClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	probe := &ProbeResponse{
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") && json.Valid(body) {
		probe.JSON = json.RawMessage(body)
	}

	return probe, nil
}

// DeleteDatasource removes a registered datasource. A 404 counts as already
// cleaned up.
func (c *Client) DeleteDatasource(ctx context.Context, datasourceID int64) error {
	endpoint := fmt.Sprintf("%s/api/datasources/%d", c.baseURL, datasourceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return scanerrors.NewHTTPError(scanerrors.ErrorHTTPRequestFailed,
			"failed to build delete request", endpoint, err)
	}
	c.applyHeaders(req, false)

	resp, err := c.plainClient.Do(req)
	if err != nil {
		return scanerrors.NewDatasourceError(scanerrors.ErrorDatasourceDeleteFailed,
			"datasource delete request failed", 0, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return scanerrors.NewDatasourceError(scanerrors.ErrorDatasourceDeleteFailed,
			fmt.Sprintf("datasource delete returned HTTP %d", resp.StatusCode), 0, nil)
	}

	return nil
}

// IsTimeout reports whether a probe error was a timeout rather than a hard
// transport failure
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return strings.Contains(err.Error(), "Client.Timeout exceeded")
}
