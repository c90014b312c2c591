package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hx0day/dashprobe/internal/grafana"
	"github.com/hx0day/dashprobe/internal/logging"
	"github.com/hx0day/dashprobe/internal/output"
)

// fakeDashboard simulates the datasource API: create assigns ids, the proxy
// endpoint answers per-port canned responses, delete records cleanup.
type fakeDashboard struct {
	mu sync.Mutex

	proxyStatus map[int]int

	nextID   int64
	idToPort map[int64]int
	deleted  []int64
}

func newFakeDashboard(proxyStatus map[int]int) *fakeDashboard {
	return &fakeDashboard{
		proxyStatus: proxyStatus,
		idToPort:    make(map[int64]int),
	}
}

func (f *fakeDashboard) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/datasources/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			f.handleCreate(w, r)
		case http.MethodDelete:
			f.handleDelete(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/datasources/proxy/", func(w http.ResponseWriter, r *http.Request) {
		f.handleProxy(w, r)
	})

	return mux
}

func (f *fakeDashboard) handleCreate(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var payload grafana.DatasourcePayload
	json.NewDecoder(r.Body).Decode(&payload)

	var port int
	fmt.Sscanf(payload.URL[strings.LastIndex(payload.URL, ":")+1:], "%d", &port)

	f.nextID++
	f.idToPort[f.nextID] = port
	fmt.Fprintf(w, `{"datasource":{"id":%d},"message":"Datasource added"}`, f.nextID)
}

func (f *fakeDashboard) handleDelete(w http.ResponseWriter, r *http.Request) {
	var id int64
	fmt.Sscanf(strings.TrimPrefix(r.URL.Path, "/api/datasources/"), "%d", &id)

	f.mu.Lock()
	f.deleted = append(f.deleted, id)
	f.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

func (f *fakeDashboard) handleProxy(w http.ResponseWriter, r *http.Request) {
	var id int64
	rest := strings.TrimPrefix(r.URL.Path, "/api/datasources/proxy/")
	fmt.Sscanf(rest[:strings.Index(rest, "/")], "%d", &id)

	f.mu.Lock()
	port := f.idToPort[id]
	status := f.proxyStatus[port]
	f.mu.Unlock()

	if status == http.StatusOK {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"status":"probe","port":%d}`, port)
}

func (f *fakeDashboard) deleteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deleted)
}

func quietLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: logging.LevelError, Output: io.Discard})
}

func newTestServer(t *testing.T, cfg *Config) (*Server, *httptest.Server) {
	t.Helper()

	if cfg == nil {
		cfg = &Config{}
	}
	s := NewServer(cfg, nil, quietLogger())

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.ws.Stop()
	})

	return s, ts
}

func postScan(t *testing.T, apiURL string, req ScanRequest) *http.Response {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(apiURL+"/api/v1/scan", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestHandleScan(t *testing.T) {
	dashboard := newFakeDashboard(map[int]int{
		80:   http.StatusOK,
		81:   http.StatusBadGateway,
		82:   http.StatusServiceUnavailable,
		8080: http.StatusNotFound,
	})
	dash := httptest.NewServer(dashboard.handler())
	defer dash.Close()

	_, ts := newTestServer(t, nil)

	resp := postScan(t, ts.URL, ScanRequest{
		DashboardURL: dash.URL,
		Target:       "10.0.0.5",
		Ports:        "80-82,8080",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var report output.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}

	if report.Target != "10.0.0.5" {
		t.Errorf("target = %q", report.Target)
	}
	if report.Summary.Total != 4 || report.Summary.Open != 2 || report.Summary.Closed != 2 {
		t.Errorf("summary = %+v", report.Summary)
	}
	if dashboard.deleteCount() != 4 {
		t.Errorf("deletes = %d, want 4", dashboard.deleteCount())
	}
}

func TestHandleScanValidation(t *testing.T) {
	_, ts := newTestServer(t, &Config{MaxPorts: 100})

	tests := []struct {
		name       string
		req        ScanRequest
		wantStatus int
	}{
		{
			name:       "missing dashboard url",
			req:        ScanRequest{Target: "10.0.0.5"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing target",
			req:        ScanRequest{DashboardURL: "http://dash.example:3000"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "bad port spec",
			req: ScanRequest{
				DashboardURL: "http://dash.example:3000",
				Target:       "10.0.0.5",
				Ports:        "80-22",
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "too many ports",
			req: ScanRequest{
				DashboardURL: "http://dash.example:3000",
				Target:       "10.0.0.5",
				Ports:        "1-200",
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postScan(t, ts.URL, tt.req)
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}

			var errResp errorResponse
			if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
				t.Fatal(err)
			}
			if errResp.Error == "" {
				t.Error("error response should carry a message")
			}
		})
	}
}

func TestHandleScanMethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/v1/scan")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestHandleScanConflict(t *testing.T) {
	s, ts := newTestServer(t, nil)

	// Simulate an in-flight scan
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	resp := postScan(t, ts.URL, ScanRequest{
		DashboardURL: "http://dash.example:3000",
		Target:       "10.0.0.5",
		Ports:        "80",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestHandleHealth(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var health map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}

	if health["status"] != "healthy" {
		t.Errorf("status = %v", health["status"])
	}
	if health["scan_active"] != false {
		t.Errorf("scan_active = %v, want false", health["scan_active"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, &Config{MetricsEnabled: true})

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "dashprobe_ports_scanned_total") {
		t.Error("metrics output missing dashprobe counters")
	}
}

func TestMetricsDisabled(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestWebSocketStream(t *testing.T) {
	dashboard := newFakeDashboard(map[int]int{
		80: http.StatusOK,
		81: http.StatusBadGateway,
	})
	dash := httptest.NewServer(dashboard.handler())
	defer dash.Close()

	_, ts := newTestServer(t, nil)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// Welcome confirms the hub registered us before the scan starts
	var welcome Message
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&welcome); err != nil {
		t.Fatal(err)
	}
	if welcome.Type != "welcome" {
		t.Fatalf("first message type = %q, want welcome", welcome.Type)
	}

	resp := postScan(t, ts.URL, ScanRequest{
		DashboardURL: dash.URL,
		Target:       "10.0.0.5",
		Ports:        "80,81",
	})
	resp.Body.Close()

	var started ScanStartedEvent
	var results []ScanResultEvent
	var complete *ScanCompleteEvent

	for complete == nil {
		var msg Message
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read failed after %d results: %v", len(results), err)
		}

		switch msg.Type {
		case "scan_started":
			if err := json.Unmarshal(msg.Data, &started); err != nil {
				t.Fatal(err)
			}
		case "scan_result":
			var event ScanResultEvent
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				t.Fatal(err)
			}
			results = append(results, event)
		case "scan_complete":
			complete = &ScanCompleteEvent{}
			if err := json.Unmarshal(msg.Data, complete); err != nil {
				t.Fatal(err)
			}
		default:
			t.Fatalf("unexpected message type %q", msg.Type)
		}
	}

	if started.TotalPorts != 2 {
		t.Errorf("scan_started total = %d, want 2", started.TotalPorts)
	}
	if len(results) != 2 {
		t.Fatalf("got %d result events, want 2", len(results))
	}
	if results[0].Result.Port != 80 || results[0].Result.Status != "open" {
		t.Errorf("first result = %+v", results[0].Result)
	}
	if results[1].Result.Port != 81 || results[1].Result.Status != "closed/filtered" {
		t.Errorf("second result = %+v", results[1].Result)
	}
	if complete.Summary.Open != 1 || complete.Summary.Closed != 1 {
		t.Errorf("complete summary = %+v", complete.Summary)
	}
}

func TestWebSocketPing(t *testing.T) {
	_, ts := newTestServer(t, nil)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	var welcome Message
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&welcome); err != nil {
		t.Fatal(err)
	}

	if err := conn.WriteJSON(Message{Type: "ping"}); err != nil {
		t.Fatal(err)
	}

	var pong Message
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatal(err)
	}
	if pong.Type != "pong" {
		t.Errorf("reply type = %q, want pong", pong.Type)
	}
}

func TestClientQueueAfterClose(t *testing.T) {
	client := &WSClient{send: make(chan Message, 1)}

	if !client.queue(Message{Type: "pong"}) {
		t.Fatal("queue on an open client returned false")
	}
	if client.queue(Message{Type: "pong"}) {
		t.Error("queue on a full buffer must report failure")
	}

	client.close()
	client.close() // second close must be a no-op

	if client.queue(Message{Type: "pong"}) {
		t.Error("queue after close must report failure")
	}
}

func TestSlowClientDropDoesNotPanic(t *testing.T) {
	ws := NewWebSocketService(quietLogger())
	defer ws.Stop()

	// One-slot buffer that nothing drains; the welcome message fills it
	client := &WSClient{
		ID:      "slow",
		send:    make(chan Message, 1),
		service: ws,
	}
	ws.register <- client
	waitForClients(t, ws, 1)

	// The full buffer forces the hub to drop the client
	ws.send(Message{Type: "scan_result", Timestamp: time.Now()})
	waitForClients(t, ws, 0)

	// A late reply, as the client's reader would send after being dropped
	if client.queue(Message{Type: "pong", Timestamp: time.Now()}) {
		t.Error("queue on a dropped client must report failure")
	}
}

func waitForClients(t *testing.T, ws *WebSocketService, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ws.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client count = %d, want %d", ws.ClientCount(), want)
}
