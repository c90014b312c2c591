package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hx0day/dashprobe/internal/grafana"
)

// fakeDashboard simulates the datasource API: create assigns ids, the proxy
// endpoint answers per-port canned responses, delete records cleanup.
type fakeDashboard struct {
	mu sync.Mutex

	// port -> canned proxy status code; 0 means hang until the probe
	// times out
	proxyStatus map[int]int

	failCreate bool

	nextID    int64
	idToPort  map[int64]int
	created   []int
	probed    []int64
	deleted   []int64
	createdBy map[int64]string
}

func newFakeDashboard(proxyStatus map[int]int) *fakeDashboard {
	return &fakeDashboard{
		proxyStatus: proxyStatus,
		idToPort:    make(map[int64]int),
		createdBy:   make(map[int64]string),
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

	if f.failCreate {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"message":"permission denied"}`)
		return
	}

	var payload grafana.DatasourcePayload
	json.NewDecoder(r.Body).Decode(&payload)

	var port int
	fmt.Sscanf(payload.URL[strings.LastIndex(payload.URL, ":")+1:], "%d", &port)

	f.nextID++
	id := f.nextID
	f.idToPort[id] = port
	f.created = append(f.created, port)
	f.createdBy[id] = payload.Name

	fmt.Fprintf(w, `{"datasource":{"id":%d},"message":"Datasource added"}`, id)
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
	f.probed = append(f.probed, id)
	port := f.idToPort[id]
	status := f.proxyStatus[port]
	f.mu.Unlock()

	if status == 0 {
		time.Sleep(2 * time.Second)
		return
	}
	if status == http.StatusOK {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"status":"probe","port":%d}`, port)
}

func newTestScanner(t *testing.T, fake *fakeDashboard, probeTimeout time.Duration) (*Scanner, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	client, err := grafana.NewClient(grafana.Config{
		BaseURL:       server.URL,
		CreateTimeout: 2 * time.Second,
		ProbeTimeout:  probeTimeout,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	return New(client, Config{TargetHost: "10.0.0.5"}, nil), server
}

func TestClassify(t *testing.T) {
	tests := []struct {
		statusCode int
		want       Status
	}{
		{200, StatusOpen},
		{301, StatusOpen},
		{400, StatusOpen},
		{404, StatusOpen},
		{500, StatusOpen},
		{502, StatusClosed},
		{503, StatusClosed},
		{504, StatusOpen},
	}

	for _, tt := range tests {
		if got := Classify(tt.statusCode); got != tt.want {
			t.Errorf("Classify(%d) = %q, want %q", tt.statusCode, got, tt.want)
		}
	}
}

func TestRunClassifiesPorts(t *testing.T) {
	fake := newFakeDashboard(map[int]int{
		80:   200, // something answered through the proxy
		81:   502, // dashboard could not connect
		82:   503,
		8080: 404, // non-HTTP service confused the proxy, still reachable
	})
	s, _ := newTestScanner(t, fake, time.Second)

	results := s.Run(context.Background(), []int{80, 81, 82, 8080})

	want := map[int]Status{
		80:   StatusOpen,
		81:   StatusClosed,
		82:   StatusClosed,
		8080: StatusOpen,
	}
	if len(results) != len(want) {
		t.Fatalf("got %d results, want %d", len(results), len(want))
	}
	for _, r := range results {
		if r.Status != want[r.Port] {
			t.Errorf("port %d: status = %q, want %q", r.Port, r.Status, want[r.Port])
		}
	}

	// Open port 80 returned JSON and should carry it
	if results[0].JSON == nil {
		t.Error("expected JSON body on port 80 result")
	}
}

func TestRunTimeout(t *testing.T) {
	fake := newFakeDashboard(map[int]int{9999: 0})
	s, _ := newTestScanner(t, fake, 100*time.Millisecond)

	results := s.Run(context.Background(), []int{9999})

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Status != StatusTimeout {
		t.Errorf("status = %q, want %q", results[0].Status, StatusTimeout)
	}
	if results[0].StatusCode != 0 {
		t.Errorf("status code = %d, want 0", results[0].StatusCode)
	}
}

func TestCreateFailureShortCircuits(t *testing.T) {
	fake := newFakeDashboard(nil)
	fake.failCreate = true
	s, _ := newTestScanner(t, fake, time.Second)

	results := s.Run(context.Background(), []int{80})

	if len(results) != 1 || results[0].Status != StatusError {
		t.Fatalf("expected single error result, got %+v", results)
	}
	if len(fake.probed) != 0 {
		t.Error("probe must not run when create fails")
	}
	if len(fake.deleted) != 0 {
		t.Error("delete must not run when create fails")
	}
}

func TestCleanupAlwaysRuns(t *testing.T) {
	fake := newFakeDashboard(map[int]int{
		80: 200,
		81: 0, // probe times out
	})
	s, _ := newTestScanner(t, fake, 100*time.Millisecond)

	s.Run(context.Background(), []int{80, 81})

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.deleted) != 2 {
		t.Errorf("deleted %d datasources, want 2 (cleanup must run after failed probes too)", len(fake.deleted))
	}
}

func TestCleanupRunsAfterCancellation(t *testing.T) {
	fake := newFakeDashboard(map[int]int{80: 0}) // probe hangs
	s, _ := newTestScanner(t, fake, 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	results := s.Run(ctx, []int{80})

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Status != StatusError {
		t.Errorf("status = %q, want %q", results[0].Status, StatusError)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.deleted) != 1 {
		t.Errorf("deleted %d datasources, want 1 (cancellation must not leak the datasource)", len(fake.deleted))
	}
}

func TestSetDelayMidScan(t *testing.T) {
	fake := newFakeDashboard(map[int]int{80: 200, 81: 200, 82: 200})
	s, _ := newTestScanner(t, fake, time.Second)

	s.SetDelay(5 * time.Second)
	s.OnResult = func(current, total int, result Result) {
		if current == 1 {
			s.SetDelay(0)
		}
	}

	start := time.Now()
	results := s.Run(context.Background(), []int{80, 81, 82})

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("scan took %v, old 5s delay still in effect", elapsed)
	}
}

func TestDatasourceNamesUnique(t *testing.T) {
	fake := newFakeDashboard(map[int]int{80: 200, 81: 200})
	s, _ := newTestScanner(t, fake, time.Second)

	s.Run(context.Background(), []int{80, 81})

	fake.mu.Lock()
	defer fake.mu.Unlock()
	seen := make(map[string]bool)
	for id, name := range fake.createdBy {
		if seen[name] {
			t.Errorf("duplicate datasource name %q (id %d)", name, id)
		}
		seen[name] = true
		if !strings.HasPrefix(name, "dashprobe-") {
			t.Errorf("name %q lacks prefix", name)
		}
	}
}

func TestRunProgressCallback(t *testing.T) {
	fake := newFakeDashboard(map[int]int{80: 200, 81: 502, 82: 502})
	s, _ := newTestScanner(t, fake, time.Second)

	var calls []int
	s.OnResult = func(current, total int, result Result) {
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
		calls = append(calls, current)
	}

	s.Run(context.Background(), []int{80, 81, 82})

	if len(calls) != 3 || calls[0] != 1 || calls[2] != 3 {
		t.Errorf("progress calls = %v, want [1 2 3]", calls)
	}
}

func TestRunContextCancellation(t *testing.T) {
	fake := newFakeDashboard(map[int]int{80: 200, 81: 200, 82: 200})
	s, _ := newTestScanner(t, fake, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	s.OnResult = func(current, total int, result Result) {
		if current == 1 {
			cancel()
		}
	}

	results := s.Run(ctx, []int{80, 81, 82})

	if len(results) != 1 {
		t.Errorf("got %d results after cancellation, want 1", len(results))
	}
}

func TestProbeCallback(t *testing.T) {
	fake := newFakeDashboard(map[int]int{80: 200})
	s, _ := newTestScanner(t, fake, time.Second)

	if err := s.ProbeCallback(context.Background(), "abc123.oast.example", 80); err != nil {
		t.Fatalf("ProbeCallback: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.probed) != 1 {
		t.Errorf("probed %d times, want 1", len(fake.probed))
	}
	if len(fake.deleted) != 1 {
		t.Errorf("deleted %d times, want 1", len(fake.deleted))
	}
}
