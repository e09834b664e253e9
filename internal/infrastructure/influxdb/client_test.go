package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-accessors/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-accessors/internal/infrastructure/influxdb"
)

// fakeInflux answers /ping and records line protocol posted to /api/v2/write.
type fakeInflux struct {
	mu     sync.Mutex
	lines  []string
	status int
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ping", "/health":
		w.WriteHeader(f.status)
	case "/api/v2/write":
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.lines = append(f.lines, strings.Split(strings.TrimSpace(string(body)), "\n")...)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeInflux) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func startFake(t *testing.T, status int) (*fakeInflux, config.InfluxDBConfig) {
	t.Helper()
	f := &fakeInflux{status: status}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, config.InfluxDBConfig{
		Enabled:       true,
		URL:           srv.URL,
		Token:         "test-token",
		Org:           "accessors",
		Bucket:        "telemetry",
		BatchSize:     10,
		FlushInterval: 1,
	}
}

func TestConnect_Disabled(t *testing.T) {
	_, err := influxdb.Connect(context.Background(), config.InfluxDBConfig{})
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unhealthy(t *testing.T) {
	_, cfg := startFake(t, http.StatusServiceUnavailable)
	_, err := influxdb.Connect(context.Background(), cfg)
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWritePoint(t *testing.T) {
	fake, cfg := startFake(t, http.StatusNoContent)

	client, err := influxdb.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Fatal("IsConnected() = false after Connect()")
	}

	client.WritePoint("accessor_session",
		map[string]string{"accessor": "robot", "kind": "scarab"},
		map[string]any{"events": int64(3)})
	client.WritePoint("accessor_session", nil, nil) // no fields, skipped
	client.Flush()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if lines := fake.received(); len(lines) > 0 {
			if len(lines) != 1 || !strings.HasPrefix(lines[0], "accessor_session,accessor=robot,kind=scarab events=3i") {
				t.Fatalf("lines = %q", lines)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no point received")
}

func TestClosedClient(t *testing.T) {
	_, cfg := startFake(t, http.StatusNoContent)

	client, err := influxdb.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	client.Close()

	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	client.WritePoint("m", nil, map[string]any{"v": 1})
	client.Flush()
}
