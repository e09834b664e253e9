package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-accessors/internal/host"
	"github.com/nerrad567/gray-logic-accessors/internal/session"
	"github.com/nerrad567/gray-logic-accessors/internal/suspend"
)

type point struct {
	measurement string
	tags        map[string]string
	fields      map[string]any
}

type mockWriter struct {
	mu     sync.Mutex
	points []point
}

func (w *mockWriter) WritePoint(m string, tags map[string]string, fields map[string]any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points = append(w.points, point{m, tags, fields})
}

func (w *mockWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.points)
}

type mockSource struct{}

func (mockSource) Instances() []host.Instance {
	return []host.Instance{
		{ID: "bulb", Kind: "hue", Status: host.StatusReady},
		{ID: "pir", Kind: "blink", Status: host.StatusDegraded},
		{ID: "gone", Kind: "hue"},
	}
}

func (mockSource) SessionStats() map[string]session.Stats {
	return map[string]session.Stats{
		"bulb": {State: session.Connected, Events: 7, Scheduler: suspend.Stats{Tasks: 9, Suspensions: 4}},
		"pir":  {State: session.Failed, Failures: 1},
	}
}

func TestReportNow(t *testing.T) {
	w := &mockWriter{}
	r := New(Config{HostID: "h1", Writer: w, Source: mockSource{}})

	if n := r.ReportNow(); n != 2 {
		t.Fatalf("ReportNow() = %d, want 2", n)
	}

	p := w.points[0]
	if p.measurement != Measurement {
		t.Errorf("measurement = %q", p.measurement)
	}
	if p.tags["accessor"] != "bulb" || p.tags["kind"] != "hue" || p.tags["host"] != "h1" {
		t.Errorf("tags = %v", p.tags)
	}
	if p.fields["events"] != int64(7) || p.fields["suspensions"] != int64(4) || p.fields["state"] != "connected" {
		t.Errorf("fields = %v", p.fields)
	}

	if got := w.points[1].fields["status"]; got != "degraded" {
		t.Errorf("pir status = %v, want degraded", got)
	}
}

func TestStartStop(t *testing.T) {
	w := &mockWriter{}
	r := New(Config{Interval: 10 * time.Millisecond, Writer: w, Source: mockSource{}})
	r.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for w.count() < 4 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if w.count() < 4 {
		t.Fatalf("only %d points written", w.count())
	}

	r.Stop()
	after := w.count()
	r.Stop()
	time.Sleep(30 * time.Millisecond)
	if w.count() != after {
		t.Errorf("points written after Stop: %d -> %d", after, w.count())
	}
}
