package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-accessors/internal/host"
	"github.com/nerrad567/gray-logic-accessors/internal/infrastructure/statemirror"
	"github.com/nerrad567/gray-logic-accessors/internal/port"
	"github.com/nerrad567/gray-logic-accessors/internal/session"
	"github.com/nerrad567/gray-logic-accessors/internal/suspend"
)

type mockSource struct{}

func (mockSource) Instances() []host.Instance {
	return []host.Instance{
		{ID: "bulb", Kind: "hue", Status: host.StatusReady},
		{ID: "robot", Kind: "scarab", Status: host.StatusReady},
		{ID: "pir", Kind: "blink", Status: host.StatusDegraded},
	}
}

func (mockSource) SessionStats() map[string]session.Stats {
	return map[string]session.Stats{
		"bulb":  {State: session.Connected},
		"robot": {State: session.Connected, Events: 12, Scheduler: suspend.Stats{Suspensions: 3}},
		"pir":   {State: session.Failed, Failures: 1},
	}
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return string(body)
}

func TestHandler(t *testing.T) {
	m := New(mockSource{})
	m.Deliver("robot", port.Event{Port: "X"})
	m.Deliver("robot", port.Event{Port: "X"})
	m.Deliver("robot", port.Event{Port: "Y"})

	body := scrape(t, m)

	want := []string{
		`accessorhost_instances{kind="blink",status="degraded"} 1`,
		`accessorhost_instances{kind="hue",status="ready"} 1`,
		`accessorhost_session_connected{accessor="pir",kind="blink"} 0`,
		`accessorhost_session_connected{accessor="robot",kind="scarab"} 1`,
		`accessorhost_session_events_total{accessor="robot",kind="scarab"} 12`,
		`accessorhost_session_failures_total{accessor="pir",kind="blink"} 1`,
		`accessorhost_scheduler_suspensions_total{accessor="robot",kind="scarab"} 3`,
		`accessorhost_port_events_total{accessor="robot",port="X"} 2`,
		`accessorhost_port_events_total{accessor="robot",port="Y"} 1`,
		`go_goroutines`,
	}
	for _, w := range want {
		if !strings.Contains(body, w) {
			t.Errorf("scrape missing %q", w)
		}
	}
}

type mockMirror struct{ stats statemirror.Stats }

func (m mockMirror) Stats() statemirror.Stats { return m.stats }

func TestAddMirror(t *testing.T) {
	m := New(mockSource{})
	if strings.Contains(scrape(t, m), "accessorhost_mirror_") {
		t.Fatal("mirror metrics exported before AddMirror")
	}

	m.AddMirror(mockMirror{stats: statemirror.Stats{Written: 7, Dropped: 2, Failed: 1}})
	body := scrape(t, m)

	for _, w := range []string{
		`accessorhost_mirror_written_total 7`,
		`accessorhost_mirror_dropped_total 2`,
		`accessorhost_mirror_failed_total 1`,
	} {
		if !strings.Contains(body, w) {
			t.Errorf("scrape missing %q", w)
		}
	}
}
