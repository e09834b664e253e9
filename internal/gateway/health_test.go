package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-accessors/internal/host"
)

func TestHealthReporter(t *testing.T) {
	tests := []struct {
		name  string
		stats host.Stats
		want  HealthStatus
	}{
		{"all ready", host.Stats{Instances: 2, Ready: 2}, HealthHealthy},
		{"one degraded", host.Stats{Instances: 2, Ready: 1, Degraded: 1}, HealthDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewMockBroker()
			h := NewHealthReporter(HealthReporterConfig{
				Version:   "1.2.3",
				Topic:     "test/health/host",
				Publisher: b,
				Host:      &mockHost{stats: tt.stats},
			})
			if err := h.PublishNow(); err != nil {
				t.Fatalf("PublishNow: %v", err)
			}

			p := b.WaitFor(t, "test/health/host")
			if !p.Retained {
				t.Error("heartbeat should be retained")
			}
			var msg HealthMessage
			if err := json.Unmarshal(p.Payload, &msg); err != nil {
				t.Fatalf("decoding: %v", err)
			}
			if msg.Status != tt.want || msg.Version != "1.2.3" || msg.Instances != tt.stats.Instances {
				t.Errorf("heartbeat = %+v", msg)
			}
		})
	}
}

func TestHealthReporter_StopPublishesStopping(t *testing.T) {
	b := NewMockBroker()
	h := NewHealthReporter(HealthReporterConfig{Topic: "t/health", Publisher: b, Interval: time.Hour})
	h.Start(context.Background())
	h.Stop()
	h.Stop()

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.published) != 2 {
		t.Fatalf("published %d heartbeats, want 2", len(b.published))
	}
	var last HealthMessage
	if err := json.Unmarshal(b.published[1].Payload, &last); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if last.Status != HealthStopping {
		t.Errorf("last status = %s, want stopping", last.Status)
	}
}
