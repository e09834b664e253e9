package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics is the JSON summary served at /api/v1/metrics. The
// Prometheus exposition lives at /metrics.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	WebSocket     WSMetrics       `json:"websocket"`
	MQTT          MQTTMetrics     `json:"mqtt"`
	Accessors     AccessorMetrics `json:"accessors"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int    `json:"connected_clients"`
	EventsSent       uint64 `json:"events_sent"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Configured bool `json:"configured"`
	Connected  bool `json:"connected"`
}

// AccessorMetrics counts accessor instances.
type AccessorMetrics struct {
	Total    int            `json:"total"`
	Ready    int            `json:"ready"`
	Degraded int            `json:"degraded"`
	ByKind   map[string]int `json:"by_kind"`
}

// handleMetrics returns the system summary.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	st := s.host.Stats()
	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
			EventsSent:       s.hub.EventsSent(),
		},
		Accessors: AccessorMetrics{
			Total:    st.Instances,
			Ready:    st.Ready,
			Degraded: st.Degraded,
			ByKind:   st.ByKind,
		},
	}
	if s.mqtt != nil {
		metrics.MQTT = MQTTMetrics{Configured: true, Connected: s.mqtt.IsConnected()}
	}

	writeJSON(w, http.StatusOK, metrics)
}
