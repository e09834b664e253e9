package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-accessors/internal/host"
)

const defaultHealthInterval = 30 * time.Second

// HealthStatus is the host status carried in heartbeats.
type HealthStatus string

// Health statuses.
const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is one heartbeat.
type HealthMessage struct {
	Status    HealthStatus   `json:"status"`
	Reason    string         `json:"reason,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Version   string         `json:"version,omitempty"`
	UptimeSec int64          `json:"uptime_seconds"`
	Instances int            `json:"instances"`
	Ready     int            `json:"ready"`
	Degraded  int            `json:"degraded"`
	ByKind    map[string]int `json:"by_kind,omitempty"`
}

// HealthPublisher is satisfied by *mqtt.Client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthReporterConfig configures a HealthReporter.
type HealthReporterConfig struct {
	Version   string
	Interval  time.Duration
	Topic     string
	Publisher HealthPublisher
	Host      interface{ Stats() host.Stats }
	Logger    Logger
}

// HealthReporter publishes a retained heartbeat at a fixed interval.
type HealthReporter struct {
	cfg       HealthReporterConfig
	startTime time.Time

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewHealthReporter creates a reporter. Call Start to begin.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultHealthInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	return &HealthReporter{
		cfg:       cfg,
		startTime: time.Now(),
		done:      make(chan struct{}),
	}
}

// Start publishes immediately and then every interval until ctx ends or
// Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends the loop and publishes a final stopping status.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()
		_ = h.publish(HealthStopping, "shutting down") //nolint:errcheck // best effort on shutdown
	})
}

// PublishNow publishes the current status.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publish(status, reason)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.cfg.Logger.Warn("failed to publish initial health", "error", err)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.cfg.Logger.Warn("failed to publish health", "error", err)
			}
		}
	}
}

func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.cfg.Host != nil {
		if st := h.cfg.Host.Stats(); st.Degraded > 0 {
			return HealthDegraded, "accessor init failed"
		}
	}
	return HealthHealthy, ""
}

// Message builds the heartbeat for status.
func (h *HealthReporter) Message(status HealthStatus, reason string) HealthMessage {
	msg := HealthMessage{
		Status:    status,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
		Version:   h.cfg.Version,
		UptimeSec: int64(time.Since(h.startTime).Seconds()),
	}
	if h.cfg.Host != nil {
		st := h.cfg.Host.Stats()
		msg.Instances, msg.Ready, msg.Degraded, msg.ByKind = st.Instances, st.Ready, st.Degraded, st.ByKind
	}
	return msg
}

func (h *HealthReporter) publish(status HealthStatus, reason string) error {
	if h.cfg.Publisher == nil || h.cfg.Topic == "" {
		return nil
	}
	payload, err := json.Marshal(h.Message(status, reason))
	if err != nil {
		return err
	}
	return h.cfg.Publisher.Publish(h.cfg.Topic, payload, 1, true)
}
