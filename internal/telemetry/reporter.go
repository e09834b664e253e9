package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-accessors/internal/host"
	"github.com/nerrad567/gray-logic-accessors/internal/session"
)

// Measurement is the InfluxDB measurement name.
const Measurement = "accessor_session"

const defaultInterval = 60 * time.Second

// Writer is satisfied by *influxdb.Client.
type Writer interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]any)
}

// Source is satisfied by *host.Host.
type Source interface {
	Instances() []host.Instance
	SessionStats() map[string]session.Stats
}

// Logger is the logging interface used by the reporter.
type Logger interface {
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// Config configures a Reporter.
type Config struct {
	HostID   string
	Interval time.Duration
	Writer   Writer
	Source   Source
	Logger   Logger
}

// Reporter writes one point per accessor every interval.
type Reporter struct {
	cfg Config

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a reporter. Call Start to begin.
func New(cfg Config) *Reporter {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	return &Reporter{cfg: cfg, done: make(chan struct{})}
}

// Start reports every interval until ctx ends or Stop is called.
func (r *Reporter) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.done:
				return
			case <-ticker.C:
				r.ReportNow()
			}
		}
	}()
}

// Stop ends the loop and writes a final set of points.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
		r.ReportNow()
	})
}

// ReportNow writes the current points and returns how many were written.
func (r *Reporter) ReportNow() int {
	stats := r.cfg.Source.SessionStats()
	n := 0
	for _, inst := range r.cfg.Source.Instances() {
		st, ok := stats[inst.ID]
		if !ok {
			continue
		}
		tags := map[string]string{"accessor": inst.ID, "kind": inst.Kind}
		if r.cfg.HostID != "" {
			tags["host"] = r.cfg.HostID
		}
		r.cfg.Writer.WritePoint(Measurement, tags, Fields(inst, st))
		n++
	}
	r.cfg.Logger.Debug("session telemetry written", "points", n)
	return n
}

// Fields renders the point fields for one instance.
func Fields(inst host.Instance, st session.Stats) map[string]any {
	return map[string]any{
		"status":      string(inst.Status),
		"state":       string(st.State),
		"events":      int64(st.Events),
		"dropped":     int64(st.Dropped),
		"failures":    int64(st.Failures),
		"tasks":       int64(st.Scheduler.Tasks),
		"suspensions": int64(st.Scheduler.Suspensions),
		"timeouts":    int64(st.Scheduler.Timeouts),
	}
}
