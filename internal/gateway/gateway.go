package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-accessors/internal/audit"
	"github.com/nerrad567/gray-logic-accessors/internal/host"
	"github.com/nerrad567/gray-logic-accessors/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-accessors/internal/port"
)

const (
	defaultCommandTimeout = 30 * time.Second
	defaultStateQueue     = 256
)

// Broker is the subset of *mqtt.Client the gateway uses.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Host is the subset of *host.Host the gateway uses.
type Host interface {
	Write(ctx context.Context, id, name string, value any) error
	Read(ctx context.Context, id, name string) (any, error)
	Stats() host.Stats
}

// Auditor records port commands. *audit.Recorder satisfies it.
type Auditor interface {
	Record(e audit.Entry)
}

// Logger is the logging interface used by the gateway.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Gateway.
type Options struct {
	Broker         Broker
	Host           Host
	Topics         mqtt.Topics
	QoS            byte
	Logger         Logger
	Version        string
	HealthInterval time.Duration
	CommandTimeout time.Duration
	StateQueue     int
	Audit          Auditor // optional
}

// Stats counts gateway traffic.
type Stats struct {
	Commands      uint64 `json:"commands"`
	Requests      uint64 `json:"requests"`
	Failures      uint64 `json:"failures"`
	StatesSent    uint64 `json:"states_sent"`
	StatesDropped uint64 `json:"states_dropped"`
}

type stateUpdate struct {
	id string
	ev port.Event
}

// Gateway bridges MQTT and the accessor host.
type Gateway struct {
	broker     Broker
	host       Host
	topics     mqtt.Topics
	qos        byte
	logger     Logger
	cmdTimeout time.Duration
	health     *HealthReporter
	auditor    Auditor

	states chan stateUpdate

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	// spawnMu orders wg.Add against the cancel in Stop.
	spawnMu sync.Mutex

	commands      atomic.Uint64
	requests      atomic.Uint64
	failures      atomic.Uint64
	statesSent    atomic.Uint64
	statesDropped atomic.Uint64
}

// New creates a gateway. Call Start to subscribe.
func New(opts Options) (*Gateway, error) {
	if opts.Broker == nil {
		return nil, ErrMissingBroker
	}
	if opts.Host == nil {
		return nil, ErrMissingHost
	}
	if opts.Topics.Prefix == "" {
		opts.Topics = mqtt.NewTopics("")
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}
	if opts.StateQueue <= 0 {
		opts.StateQueue = defaultStateQueue
	}

	ctx, cancel := context.WithCancel(context.Background())
	g := &Gateway{
		broker:     opts.Broker,
		host:       opts.Host,
		topics:     opts.Topics,
		qos:        opts.QoS,
		logger:     opts.Logger,
		cmdTimeout: opts.CommandTimeout,
		auditor:    opts.Audit,
		states:     make(chan stateUpdate, opts.StateQueue),
		ctx:        ctx,
		cancel:     cancel,
	}
	g.health = NewHealthReporter(HealthReporterConfig{
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Topic:     opts.Topics.HostHealth(),
		Publisher: opts.Broker,
		Host:      opts.Host,
		Logger:    opts.Logger,
	})
	return g, nil
}

// Start subscribes to the set and get topics and starts publishing.
func (g *Gateway) Start(ctx context.Context) error {
	if err := g.broker.Subscribe(g.topics.AllPortSets(), g.qos, g.handleMessage); err != nil {
		return fmt.Errorf("subscribe to port commands: %w", err)
	}
	if err := g.broker.Subscribe(g.topics.AllPortGets(), g.qos, g.handleMessage); err != nil {
		return fmt.Errorf("subscribe to port requests: %w", err)
	}

	g.wg.Add(1)
	go g.publishLoop()
	g.health.Start(ctx)

	g.logger.Info("mqtt gateway started", "commands", g.topics.AllPortSets(), "requests", g.topics.AllPortGets())
	return nil
}

// Stop cancels in-flight commands, drains nothing further and publishes a
// final stopping heartbeat.
func (g *Gateway) Stop() {
	g.stopOnce.Do(func() {
		g.spawnMu.Lock()
		g.cancel()
		g.spawnMu.Unlock()
		g.health.Stop()
		g.wg.Wait()
		g.logger.Info("mqtt gateway stopped")
	})
}

// Stats returns traffic counters.
func (g *Gateway) Stats() Stats {
	return Stats{
		Commands:      g.commands.Load(),
		Requests:      g.requests.Load(),
		Failures:      g.failures.Load(),
		StatesSent:    g.statesSent.Load(),
		StatesDropped: g.statesDropped.Load(),
	}
}

// Deliver implements host.Sink. It queues the value for publishing and
// never blocks; values are dropped while the queue is full.
func (g *Gateway) Deliver(id string, ev port.Event) {
	if g.ctx.Err() != nil {
		return
	}
	select {
	case g.states <- stateUpdate{id: id, ev: ev}:
	default:
		if n := g.statesDropped.Add(1); n == 1 || n%100 == 0 {
			g.logger.Warn("state queue full, dropping port update", "accessor", id, "port", ev.Port, "dropped", n)
		}
	}
}

func (g *Gateway) publishLoop() {
	defer g.wg.Done()
	for {
		select {
		case <-g.ctx.Done():
			return
		case u := <-g.states:
			g.publishState(u)
		}
	}
}

func (g *Gateway) publishState(u stateUpdate) {
	msg := StateMessage{
		AccessorID: u.id,
		Port:       u.ev.Port,
		Value:      u.ev.Value,
		Timestamp:  u.ev.Time.UTC(),
	}
	if g.publishJSON(g.topics.PortState(u.id, u.ev.Port), msg, true) {
		g.statesSent.Add(1)
	}
}

// handleMessage routes one inbound message. Commands and requests run in
// their own goroutine so a slow device does not stall the subscription.
func (g *Gateway) handleMessage(topic string, payload []byte) error {
	id, portName, verb, ok := g.topics.ParsePort(topic)
	if !ok {
		return fmt.Errorf("%w: unexpected topic %q", errInvalidMessage, topic)
	}

	switch verb {
	case mqtt.VerbSet:
		g.commands.Add(1)
		g.spawn(func() { g.handleCommand(id, portName, payload) })
	case mqtt.VerbGet:
		g.requests.Add(1)
		g.spawn(func() { g.handleRequest(id, portName, payload) })
	default:
		return fmt.Errorf("%w: verb %q is outbound only", errInvalidMessage, verb)
	}
	return nil
}

func (g *Gateway) spawn(fn func()) {
	g.spawnMu.Lock()
	if g.ctx.Err() != nil {
		g.spawnMu.Unlock()
		return
	}
	g.wg.Add(1)
	g.spawnMu.Unlock()
	go func() {
		defer g.wg.Done()
		fn()
	}()
}

func (g *Gateway) handleCommand(id, portName string, payload []byte) {
	cmd, err := parseCommand(payload)
	if err != nil {
		g.failures.Add(1)
		g.publishJSON(g.topics.Ack(id), newAck(cmd, id, portName, err), false)
		return
	}

	g.logger.Debug("port command", "command_id", cmd.ID, "accessor", id, "port", portName)

	ctx, cancel := context.WithTimeout(g.ctx, g.cmdTimeout)
	defer cancel()

	err = g.host.Write(ctx, id, portName, cmd.Value)
	if err != nil {
		g.failures.Add(1)
		g.logger.Warn("port command failed", "command_id", cmd.ID, "accessor", id, "port", portName, "error", err)
	}
	g.recordAudit(cmd, id, portName, err)
	g.publishJSON(g.topics.Ack(id), newAck(cmd, id, portName, err), false)
}

func (g *Gateway) recordAudit(cmd CommandMessage, id, portName string, err error) {
	if g.auditor == nil {
		return
	}
	e := audit.Entry{
		Action:     audit.ActionWrite,
		AccessorID: id,
		Port:       portName,
		Source:     audit.SourceMQTT,
		Outcome:    audit.OutcomeOK,
		Details:    map[string]any{"command_id": cmd.ID, "value": cmd.Value},
	}
	if err != nil {
		e.Outcome = audit.OutcomeFailed
		e.Details["error"] = err.Error()
	}
	g.auditor.Record(e)
}

func (g *Gateway) handleRequest(id, portName string, payload []byte) {
	var req RequestMessage
	if len(bytes.TrimSpace(payload)) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			g.failures.Add(1)
			g.logger.Warn("unparseable port request", "accessor", id, "port", portName, "error", err)
			return
		}
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(g.ctx, g.cmdTimeout)
	defer cancel()

	resp := ResponseMessage{
		RequestID:  req.RequestID,
		AccessorID: id,
		Port:       portName,
	}
	v, err := g.host.Read(ctx, id, portName)
	resp.Timestamp = time.Now().UTC()
	if err != nil {
		g.failures.Add(1)
		resp.Error = errorBody(err)
	} else {
		resp.Success = true
		resp.Value = v
	}
	g.publishJSON(g.topics.Response(id, req.RequestID), resp, false)
}

// parseCommand accepts {"id":..,"value":..} or a bare JSON value.
func parseCommand(payload []byte) (CommandMessage, error) {
	var cmd CommandMessage
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		cmd.ID = uuid.NewString()
		return cmd, fmt.Errorf("%w: empty payload", errInvalidMessage)
	}

	if trimmed[0] == '{' {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			cmd.ID = uuid.NewString()
			return cmd, fmt.Errorf("%w: %v", errInvalidMessage, err)
		}
		if _, ok := envelope["value"]; ok {
			if err := json.Unmarshal(trimmed, &cmd); err != nil {
				cmd.ID = uuid.NewString()
				return cmd, fmt.Errorf("%w: %v", errInvalidMessage, err)
			}
			if cmd.ID == "" {
				cmd.ID = uuid.NewString()
			}
			return cmd, nil
		}
	}

	cmd.ID = uuid.NewString()
	if err := json.Unmarshal(trimmed, &cmd.Value); err != nil {
		return cmd, fmt.Errorf("%w: %v", errInvalidMessage, err)
	}
	return cmd, nil
}

func (g *Gateway) publishJSON(topic string, msg any, retained bool) bool {
	payload, err := json.Marshal(msg)
	if err != nil {
		g.logger.Error("marshalling mqtt message", "topic", topic, "error", err)
		return false
	}
	if err := g.broker.Publish(topic, payload, g.qos, retained); err != nil {
		g.logger.Warn("publishing mqtt message", "topic", topic, "error", err)
		return false
	}
	return true
}
