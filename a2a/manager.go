// Package a2a is the agent-to-agent protocol facade: one Manager owns the
// validation pipeline, the security gate, the handler registry, the
// dispatcher, and the configured transports, and walks them through a
// strict lifecycle.
package a2a

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/clduab11/gemini-flow-sub001/dispatch"
	"github.com/clduab11/gemini-flow-sub001/handler"
	"github.com/clduab11/gemini-flow-sub001/metrics"
	"github.com/clduab11/gemini-flow-sub001/observability"
	"github.com/clduab11/gemini-flow-sub001/protocol"
	"github.com/clduab11/gemini-flow-sub001/security"
	"github.com/clduab11/gemini-flow-sub001/transport"
)

// State is the manager lifecycle position.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateShuttingDown
	StateShutDown
)

var stateNames = map[State]string{
	StateUninitialized: "uninitialized",
	StateInitializing:  "initializing",
	StateReady:         "ready",
	StateShuttingDown:  "shutting_down",
	StateShutDown:      "shut_down",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Manager coordinates the full inbound message path. Create with New,
// then Initialize before sending; Shutdown is terminal.
type Manager struct {
	cfg      Config
	state    atomic.Int32
	observer observability.Observer
	verifier security.Verifier

	registry   *handler.Registry
	gate       *security.Gate
	dispatcher *dispatch.Dispatcher
	collector  *metrics.Collector
	transports []transport.Transport

	baseCtx   context.Context
	cancel    context.CancelFunc
	startedAt time.Time
}

// New builds a Manager with cfg merged over defaults. The manager starts
// uninitialized; no goroutines run until Initialize.
func New(cfg Config, opts ...Option) *Manager {
	merged := DefaultConfig()
	merged.Merge(&cfg)

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:       merged,
		observer:  observability.NoOpObserver{},
		registry:  handler.NewRegistry(),
		collector: metrics.NewCollector(),
		baseCtx:   ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize validates the configuration, starts the dispatcher and the
// configured transports, and registers the built-in handlers. It succeeds
// at most once.
func (m *Manager) Initialize(ctx context.Context) error {
	if !m.state.CompareAndSwap(int32(StateUninitialized), int32(StateInitializing)) {
		return ErrAlreadyInitialized
	}

	if err := m.cfg.Validate(); err != nil {
		m.state.Store(int32(StateUninitialized))
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var gateOpts []security.Option
	if m.verifier != nil {
		gateOpts = append(gateOpts, security.WithVerifier(m.verifier))
	}
	m.gate = security.NewGate(m.cfg.Security, gateOpts...)

	m.collector.Reset()
	m.dispatcher = dispatch.New(m.baseCtx, dispatch.Config{
		MaxConcurrent:      m.cfg.Dispatch.MaxConcurrentMessages,
		DefaultTimeout:     time.Duration(m.cfg.Dispatch.DefaultTimeoutMs) * time.Millisecond,
		DefaultRetryPolicy: m.cfg.Dispatch.DefaultRetryPolicy,
		Source:             m.cfg.AgentID,
	}, m.lookupHandler, m.collector, m.observer)

	m.registerBuiltins()

	for _, tc := range m.cfg.Transports {
		tr, err := m.buildTransport(tc)
		if err != nil {
			m.teardown(ctx)
			m.state.Store(int32(StateShutDown))
			return err
		}
		if err := tr.Start(m.baseCtx, m); err != nil {
			m.teardown(ctx)
			m.state.Store(int32(StateShutDown))
			return fmt.Errorf("start %s transport: %w", tr.Name(), err)
		}
		m.transports = append(m.transports, tr)
	}

	m.startedAt = time.Now()
	m.state.Store(int32(StateReady))
	m.emit(EventInitialized, observability.LevelInfo, map[string]any{
		"agent_id":   m.cfg.AgentID,
		"transports": len(m.transports),
	})

	return nil
}

// Shutdown stops the transports, drains the dispatcher within the
// configured grace period, and leaves the manager terminally shut down.
func (m *Manager) Shutdown(ctx context.Context) error {
	if !m.state.CompareAndSwap(int32(StateReady), int32(StateShuttingDown)) {
		return ErrNotReady
	}

	err := m.teardown(ctx)
	m.registry.Clear()

	m.cancel()
	m.state.Store(int32(StateShutDown))
	m.emit(EventShutdown, observability.LevelInfo, map[string]any{
		"agent_id": m.cfg.AgentID,
	})

	return err
}

// teardown stops transports first so no new envelopes arrive while the
// dispatcher drains.
func (m *Manager) teardown(ctx context.Context) error {
	var firstErr error
	for _, tr := range m.transports {
		if err := tr.Stop(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop %s transport: %w", tr.Name(), err)
		}
	}
	m.transports = nil

	if m.dispatcher != nil {
		grace := time.Duration(m.cfg.Dispatch.ShutdownGracePeriodMs) * time.Millisecond
		if err := m.dispatcher.Shutdown(grace); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// SendMessage runs env through validation, the security gate, and the
// dispatcher, then blocks until the terminal outcome or ctx cancellation.
// Failures surface as *protocol.Error.
func (m *Manager) SendMessage(ctx context.Context, env *protocol.Envelope) (any, error) {
	if protoErr := m.admit(env); protoErr != nil {
		return nil, protoErr
	}

	m.emit(EventMessageReceived, observability.LevelDebug, map[string]any{
		"method":   env.Method,
		"from":     env.From,
		"priority": env.Priority.String(),
	})

	pending, err := m.dispatcher.Submit(env)
	if err != nil {
		return nil, m.lifecycleError()
	}
	return pending.Wait(ctx)
}

// SendNotification runs env through the same admission pipeline, resolves
// the handler synchronously so an unknown method is reported to the
// caller, then invokes the handler without dispatch accounting.
func (m *Manager) SendNotification(ctx context.Context, env *protocol.Envelope) error {
	if protoErr := m.admit(env); protoErr != nil {
		return protoErr
	}

	fn, ok := m.registry.Get(env.Method)
	if !ok {
		return protocol.NewErrorf(
			protocol.CodeMethodNotFound,
			protocol.KindCapabilityNotFound,
			"no handler registered for method %s", env.Method,
		)
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				m.emit(EventNotificationFailed, observability.LevelError, map[string]any{
					"method": env.Method,
					"panic":  fmt.Sprint(r),
				})
			}
		}()
		if _, err := fn(m.baseCtx, env); err != nil {
			m.emit(EventNotificationFailed, observability.LevelWarn, map[string]any{
				"method": env.Method,
				"error":  err.Error(),
			})
		}
	}()

	return nil
}

// admit is the shared gate for both intake paths: lifecycle, structural
// validation, then security.
func (m *Manager) admit(env *protocol.Envelope) *protocol.Error {
	if m.State() != StateReady {
		return m.lifecycleError()
	}
	if protoErr := protocol.ValidateEnvelope(env); protoErr != nil {
		protoErr.Source = m.cfg.AgentID
		m.rejected(env, protoErr)
		return protoErr
	}
	if protoErr := m.gate.Check(env); protoErr != nil {
		protoErr.Source = m.cfg.AgentID
		m.rejected(env, protoErr)
		return protoErr
	}
	return nil
}

func (m *Manager) lifecycleError() *protocol.Error {
	return &protocol.Error{
		Code:    protocol.CodeInvalidRequest,
		Message: fmt.Sprintf("agent %s is %s, not accepting messages", m.cfg.AgentID, m.State()),
		Kind:    protocol.KindProtocolError,
		Source:  m.cfg.AgentID,
	}
}

func (m *Manager) rejected(env *protocol.Envelope, protoErr *protocol.Error) {
	m.emit(EventMessageRejected, observability.LevelWarn, map[string]any{
		"method": env.Method,
		"from":   env.From,
		"kind":   string(protoErr.Kind),
		"code":   protoErr.Code,
	})
}

// RegisterMessageHandler binds fn to method. Duplicate registrations are
// rejected; unregister first to replace.
func (m *Manager) RegisterMessageHandler(method string, fn handler.Func) error {
	return m.registry.Register(method, fn)
}

// UnregisterMessageHandler removes the handler bound to method.
func (m *Manager) UnregisterMessageHandler(method string) error {
	return m.registry.Unregister(method)
}

// Methods lists the registered handler methods.
func (m *Manager) Methods() []string {
	return m.registry.Methods()
}

// AgentID returns the local agent identity.
func (m *Manager) AgentID() string {
	return m.cfg.AgentID
}

// Card returns the configured agent card.
func (m *Manager) Card() *AgentCard {
	return m.cfg.AgentCard
}

// Transport returns the running transport with the given name, e.g. the
// loopback transport for in-process delivery.
func (m *Manager) Transport(name string) (transport.Transport, bool) {
	for _, tr := range m.transports {
		if tr.Name() == name {
			return tr, true
		}
	}
	return nil, false
}

// State reports the current lifecycle position.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Metrics returns a point-in-time snapshot of dispatch statistics.
func (m *Manager) Metrics() metrics.Snapshot {
	return m.collector.Snapshot()
}

// MetricsHandler serves the dispatch statistics in Prometheus exposition
// format.
func (m *Manager) MetricsHandler() http.Handler {
	return metrics.NewExporter(m.collector).Handler()
}

func (m *Manager) lookupHandler(method string) (dispatch.Handler, bool) {
	fn, ok := m.registry.Get(method)
	if !ok {
		return nil, false
	}
	return dispatch.Handler(fn), true
}

func (m *Manager) buildTransport(tc TransportConfig) (transport.Transport, error) {
	switch tc.Type {
	case "websocket":
		return transport.NewWebSocket(transport.WebSocketConfig{
			Listen: tc.Listen,
			Path:   tc.Path,
		}, m.observer), nil
	case "loopback":
		return transport.NewLoopback(), nil
	default:
		return nil, fmt.Errorf("unknown transport type %q", tc.Type)
	}
}

func (m *Manager) emit(eventType observability.EventType, level observability.Level, data map[string]any) {
	m.observer.OnEvent(m.baseCtx, observability.Event{
		Type:      eventType,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "a2a",
		Data:      data,
	})
}
