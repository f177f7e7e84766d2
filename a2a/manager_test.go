package a2a_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clduab11/gemini-flow-sub001/a2a"
	"github.com/clduab11/gemini-flow-sub001/protocol"
	"github.com/clduab11/gemini-flow-sub001/security"
	"github.com/clduab11/gemini-flow-sub001/transport"
)

const localAgent = "local-agent"

func testConfig() a2a.Config {
	return a2a.Config{
		AgentID: localAgent,
		AgentCard: &a2a.AgentCard{
			Name:    "Local Agent",
			Version: "1.0.0",
		},
		Dispatch: a2a.DispatchConfig{
			ShutdownGracePeriodMs: 500,
		},
	}
}

func newReadyManager(t *testing.T, cfg a2a.Config, opts ...a2a.Option) *a2a.Manager {
	t.Helper()
	m := a2a.New(cfg, opts...)
	require.NoError(t, m.Initialize(context.Background()))
	t.Cleanup(func() {
		_ = m.Shutdown(context.Background())
	})
	return m
}

func send(t *testing.T, m *a2a.Manager, env *protocol.Envelope) (any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.SendMessage(ctx, env)
}

func TestManagerPing(t *testing.T) {
	m := newReadyManager(t, testConfig())

	result, err := send(t, m, protocol.NewRequest("peer", localAgent, a2a.MethodPing, nil).Build())
	require.NoError(t, err)

	pong, ok := result.(map[string]any)
	require.True(t, ok, "ping result should be a map, got %T", result)
	assert.Equal(t, true, pong["pong"])
	assert.Equal(t, localAgent, pong["agentId"])
	assert.NotZero(t, pong["timestamp"])
}

func TestManagerEcho(t *testing.T) {
	m := newReadyManager(t, testConfig())

	params := map[string]any{"text": "hello", "n": 3}
	result, err := send(t, m, protocol.NewRequest("peer", localAgent, a2a.MethodEcho, params).Build())
	require.NoError(t, err)
	assert.Equal(t, params, result)
}

func TestManagerAgentInfo(t *testing.T) {
	m := newReadyManager(t, testConfig())

	result, err := send(t, m, protocol.NewRequest("peer", localAgent, a2a.MethodAgentInfo, nil).Build())
	require.NoError(t, err)

	info, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, localAgent, info["agentId"])
	assert.Equal(t, "ready", info["state"])
	assert.Equal(t, m.Card(), info["card"])
	assert.Contains(t, info["methods"], a2a.MethodPing)
}

func TestManagerCustomHandler(t *testing.T) {
	m := newReadyManager(t, testConfig())

	require.NoError(t, m.RegisterMessageHandler("math.add", func(ctx context.Context, env *protocol.Envelope) (any, error) {
		params := env.Params.(map[string]any)
		return params["a"].(float64) + params["b"].(float64), nil
	}))

	env := protocol.NewRequest("peer", localAgent, "math.add", map[string]any{"a": 2.0, "b": 3.0}).Build()
	result, err := send(t, m, env)
	require.NoError(t, err)
	assert.Equal(t, 5.0, result)

	require.NoError(t, m.UnregisterMessageHandler("math.add"))
	_, err = send(t, m, protocol.NewRequest("peer", localAgent, "math.add", nil).Build())
	require.Error(t, err)

	var protoErr *protocol.Error
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, protocol.CodeMethodNotFound, protoErr.Code)
}

func TestManagerMethodNotFound(t *testing.T) {
	m := newReadyManager(t, testConfig())

	_, err := send(t, m, protocol.NewRequest("peer", localAgent, "no.such.capability", nil).Build())
	require.Error(t, err)

	var protoErr *protocol.Error
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, protocol.CodeMethodNotFound, protoErr.Code)
	assert.Equal(t, protocol.KindCapabilityNotFound, protoErr.Kind)
}

func TestManagerRejectsUntrustedSender(t *testing.T) {
	var invocations atomic.Int32

	cfg := testConfig()
	cfg.Security = security.Config{
		Enabled:       true,
		TrustedAgents: []string{"friend"},
	}
	m := newReadyManager(t, cfg)

	require.NoError(t, m.RegisterMessageHandler("guarded.op", func(ctx context.Context, env *protocol.Envelope) (any, error) {
		invocations.Add(1)
		return nil, nil
	}))

	_, err := send(t, m, protocol.NewRequest("stranger", localAgent, "guarded.op", nil).Build())
	require.Error(t, err)

	var protoErr *protocol.Error
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, protocol.CodeAuthorizationFailed, protoErr.Code)
	assert.Equal(t, protocol.KindAuthorization, protoErr.Kind)
	assert.Equal(t, localAgent, protoErr.Source)
	assert.Equal(t, int32(0), invocations.Load(), "a rejected message must never reach its handler")

	_, err = send(t, m, protocol.NewRequest("friend", localAgent, "guarded.op", nil).Build())
	require.NoError(t, err)
	assert.Equal(t, int32(1), invocations.Load())
}

func TestManagerRejectsMalformedEnvelope(t *testing.T) {
	m := newReadyManager(t, testConfig())

	env := protocol.NewRequest("peer", localAgent, a2a.MethodPing, nil).Build()
	env.Method = ""

	_, err := send(t, m, env)
	require.Error(t, err)

	var protoErr *protocol.Error
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, protocol.CodeInvalidRequest, protoErr.Code)
	assert.Equal(t, protocol.KindProtocolError, protoErr.Kind)
}

func TestManagerLifecycle(t *testing.T) {
	m := a2a.New(testConfig())
	assert.Equal(t, a2a.StateUninitialized, m.State())

	_, err := m.SendMessage(context.Background(), protocol.NewRequest("peer", localAgent, a2a.MethodPing, nil).Build())
	require.Error(t, err, "messages before Initialize must be rejected")

	var protoErr *protocol.Error
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, protocol.CodeInvalidRequest, protoErr.Code)

	require.NoError(t, m.Initialize(context.Background()))
	assert.Equal(t, a2a.StateReady, m.State())
	assert.ErrorIs(t, m.Initialize(context.Background()), a2a.ErrAlreadyInitialized)

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, a2a.StateShutDown, m.State())
	assert.Empty(t, m.Methods(), "shutdown must clear the handler registry")
	assert.ErrorIs(t, m.Shutdown(context.Background()), a2a.ErrNotReady)

	_, err = m.SendMessage(context.Background(), protocol.NewRequest("peer", localAgent, a2a.MethodPing, nil).Build())
	require.Error(t, err, "messages after Shutdown must be rejected")
}

func TestManagerInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *a2a.Config)
	}{
		{"missing agent id", func(cfg *a2a.Config) { cfg.AgentID = "" }},
		{"missing agent card", func(cfg *a2a.Config) { cfg.AgentCard = nil }},
		{"default transport not configured", func(cfg *a2a.Config) { cfg.DefaultTransport = "websocket" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			m := a2a.New(cfg)
			require.Error(t, m.Initialize(context.Background()))
		})
	}
}

func TestManagerUnknownTransportType(t *testing.T) {
	cfg := testConfig()
	cfg.Transports = []a2a.TransportConfig{{Type: "carrier-pigeon"}}
	cfg.DefaultTransport = "carrier-pigeon"

	m := a2a.New(cfg)
	err := m.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
	assert.Equal(t, a2a.StateShutDown, m.State())
}

func TestManagerNotification(t *testing.T) {
	m := newReadyManager(t, testConfig())

	received := make(chan string, 1)
	require.NoError(t, m.RegisterMessageHandler("status.update", func(ctx context.Context, env *protocol.Envelope) (any, error) {
		received <- env.From
		return nil, nil
	}))

	env := protocol.NewNotification("peer", localAgent, "status.update", map[string]any{"state": "busy"}).Build()
	require.NoError(t, m.SendNotification(context.Background(), env))

	select {
	case from := <-received:
		assert.Equal(t, "peer", from)
	case <-time.After(2 * time.Second):
		t.Fatal("notification handler was not invoked")
	}

	err := m.SendNotification(context.Background(), protocol.NewNotification("peer", localAgent, "no.such.method", nil).Build())
	require.Error(t, err, "unknown notification methods are reported synchronously")

	var protoErr *protocol.Error
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, protocol.CodeMethodNotFound, protoErr.Code)
}

func TestManagerMetrics(t *testing.T) {
	m := newReadyManager(t, testConfig())

	require.NoError(t, m.RegisterMessageHandler("always.fails", func(ctx context.Context, env *protocol.Envelope) (any, error) {
		return nil, protocol.NewError(protocol.CodeInvalidRequest, protocol.KindProtocolError, "bad input")
	}))

	for i := 0; i < 3; i++ {
		_, err := send(t, m, protocol.NewRequest("peer", localAgent, a2a.MethodPing, nil).Build())
		require.NoError(t, err)
	}
	_, err := send(t, m, protocol.NewRequest("peer", localAgent, "always.fails", nil).Build())
	require.Error(t, err)

	snap := m.Metrics()
	assert.Equal(t, int64(4), snap.MessagesProcessed)
	assert.Equal(t, int64(3), snap.MessagesSucceeded)
	assert.Equal(t, int64(1), snap.MessagesFailed)
	assert.Equal(t, int64(1), snap.FailuresByKind[protocol.KindProtocolError])
	assert.InDelta(t, 0.75, snap.SuccessRate, 1e-9)
}

func TestManagerLoopbackDeliver(t *testing.T) {
	m := newReadyManager(t, testConfig())

	tr, ok := m.Transport("loopback")
	require.True(t, ok)
	loopback, ok := tr.(*transport.LoopbackTransport)
	require.True(t, ok)

	result, err := loopback.Deliver(context.Background(), protocol.NewRequest("peer", localAgent, a2a.MethodPing, nil).Build())
	require.NoError(t, err)

	pong, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, pong["pong"])
}
