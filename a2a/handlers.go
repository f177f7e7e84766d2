package a2a

import (
	"context"
	"time"

	"github.com/clduab11/gemini-flow-sub001/protocol"
)

// Built-in methods every agent answers.
const (
	MethodPing      = "system.ping"
	MethodEcho      = "system.echo"
	MethodAgentInfo = "agent.info"
)

func (m *Manager) registerBuiltins() {
	// Registration of compile-time constants onto a fresh registry
	// cannot collide.
	_ = m.registry.Register(MethodPing, m.handlePing)
	_ = m.registry.Register(MethodEcho, m.handleEcho)
	_ = m.registry.Register(MethodAgentInfo, m.handleAgentInfo)
}

func (m *Manager) handlePing(ctx context.Context, env *protocol.Envelope) (any, error) {
	return map[string]any{
		"pong":      true,
		"timestamp": time.Now().UnixMilli(),
		"agentId":   m.cfg.AgentID,
	}, nil
}

func (m *Manager) handleEcho(ctx context.Context, env *protocol.Envelope) (any, error) {
	return env.Params, nil
}

func (m *Manager) handleAgentInfo(ctx context.Context, env *protocol.Envelope) (any, error) {
	return map[string]any{
		"agentId":       m.cfg.AgentID,
		"card":          m.cfg.AgentCard,
		"state":         m.State().String(),
		"uptimeSeconds": time.Since(m.startedAt).Seconds(),
		"methods":       m.registry.Methods(),
		"metrics":       m.collector.Snapshot(),
	}, nil
}
