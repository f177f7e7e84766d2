// Package security implements the inbound trust gate: trusted-agent
// membership, signature verification, and the anti-replay freshness window.
package security

import (
	"time"

	"github.com/clduab11/gemini-flow-sub001/protocol"
)

const defaultMaxMessageAgeMs = 300_000

// Config defines the security gate behavior. When Enabled is false the gate
// passes every envelope untouched.
type Config struct {
	Enabled         bool     `json:"enabled"`
	TrustedAgents   []string `json:"trusted_agents,omitempty"`
	MaxMessageAgeMs int64    `json:"max_message_age_ms,omitempty"`
}

// DefaultConfig returns a Config with the gate enabled, an open trust list,
// and a five minute replay window.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		MaxMessageAgeMs: defaultMaxMessageAgeMs,
	}
}

func (c *Config) Merge(source *Config) {
	c.Enabled = source.Enabled

	if len(source.TrustedAgents) > 0 {
		c.TrustedAgents = source.TrustedAgents
	}
	if source.MaxMessageAgeMs > 0 {
		c.MaxMessageAgeMs = source.MaxMessageAgeMs
	}
}

// Gate screens inbound envelopes before they reach the scheduler. Check
// order: trust list, signature, freshness. None of its rejections are
// locally retryable.
type Gate struct {
	enabled    bool
	trusted    map[string]struct{}
	maxMsgAge  time.Duration
	verifier   Verifier
	timeSource func() time.Time
}

// Option overrides a Gate collaborator, for tests or real deployments.
type Option func(*Gate)

// WithVerifier replaces the default marker verifier.
func WithVerifier(v Verifier) Option {
	return func(g *Gate) { g.verifier = v }
}

// WithTimeSource replaces the freshness clock.
func WithTimeSource(now func() time.Time) Option {
	return func(g *Gate) { g.timeSource = now }
}

func NewGate(cfg Config, opts ...Option) *Gate {
	maxAge := cfg.MaxMessageAgeMs
	if maxAge <= 0 {
		maxAge = defaultMaxMessageAgeMs
	}

	trusted := make(map[string]struct{}, len(cfg.TrustedAgents))
	for _, id := range cfg.TrustedAgents {
		trusted[id] = struct{}{}
	}

	g := &Gate{
		enabled:    cfg.Enabled,
		trusted:    trusted,
		maxMsgAge:  time.Duration(maxAge) * time.Millisecond,
		verifier:   MarkerVerifier{},
		timeSource: time.Now,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Check screens env and returns nil when it may proceed to scheduling.
func (g *Gate) Check(env *protocol.Envelope) *protocol.Error {
	if !g.enabled {
		return nil
	}

	if len(g.trusted) > 0 {
		if _, ok := g.trusted[env.From]; !ok {
			return protocol.NewErrorf(
				protocol.CodeAuthorizationFailed,
				protocol.KindAuthorization,
				"agent %s is not in the trusted agent list", env.From,
			)
		}
	}

	if env.Signature != "" && !g.verifier.Verify(env) {
		return protocol.NewError(
			protocol.CodeAuthenticationFailed,
			protocol.KindAuthentication,
			"message signature verification failed",
		)
	}

	age := g.timeSource().UnixMilli() - env.Timestamp
	if age > g.maxMsgAge.Milliseconds() {
		return protocol.NewErrorf(
			protocol.CodeAuthenticationFailed,
			protocol.KindAuthentication,
			"message is too old: %dms exceeds the %dms freshness window", age, g.maxMsgAge.Milliseconds(),
		)
	}

	return nil
}
