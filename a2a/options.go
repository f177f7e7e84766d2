package a2a

import (
	"github.com/clduab11/gemini-flow-sub001/observability"
	"github.com/clduab11/gemini-flow-sub001/security"
)

// Option customizes a Manager at construction time.
type Option func(*Manager)

// WithObserver routes lifecycle and dispatch events to obs.
func WithObserver(obs observability.Observer) Option {
	return func(m *Manager) {
		if obs != nil {
			m.observer = obs
		}
	}
}

// WithVerifier installs a signature verifier on the security gate.
func WithVerifier(v security.Verifier) Option {
	return func(m *Manager) {
		m.verifier = v
	}
}
