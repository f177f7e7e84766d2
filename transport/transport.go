// Package transport connects the dispatch core to the outside world.
// A Transport accepts envelopes from some medium (a WebSocket listener, an
// in-process loopback) and feeds them to the Intake it was started with.
package transport

import (
	"context"

	"github.com/clduab11/gemini-flow-sub001/protocol"
)

// Intake is the upstream surface a transport delivers into. The a2a
// manager implements it.
type Intake interface {
	// AgentID is the local agent identity, used when building replies.
	AgentID() string

	// SendMessage processes a request envelope and blocks until its
	// terminal outcome.
	SendMessage(ctx context.Context, env *protocol.Envelope) (any, error)

	// SendNotification processes a fire-and-forget envelope. An error
	// means the notification was rejected before handler invocation.
	SendNotification(ctx context.Context, env *protocol.Envelope) error
}

// Transport is a message source bound to an Intake.
type Transport interface {
	Name() string

	// Start begins accepting envelopes and delivering them to intake.
	// It must not block.
	Start(ctx context.Context, intake Intake) error

	// Stop ceases intake and releases resources. Blocks until in-flight
	// deliveries finish or ctx expires.
	Stop(ctx context.Context) error
}
