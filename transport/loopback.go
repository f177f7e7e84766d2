package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/clduab11/gemini-flow-sub001/protocol"
)

// ErrLoopbackNotStarted is returned by Deliver before Start or after Stop.
var ErrLoopbackNotStarted = errors.New("loopback transport is not started")

// LoopbackTransport delivers envelopes from in-process callers. It carries
// no wire format; embedders hand it envelopes directly via Deliver.
type LoopbackTransport struct {
	mu     sync.RWMutex
	intake Intake
}

func NewLoopback() *LoopbackTransport {
	return &LoopbackTransport{}
}

func (t *LoopbackTransport) Name() string {
	return "loopback"
}

func (t *LoopbackTransport) Start(ctx context.Context, intake Intake) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.intake = intake
	return nil
}

func (t *LoopbackTransport) Stop(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.intake = nil
	return nil
}

// Deliver routes env to the intake: requests block for their outcome,
// notifications return as soon as they are accepted.
func (t *LoopbackTransport) Deliver(ctx context.Context, env *protocol.Envelope) (any, error) {
	t.mu.RLock()
	intake := t.intake
	t.mu.RUnlock()

	if intake == nil {
		return nil, ErrLoopbackNotStarted
	}
	if env.IsNotification() {
		return nil, intake.SendNotification(ctx, env)
	}
	return intake.SendMessage(ctx, env)
}
