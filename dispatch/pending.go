package dispatch

import (
	"context"
	"time"

	"github.com/clduab11/gemini-flow-sub001/protocol"
)

// outcome is the terminal resolution of a submitted message.
type outcome struct {
	result     any
	err        *protocol.Error
	retryCount int
}

// Pending is the completion handle a caller waits on. It is settled exactly
// once per submitted message, no matter how many retries occur.
type Pending struct {
	id   string
	done chan outcome
	last outcome
}

// ID returns the dispatcher-assigned message id.
func (p *Pending) ID() string {
	return p.id
}

// Wait blocks until the message reaches its terminal resolution or ctx is
// cancelled. On cancellation the message keeps running; its eventual
// outcome is discarded.
func (p *Pending) Wait(ctx context.Context) (any, error) {
	select {
	case out := <-p.done:
		p.last = out
		if out.err != nil {
			return nil, out.err
		}
		return out.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RetryCount reports how many times the message was re-enqueued before its
// terminal resolution. Valid after Wait returns.
func (p *Pending) RetryCount() int {
	return p.last.retryCount
}

type itemState int

const (
	stateQueued itemState = iota
	stateActive
	stateWaitingRetry
	stateSettled
)

// item is a queued unit of work. All fields are owned by the dispatcher
// loop goroutine after submission.
type item struct {
	id          string
	env         *protocol.Envelope
	priority    protocol.Priority
	seq         uint64
	heapIndex   int
	gen         int
	state       itemState
	enqueuedAt  time.Time
	submittedAt time.Time
	retryCount  int
	policy      *protocol.RetryPolicy
	timeout     time.Duration
	timer       *time.Timer
	done        chan outcome
}
