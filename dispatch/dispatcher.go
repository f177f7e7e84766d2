// Package dispatch implements the bounded-concurrency message dispatcher:
// a priority scheduler, an active set capped at a configured size, a
// retry/backoff engine for recoverable failures, and queued-message timeout
// enforcement.
//
// The pending queue and the active set are owned by a single loop
// goroutine. Every mutation — enqueue, completion, retry re-entry, timeout,
// shutdown — is posted to that loop as an operation, so no lock guards the
// structures and the dispatcher sleeps on its operations channel instead of
// polling. This also makes the exactly-once settlement of each completion
// handle trivial to enforce.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clduab11/gemini-flow-sub001/metrics"
	"github.com/clduab11/gemini-flow-sub001/observability"
	"github.com/clduab11/gemini-flow-sub001/protocol"
)

const (
	defaultMaxConcurrent = 10
	defaultTimeout       = 30 * time.Second
	opsBufferSize        = 128
)

// Handler produces a result for an envelope. See handler.Func.
type Handler func(ctx context.Context, env *protocol.Envelope) (any, error)

// Lookup resolves a method name to its handler.
type Lookup func(method string) (Handler, bool)

// Config defines dispatcher tuning parameters.
type Config struct {
	// MaxConcurrent caps the active set size.
	MaxConcurrent int
	// DefaultTimeout bounds how long a message may sit queued when its
	// envelope carries no timeout of its own.
	DefaultTimeout time.Duration
	// DefaultRetryPolicy applies to retryable failures when the envelope
	// carries no policy. Nil disables retries by default.
	DefaultRetryPolicy *protocol.RetryPolicy
	// Source is the local agent id stamped on errors this dispatcher
	// produces.
	Source string
}

// Dispatcher schedules and executes messages. Create with New; the
// dispatch loop runs until Shutdown.
type Dispatcher struct {
	cfg       Config
	lookup    Lookup
	collector *metrics.Collector
	observer  observability.Observer

	ops     chan func()
	stopped chan struct{}

	baseCtx context.Context
	cancel  context.CancelFunc

	// Loop-owned state. Only the loop goroutine touches these.
	queue     *priorityQueue
	active    map[string]*item
	waiting   map[string]*item
	seq       uint64
	draining  bool
	drainDone chan struct{}
	closing   bool
}

func New(ctx context.Context, cfg Config, lookup Lookup, collector *metrics.Collector, observer observability.Observer) *Dispatcher {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = defaultTimeout
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	if observer == nil {
		observer = observability.NoOpObserver{}
	}

	baseCtx, cancel := context.WithCancel(ctx)

	d := &Dispatcher{
		cfg:       cfg,
		lookup:    lookup,
		collector: collector,
		observer:  observer,
		ops:       make(chan func(), opsBufferSize),
		stopped:   make(chan struct{}),
		baseCtx:   baseCtx,
		cancel:    cancel,
		queue:     newPriorityQueue(),
		active:    make(map[string]*item),
		waiting:   make(map[string]*item),
	}

	go d.loop()

	return d
}

// Submit schedules env for dispatch and returns its completion handle.
// The effective timeout and retry policy come from the envelope context,
// falling back to the dispatcher defaults.
func (d *Dispatcher) Submit(env *protocol.Envelope) (*Pending, error) {
	it := &item{
		id:          uuid.Must(uuid.NewV7()).String(),
		env:         env,
		priority:    env.Priority,
		policy:      env.EffectiveRetryPolicy(d.cfg.DefaultRetryPolicy),
		timeout:     env.EffectiveTimeout(d.cfg.DefaultTimeout),
		submittedAt: time.Now(),
		done:        make(chan outcome, 1),
	}

	errCh := make(chan error, 1)
	accepted := d.post(func() {
		if d.draining {
			errCh <- ErrShuttingDown
			return
		}
		d.enqueue(it)
		errCh <- nil
	})
	if !accepted {
		return nil, ErrStopped
	}

	// The loop may stop before it reaches a queued operation; do not
	// wait on a result that will never come.
	select {
	case err := <-errCh:
		if err != nil {
			return nil, err
		}
	case <-d.stopped:
		return nil, ErrStopped
	}

	return &Pending{id: it.id, done: it.done}, nil
}

// Shutdown stops intake, waits up to grace for the active set to drain,
// then force-rejects everything still pending and stops the loop. Returns
// an error when active messages outlived the grace period.
func (d *Dispatcher) Shutdown(grace time.Duration) error {
	drainDone := make(chan struct{})
	accepted := d.post(func() {
		d.draining = true
		d.drainDone = drainDone
	})
	if !accepted {
		return ErrStopped
	}

	var drainErr error
	select {
	case <-drainDone:
	case <-time.After(grace):
		drainErr = fmt.Errorf("active messages did not drain within %v", grace)
	}

	flushed := make(chan struct{})
	accepted = d.post(func() {
		d.rejectPending()
		d.closing = true
		close(flushed)
	})
	if accepted {
		<-flushed
	}
	d.cancel()

	return drainErr
}

// post hands op to the loop goroutine. Returns false once the loop has
// stopped.
func (d *Dispatcher) post(op func()) bool {
	select {
	case d.ops <- op:
		return true
	case <-d.stopped:
		return false
	}
}

func (d *Dispatcher) loop() {
	for {
		op := <-d.ops
		op()
		d.pump()

		if d.closing {
			close(d.stopped)
			return
		}
	}
}

// pump moves queued work into the active set until the concurrency cap or
// the queue is exhausted. During drain it only watches for the active set
// to empty.
func (d *Dispatcher) pump() {
	if d.draining {
		if len(d.active) == 0 && d.drainDone != nil {
			close(d.drainDone)
			d.drainDone = nil
		}
		return
	}

	for len(d.active) < d.cfg.MaxConcurrent && d.queue.Len() > 0 {
		it := d.queue.Pop()
		if it.timer != nil {
			it.timer.Stop()
		}
		it.state = stateActive
		d.active[it.id] = it
		d.collector.SetInFlight(len(d.active))

		d.emit(EventMessageDispatched, observability.LevelDebug, map[string]any{
			"message_id": it.id,
			"method":     it.env.Method,
			"priority":   it.priority.String(),
			"attempt":    it.retryCount + 1,
		})

		go d.invoke(it)
	}
}

// invoke runs outside the loop goroutine; it reports back via post.
func (d *Dispatcher) invoke(it *item) {
	start := time.Now()
	result, err := d.callHandler(it.env)
	elapsed := time.Since(start)

	d.post(func() {
		d.complete(it, result, err, elapsed)
	})
}

func (d *Dispatcher) callHandler(env *protocol.Envelope) (result any, err error) {
	fn, ok := d.lookup(env.Method)
	if !ok {
		return nil, protocol.NewErrorf(
			protocol.CodeMethodNotFound,
			protocol.KindCapabilityNotFound,
			"no handler registered for method %s", env.Method,
		)
	}

	// Handlers must never escape as raw panics.
	defer func() {
		if r := recover(); r != nil {
			err = protocol.NewErrorf(protocol.CodeInternalError, protocol.KindInternal, "handler panic: %v", r)
		}
	}()

	return fn(d.baseCtx, env)
}

func (d *Dispatcher) complete(it *item, result any, err error, elapsed time.Duration) {
	delete(d.active, it.id)
	d.collector.SetInFlight(len(d.active))

	if it.state == stateSettled {
		return
	}

	if err == nil {
		d.collector.RecordSuccess(elapsed)
		d.settle(it, outcome{result: result, retryCount: it.retryCount})
		d.emit(EventMessageCompleted, observability.LevelDebug, map[string]any{
			"message_id": it.id,
			"method":     it.env.Method,
			"elapsed_ms": elapsed.Milliseconds(),
			"retries":    it.retryCount,
		})
		return
	}

	protoErr := protocol.WrapError(err, d.cfg.Source)

	if protoErr.IsRetryable() && it.policy != nil && it.retryCount+1 < it.policy.MaxAttempts {
		it.retryCount++
		it.state = stateWaitingRetry
		d.waiting[it.id] = it
		d.collector.RecordRetry()

		delayMs := BackoffDelay(it.policy, it.retryCount)
		d.emit(EventMessageRetry, observability.LevelWarn, map[string]any{
			"message_id": it.id,
			"method":     it.env.Method,
			"attempt":    it.retryCount,
			"delay_ms":   delayMs,
			"error":      protoErr.Message,
		})

		time.AfterFunc(time.Duration(delayMs)*time.Millisecond, func() {
			d.post(func() { d.requeue(it) })
		})
		return
	}

	d.collector.RecordFailure(protoErr.Kind, elapsed)
	d.settle(it, outcome{err: protoErr, retryCount: it.retryCount})
	d.emit(EventMessageFailed, observability.LevelWarn, map[string]any{
		"message_id": it.id,
		"method":     it.env.Method,
		"kind":       string(protoErr.Kind),
		"code":       protoErr.Code,
		"retries":    it.retryCount,
	})
}

// requeue re-enters a retry-delayed item with its original priority.
func (d *Dispatcher) requeue(it *item) {
	delete(d.waiting, it.id)

	if it.state == stateSettled {
		return
	}
	if d.draining {
		d.collector.RecordFailure(protocol.KindProtocolError, time.Since(it.submittedAt))
		d.settle(it, d.shutdownOutcome(it))
		return
	}

	d.enqueue(it)
}

// enqueue is loop-owned. It arms the queued-state timeout timer; the timer
// is disarmed when the item moves to the active set, so an in-flight
// handler is never preempted.
func (d *Dispatcher) enqueue(it *item) {
	it.state = stateQueued
	it.seq = d.seq
	d.seq++
	it.gen++
	it.enqueuedAt = time.Now()
	d.queue.Push(it)

	if it.timeout > 0 {
		gen := it.gen
		it.timer = time.AfterFunc(it.timeout, func() {
			d.post(func() { d.expire(it, gen) })
		})
	}
}

// expire rejects an item whose timeout fired while it was still queued.
// gen ties the timer to one enqueue; a stale timer from an earlier
// enqueue of the same item is ignored.
func (d *Dispatcher) expire(it *item, gen int) {
	if it.state != stateQueued || it.gen != gen {
		return
	}
	if !d.queue.Remove(it) {
		return
	}

	protoErr := &protocol.Error{
		Code:      protocol.CodeServerError,
		Message:   fmt.Sprintf("message timed out after %v while queued", it.timeout),
		Kind:      protocol.KindTimeout,
		Source:    d.cfg.Source,
		Retryable: true,
	}

	d.collector.RecordFailure(protocol.KindTimeout, time.Since(it.submittedAt))
	d.settle(it, outcome{err: protoErr, retryCount: it.retryCount})
	d.emit(EventMessageTimeout, observability.LevelWarn, map[string]any{
		"message_id": it.id,
		"method":     it.env.Method,
		"timeout_ms": it.timeout.Milliseconds(),
	})
}

// rejectPending terminally rejects everything still queued, waiting on a
// retry delay, or abandoned in the active set after the drain grace period.
func (d *Dispatcher) rejectPending() {
	for _, it := range d.queue.Drain() {
		d.collector.RecordFailure(protocol.KindProtocolError, time.Since(it.submittedAt))
		d.settle(it, d.shutdownOutcome(it))
	}

	for id, it := range d.waiting {
		delete(d.waiting, id)
		d.collector.RecordFailure(protocol.KindProtocolError, time.Since(it.submittedAt))
		d.settle(it, d.shutdownOutcome(it))
	}

	for id, it := range d.active {
		delete(d.active, id)
		d.collector.RecordFailure(protocol.KindProtocolError, time.Since(it.submittedAt))
		d.settle(it, d.shutdownOutcome(it))
	}

	d.collector.SetInFlight(0)
}

func (d *Dispatcher) shutdownOutcome(it *item) outcome {
	return outcome{
		err: &protocol.Error{
			Code:    protocol.CodeInvalidRequest,
			Message: "dispatcher is shutting down",
			Kind:    protocol.KindProtocolError,
			Source:  d.cfg.Source,
		},
		retryCount: it.retryCount,
	}
}

// settle fires the completion handle. Loop-owned; the state guard makes it
// idempotent, so each handle resolves exactly once.
func (d *Dispatcher) settle(it *item, out outcome) {
	if it.state == stateSettled {
		return
	}
	it.state = stateSettled
	if it.timer != nil {
		it.timer.Stop()
	}
	it.done <- out
}

func (d *Dispatcher) emit(eventType observability.EventType, level observability.Level, data map[string]any) {
	d.observer.OnEvent(d.baseCtx, observability.Event{
		Type:      eventType,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "dispatch",
		Data:      data,
	})
}
