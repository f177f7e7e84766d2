package dispatch

import "github.com/clduab11/gemini-flow-sub001/observability"

// Dispatch lifecycle events.
const (
	EventMessageDispatched observability.EventType = "dispatch.message.dispatched"
	EventMessageCompleted  observability.EventType = "dispatch.message.completed"
	EventMessageFailed     observability.EventType = "dispatch.message.failed"
	EventMessageRetry      observability.EventType = "dispatch.message.retry"
	EventMessageTimeout    observability.EventType = "dispatch.message.timeout"
)
