package a2a

import "github.com/clduab11/gemini-flow-sub001/observability"

// Manager lifecycle and intake events.
const (
	EventInitialized        observability.EventType = "a2a.initialized"
	EventShutdown           observability.EventType = "a2a.shutdown"
	EventMessageReceived    observability.EventType = "a2a.message.received"
	EventMessageRejected    observability.EventType = "a2a.message.rejected"
	EventNotificationFailed observability.EventType = "a2a.notification.failed"
)
