// Package observability delivers typed lifecycle and dispatch events to
// pluggable observers. It replaces a stringly-keyed event emitter with a
// statically typed subscription surface: subsystems declare EventType
// constants and emit Event values, observers decide what to do with them.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// Level is event severity. Values align with OpenTelemetry SeverityNumber
// ranges so collectors can forward them without translation.
type Level int

const (
	LevelDebug Level = 5  // OTel DEBUG band
	LevelInfo  Level = 9  // OTel INFO band
	LevelWarn  Level = 13 // OTel WARN band
	LevelError Level = 17 // OTel ERROR band
)

// SlogLevel maps the severity band to its slog equivalent.
func (l Level) SlogLevel() slog.Level {
	switch {
	case l <= 8:
		return slog.LevelDebug
	case l <= 12:
		return slog.LevelInfo
	case l <= 16:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// EventType names the kind of event. Each subsystem defines its own
// constants, e.g. "a2a.initialized" or "dispatch.message.retry".
type EventType string

// Event is a single observation emitted by a subsystem.
type Event struct {
	Type      EventType
	Level     Level
	Timestamp time.Time
	Source    string
	Data      map[string]any
}

// Observer receives events for logging, metrics, or external forwarding.
// Implementations must be safe for concurrent use.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}

// NoOpObserver discards every event.
type NoOpObserver struct{}

func (NoOpObserver) OnEvent(ctx context.Context, event Event) {}

// MultiObserver fans events out to several observers in order.
type MultiObserver struct {
	observers []Observer
}

func NewMultiObserver(observers ...Observer) *MultiObserver {
	filtered := make([]Observer, 0, len(observers))
	for _, obs := range observers {
		if obs != nil {
			filtered = append(filtered, obs)
		}
	}
	return &MultiObserver{observers: filtered}
}

func (m *MultiObserver) OnEvent(ctx context.Context, event Event) {
	for _, obs := range m.observers {
		obs.OnEvent(ctx, event)
	}
}
