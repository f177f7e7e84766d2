package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/clduab11/gemini-flow-sub001/observability"
)

type recordingObserver struct {
	mu     sync.Mutex
	events []observability.Event
}

func (r *recordingObserver) OnEvent(_ context.Context, event observability.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func TestLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		level observability.Level
		want  slog.Level
	}{
		{observability.LevelDebug, slog.LevelDebug},
		{observability.LevelInfo, slog.LevelInfo},
		{observability.LevelWarn, slog.LevelWarn},
		{observability.LevelError, slog.LevelError},
	}

	for _, tt := range tests {
		if got := tt.level.SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%d) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestSlogObserver_OnEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	obs := observability.NewSlogObserver(logger)
	obs.OnEvent(context.Background(), observability.Event{
		Type:      "dispatch.message.completed",
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "dispatch",
		Data:      map[string]any{"method": "system.ping"},
	})

	out := buf.String()
	if !strings.Contains(out, "dispatch.message.completed") {
		t.Errorf("log output missing event type: %s", out)
	}
	if !strings.Contains(out, "method=system.ping") {
		t.Errorf("log output missing data attribute: %s", out)
	}
	if !strings.Contains(out, "source=dispatch") {
		t.Errorf("log output missing source attribute: %s", out)
	}
}

func TestMultiObserver_FanOut(t *testing.T) {
	first := &recordingObserver{}
	second := &recordingObserver{}

	multi := observability.NewMultiObserver(first, nil, second)
	multi.OnEvent(context.Background(), observability.Event{Type: "a2a.initialized"})

	if len(first.events) != 1 || len(second.events) != 1 {
		t.Errorf("fan-out delivered %d/%d events, want 1/1", len(first.events), len(second.events))
	}
}
