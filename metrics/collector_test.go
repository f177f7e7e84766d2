package metrics_test

import (
	"testing"
	"time"

	"github.com/clduab11/gemini-flow-sub001/metrics"
	"github.com/clduab11/gemini-flow-sub001/protocol"
)

func TestCollector_EmptySnapshot(t *testing.T) {
	c := metrics.NewCollector()
	snap := c.Snapshot()

	if snap.MessagesProcessed != 0 {
		t.Errorf("MessagesProcessed = %d, want 0", snap.MessagesProcessed)
	}
	if snap.SuccessRate != 0 || snap.ErrorRate != 0 {
		t.Errorf("rates = %v/%v, want 0/0 with no traffic", snap.SuccessRate, snap.ErrorRate)
	}
	if snap.AvgResponseTimeMs != 0 || snap.P95ResponseTimeMs != 0 || snap.P99ResponseTimeMs != 0 {
		t.Error("latency values should be 0 with an empty window")
	}
}

func TestCollector_Counts(t *testing.T) {
	c := metrics.NewCollector()

	c.RecordSuccess(10 * time.Millisecond)
	c.RecordSuccess(20 * time.Millisecond)
	c.RecordFailure(protocol.KindTimeout, 30*time.Millisecond)
	c.RecordFailure(protocol.KindTimeout, 30*time.Millisecond)
	c.RecordFailure(protocol.KindInternal, 5*time.Millisecond)
	c.RecordRetry()
	c.SetInFlight(3)

	snap := c.Snapshot()

	if snap.MessagesProcessed != 5 {
		t.Errorf("MessagesProcessed = %d, want 5", snap.MessagesProcessed)
	}
	if snap.MessagesSucceeded != 2 {
		t.Errorf("MessagesSucceeded = %d, want 2", snap.MessagesSucceeded)
	}
	if snap.MessagesFailed != 3 {
		t.Errorf("MessagesFailed = %d, want 3", snap.MessagesFailed)
	}
	if snap.MessagesRetried != 1 {
		t.Errorf("MessagesRetried = %d, want 1", snap.MessagesRetried)
	}
	if snap.InFlight != 3 {
		t.Errorf("InFlight = %d, want 3", snap.InFlight)
	}
	if snap.SuccessRate != 0.4 {
		t.Errorf("SuccessRate = %v, want 0.4", snap.SuccessRate)
	}
	if snap.ErrorRate != 0.6 {
		t.Errorf("ErrorRate = %v, want 0.6", snap.ErrorRate)
	}
	if snap.FailuresByKind[protocol.KindTimeout] != 2 {
		t.Errorf("FailuresByKind[timeout] = %d, want 2", snap.FailuresByKind[protocol.KindTimeout])
	}
	if snap.FailuresByKind[protocol.KindInternal] != 1 {
		t.Errorf("FailuresByKind[internal] = %d, want 1", snap.FailuresByKind[protocol.KindInternal])
	}
}

func TestCollector_Percentiles(t *testing.T) {
	c := metrics.NewCollector()

	// 100 samples: 1ms..100ms. floor(0.95*100)=95 -> 96ms, floor(0.99*100)=99 -> 100ms.
	for i := 1; i <= 100; i++ {
		c.RecordSuccess(time.Duration(i) * time.Millisecond)
	}

	snap := c.Snapshot()
	if snap.AvgResponseTimeMs != 50.5 {
		t.Errorf("AvgResponseTimeMs = %v, want 50.5", snap.AvgResponseTimeMs)
	}
	if snap.P95ResponseTimeMs != 96 {
		t.Errorf("P95ResponseTimeMs = %v, want 96", snap.P95ResponseTimeMs)
	}
	if snap.P99ResponseTimeMs != 100 {
		t.Errorf("P99ResponseTimeMs = %v, want 100", snap.P99ResponseTimeMs)
	}
}

func TestCollector_WindowOverflowDropsBatch(t *testing.T) {
	c := metrics.NewCollector()

	// Fill the window with 1ms samples, then overflow with one 1000ms
	// sample. The oldest 100 are shed in one batch, so the mean reflects
	// 900 old samples plus the new one.
	for i := 0; i < 1000; i++ {
		c.RecordSuccess(1 * time.Millisecond)
	}
	c.RecordSuccess(1000 * time.Millisecond)

	snap := c.Snapshot()
	want := (900*1.0 + 1000.0) / 901.0
	if diff := snap.AvgResponseTimeMs - want; diff > 0.001 || diff < -0.001 {
		t.Errorf("AvgResponseTimeMs = %v, want %v", snap.AvgResponseTimeMs, want)
	}
	if snap.MessagesProcessed != 1001 {
		t.Errorf("MessagesProcessed = %d, want 1001 (counts survive the window drop)", snap.MessagesProcessed)
	}
}

func TestCollector_Reset(t *testing.T) {
	c := metrics.NewCollector()

	c.RecordSuccess(time.Millisecond)
	c.RecordFailure(protocol.KindTimeout, time.Millisecond)
	c.Reset()

	snap := c.Snapshot()
	if snap.MessagesProcessed != 0 || snap.MessagesFailed != 0 {
		t.Error("Reset() should clear all counters")
	}
	if len(snap.FailuresByKind) != 0 {
		t.Error("Reset() should clear the failure histogram")
	}
}
