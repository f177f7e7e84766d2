// Package metrics tracks dispatch outcomes for a single protocol manager:
// terminal counts, a bounded response-time window with percentiles, a
// per-kind failure histogram, and throughput over uptime. A Prometheus
// exporter publishes the same snapshot for external scrapers.
package metrics

import (
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/clduab11/gemini-flow-sub001/protocol"
)

const (
	// sampleWindowCap bounds the response-time window.
	sampleWindowCap = 1000
	// sampleDropBatch is how many of the oldest samples are shed in one
	// batch when the window overflows.
	sampleDropBatch = 100
)

// Snapshot is a point-in-time view of dispatch metrics.
type Snapshot struct {
	MessagesProcessed int64 `json:"messagesProcessed"`
	MessagesSucceeded int64 `json:"messagesSucceeded"`
	MessagesFailed    int64 `json:"messagesFailed"`
	MessagesRetried   int64 `json:"messagesRetried"`

	SuccessRate float64 `json:"successRate"`
	ErrorRate   float64 `json:"errorRate"`

	AvgResponseTimeMs float64 `json:"avgResponseTimeMs"`
	P95ResponseTimeMs float64 `json:"p95ResponseTimeMs"`
	P99ResponseTimeMs float64 `json:"p99ResponseTimeMs"`

	ThroughputPerSec float64 `json:"throughputPerSec"`
	UptimeSeconds    float64 `json:"uptimeSeconds"`
	InFlight         int64   `json:"inFlight"`

	FailuresByKind map[protocol.ErrorKind]int64 `json:"failuresByKind"`
}

// Collector accumulates dispatch metrics. Safe for concurrent use.
type Collector struct {
	mu sync.Mutex

	started   time.Time
	processed int64
	succeeded int64
	failed    int64
	retried   int64
	inFlight  int64
	samples   []float64
	failures  map[protocol.ErrorKind]int64
}

func NewCollector() *Collector {
	return &Collector{
		started:  time.Now(),
		samples:  make([]float64, 0, sampleWindowCap),
		failures: make(map[protocol.ErrorKind]int64),
	}
}

// Reset clears all counters and restarts the uptime clock.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.started = time.Now()
	c.processed = 0
	c.succeeded = 0
	c.failed = 0
	c.retried = 0
	c.inFlight = 0
	c.samples = c.samples[:0]
	clear(c.failures)
}

// RecordSuccess records a terminal success with its end-to-end latency.
func (c *Collector) RecordSuccess(elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.processed++
	c.succeeded++
	c.addSample(elapsed)
}

// RecordFailure records a terminal failure classified by kind.
func (c *Collector) RecordFailure(kind protocol.ErrorKind, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.processed++
	c.failed++
	c.failures[kind]++
	c.addSample(elapsed)
}

// RecordRetry records one re-enqueue of a failed message.
func (c *Collector) RecordRetry() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.retried++
}

// SetInFlight records the current active-set size.
func (c *Collector) SetInFlight(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inFlight = int64(n)
}

func (c *Collector) addSample(elapsed time.Duration) {
	if len(c.samples) >= sampleWindowCap {
		c.samples = append(c.samples[:0], c.samples[sampleDropBatch:]...)
	}
	c.samples = append(c.samples, float64(elapsed.Microseconds())/1000.0)
}

// Snapshot returns the current metrics view.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		MessagesProcessed: c.processed,
		MessagesSucceeded: c.succeeded,
		MessagesFailed:    c.failed,
		MessagesRetried:   c.retried,
		InFlight:          c.inFlight,
		UptimeSeconds:     time.Since(c.started).Seconds(),
		FailuresByKind:    maps.Clone(c.failures),
	}

	if c.processed > 0 {
		snap.SuccessRate = float64(c.succeeded) / float64(c.processed)
		snap.ErrorRate = float64(c.failed) / float64(c.processed)
	}
	if snap.UptimeSeconds > 0 {
		snap.ThroughputPerSec = float64(c.processed) / snap.UptimeSeconds
	}

	if len(c.samples) > 0 {
		var sum float64
		for _, s := range c.samples {
			sum += s
		}
		snap.AvgResponseTimeMs = sum / float64(len(c.samples))

		sorted := make([]float64, len(c.samples))
		copy(sorted, c.samples)
		sort.Float64s(sorted)

		snap.P95ResponseTimeMs = sorted[int(0.95*float64(len(sorted)))]
		snap.P99ResponseTimeMs = sorted[int(0.99*float64(len(sorted)))]
	}

	return snap
}
