package dispatch

import (
	"math"
	"math/rand/v2"

	"github.com/clduab11/gemini-flow-sub001/protocol"
)

// BackoffDelay computes the delay in milliseconds before re-enqueueing
// attempt number attempt (1-based). Strategies: fixed = base, linear =
// base*n, exponential = base*2^(n-1). The result is capped at MaxDelayMs,
// jittered by a uniform ±10% when the policy asks for it, clamped to be
// non-negative, and floored to an integer.
func BackoffDelay(policy *protocol.RetryPolicy, attempt int) int64 {
	delay := float64(policy.BaseDelayMs)

	switch policy.BackoffStrategy {
	case protocol.BackoffLinear:
		delay *= float64(attempt)
	case protocol.BackoffExponential:
		delay *= math.Pow(2, float64(attempt-1))
	}

	if max := float64(policy.MaxDelayMs); delay > max {
		delay = max
	}

	if policy.Jitter {
		delay += delay * 0.1 * (rand.Float64()*2 - 1)
	}

	if delay < 0 {
		delay = 0
	}

	return int64(math.Floor(delay))
}
