// Package protocol defines the agent-to-agent envelope wire types, the
// error taxonomy shared by every dispatch component, and structural
// validation of inbound envelopes.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Version is the protocol version literal every envelope must carry.
const Version = "2.0"

type MessageType string

const (
	MessageTypeRequest      MessageType = "request"
	MessageTypeResponse     MessageType = "response"
	MessageTypeNotification MessageType = "notification"
)

// Priority governs scheduling precedence. Higher values are served first.
// Normal is the zero value: an envelope arriving without a priority key
// never runs UnmarshalJSON, so the zero value must be the wire default.
// Low sits below zero, which also keeps an explicit "low" from being
// dropped by omitempty.
type Priority int

const (
	PriorityLow      Priority = -1
	PriorityNormal   Priority = 0
	PriorityHigh     Priority = 1
	PriorityCritical Priority = 2
)

var priorityNames = map[Priority]string{
	PriorityLow:      "low",
	PriorityNormal:   "normal",
	PriorityHigh:     "high",
	PriorityCritical: "critical",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

func (p Priority) MarshalJSON() ([]byte, error) {
	name, ok := priorityNames[p]
	if !ok {
		return nil, fmt.Errorf("unknown priority: %d", int(p))
	}
	return json.Marshal(name)
}

// UnmarshalJSON accepts the four tier names. Absent, null, and unknown
// values fall back to normal so a peer speaking a newer dialect cannot
// poison the queue with an unschedulable message.
func (p *Priority) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*p = PriorityNormal
		return nil
	}

	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}

	for prio, n := range priorityNames {
		if n == name {
			*p = prio
			return nil
		}
	}

	*p = PriorityNormal
	return nil
}

type BackoffStrategy string

const (
	BackoffFixed       BackoffStrategy = "fixed"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
)

// RetryPolicy controls whether and how a failed, retryable call is
// attempted again. MaxAttempts bounds total invocations, including the
// first one.
type RetryPolicy struct {
	MaxAttempts     int             `json:"maxAttempts"`
	BackoffStrategy BackoffStrategy `json:"backoffStrategy"`
	BaseDelayMs     int64           `json:"baseDelayMs"`
	MaxDelayMs      int64           `json:"maxDelayMs"`
	Jitter          bool            `json:"jitter"`
}

// CallContext carries per-message execution hints supplied by the sender.
type CallContext struct {
	TimeoutMs   int64        `json:"timeoutMs,omitempty"`
	RetryPolicy *RetryPolicy `json:"retryPolicy,omitempty"`
	MaxCost     float64      `json:"maxCost,omitempty"`
}

// Envelope is the structured request/notification unit exchanged between
// agents. Timestamp is milliseconds since the Unix epoch.
type Envelope struct {
	Version     string       `json:"version"`
	Method      string       `json:"method"`
	Params      any          `json:"params,omitempty"`
	ID          string       `json:"id,omitempty"`
	From        string       `json:"from"`
	To          string       `json:"to"`
	Timestamp   int64        `json:"timestamp"`
	MessageType MessageType  `json:"messageType"`
	Priority    Priority     `json:"priority,omitempty"`
	Context     *CallContext `json:"context,omitempty"`
	Signature   string       `json:"signature,omitempty"`
}

func (e *Envelope) IsRequest() bool {
	return e.MessageType == MessageTypeRequest
}

func (e *Envelope) IsNotification() bool {
	return e.MessageType == MessageTypeNotification
}

// EffectiveTimeout returns the sender-requested timeout, or fallback when
// the envelope carries none.
func (e *Envelope) EffectiveTimeout(fallback time.Duration) time.Duration {
	if e.Context != nil && e.Context.TimeoutMs > 0 {
		return time.Duration(e.Context.TimeoutMs) * time.Millisecond
	}
	return fallback
}

// EffectiveRetryPolicy returns the sender-supplied retry policy, or
// fallback when the envelope carries none. A nil result disables retries.
func (e *Envelope) EffectiveRetryPolicy(fallback *RetryPolicy) *RetryPolicy {
	if e.Context != nil && e.Context.RetryPolicy != nil {
		return e.Context.RetryPolicy
	}
	return fallback
}

func (e *Envelope) String() string {
	return fmt.Sprintf(
		"Envelope{ID: %s, Method: %s, From: %s, To: %s, Type: %s, Priority: %s}",
		e.ID, e.Method, e.From, e.To, e.MessageType, e.Priority,
	)
}

// Response is the terminal reply produced once per envelope id-chain.
// Exactly one of Result or Error is set.
type Response struct {
	Version     string      `json:"version"`
	Result      any         `json:"result,omitempty"`
	Error       *Error      `json:"error,omitempty"`
	ID          string      `json:"id,omitempty"`
	From        string      `json:"from"`
	To          string      `json:"to"`
	Timestamp   int64       `json:"timestamp"`
	MessageType MessageType `json:"messageType"`
}

func generateID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
