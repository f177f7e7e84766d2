package a2a

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/clduab11/gemini-flow-sub001/protocol"
	"github.com/clduab11/gemini-flow-sub001/security"
)

const (
	defaultMaxConcurrentMessages = 10
	defaultTimeoutMs             = 30_000
	defaultShutdownGraceMs       = 5_000
)

// AgentCard describes the local agent to its peers. Served by the built-in
// agent.info handler.
type AgentCard struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// DispatchConfig tunes the message dispatcher.
type DispatchConfig struct {
	MaxConcurrentMessages int                   `json:"maxConcurrentMessages,omitempty"`
	DefaultTimeoutMs      int64                 `json:"defaultTimeoutMs,omitempty"`
	DefaultRetryPolicy    *protocol.RetryPolicy `json:"defaultRetryPolicy,omitempty"`
	ShutdownGracePeriodMs int64                 `json:"shutdownGracePeriodMs,omitempty"`
}

// TransportConfig declares one transport binding.
type TransportConfig struct {
	// Type selects the transport: "websocket" or "loopback".
	Type string `json:"type"`
	// Listen is the bind address for network transports.
	Listen string `json:"listen,omitempty"`
	// Path is the endpoint path for HTTP-upgraded transports.
	Path string `json:"path,omitempty"`
}

// Config holds initialization parameters for the protocol manager and all
// of its subsystems.
type Config struct {
	AgentID          string            `json:"agentId"`
	AgentCard        *AgentCard        `json:"agentCard,omitempty"`
	Dispatch         DispatchConfig    `json:"dispatch"`
	Security         security.Config   `json:"security"`
	Transports       []TransportConfig `json:"transports,omitempty"`
	DefaultTransport string            `json:"defaultTransport,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults for all subsystems.
// AgentID and AgentCard have no default; callers must supply them.
func DefaultConfig() Config {
	return Config{
		Dispatch: DispatchConfig{
			MaxConcurrentMessages: defaultMaxConcurrentMessages,
			DefaultTimeoutMs:      defaultTimeoutMs,
			ShutdownGracePeriodMs: defaultShutdownGraceMs,
		},
		Security:         security.DefaultConfig(),
		Transports:       []TransportConfig{{Type: "loopback"}},
		DefaultTransport: "loopback",
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method.
func (c *Config) Merge(source *Config) {
	if source.AgentID != "" {
		c.AgentID = source.AgentID
	}
	if source.AgentCard != nil {
		c.AgentCard = source.AgentCard
	}

	if source.Dispatch.MaxConcurrentMessages > 0 {
		c.Dispatch.MaxConcurrentMessages = source.Dispatch.MaxConcurrentMessages
	}
	if source.Dispatch.DefaultTimeoutMs > 0 {
		c.Dispatch.DefaultTimeoutMs = source.Dispatch.DefaultTimeoutMs
	}
	if source.Dispatch.DefaultRetryPolicy != nil {
		c.Dispatch.DefaultRetryPolicy = source.Dispatch.DefaultRetryPolicy
	}
	if source.Dispatch.ShutdownGracePeriodMs > 0 {
		c.Dispatch.ShutdownGracePeriodMs = source.Dispatch.ShutdownGracePeriodMs
	}

	c.Security.Merge(&source.Security)

	if len(source.Transports) > 0 {
		c.Transports = source.Transports
	}
	if source.DefaultTransport != "" {
		c.DefaultTransport = source.DefaultTransport
	}
}

// Validate reports the first structural problem, if any.
func (c *Config) Validate() error {
	if c.AgentID == "" {
		return errors.New("agentId is required")
	}
	if c.AgentCard == nil {
		return errors.New("agentCard is required")
	}
	if len(c.Transports) == 0 {
		return errors.New("at least one transport is required")
	}
	if c.DefaultTransport != "" {
		found := false
		for _, tc := range c.Transports {
			if tc.Type == c.DefaultTransport {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("defaultTransport %q is not among the configured transports", c.DefaultTransport)
		}
	}
	return nil
}

// LoadConfig reads a JSON config file, merges it with defaults, and returns
// the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
