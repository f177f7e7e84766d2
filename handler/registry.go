// Package handler provides the method-name to handler function table the
// dispatcher resolves against.
package handler

import (
	"context"
	"fmt"
	"sync"

	"github.com/clduab11/gemini-flow-sub001/protocol"
)

// Func is the signature for message handlers. Handlers return the result
// payload for the response envelope, or an error. Returning a
// *protocol.Error controls the code, kind, and retryability surfaced to the
// caller; any other error is wrapped as an internal_error.
type Func func(ctx context.Context, env *protocol.Envelope) (any, error)

// Registry is a thread-safe method table. Registration never silently
// overwrites an existing handler.
type Registry struct {
	entries map[string]Func
	mu      sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]Func),
	}
}

// Register adds a handler for method.
// Returns ErrAlreadyRegistered if the method already has one.
func (r *Registry) Register(method string, fn Func) error {
	if method == "" {
		return ErrEmptyMethod
	}
	if fn == nil {
		return ErrNilHandler
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[method]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, method)
	}

	r.entries[method] = fn
	return nil
}

// Unregister removes the handler for method.
// Returns ErrNotFound if none is registered.
func (r *Registry) Unregister(method string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[method]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, method)
	}

	delete(r.entries, method)
	return nil
}

// Get retrieves the handler for method.
func (r *Registry) Get(method string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, exists := r.entries[method]
	return fn, exists
}

// Methods returns the names of all registered methods.
func (r *Registry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	methods := make([]string, 0, len(r.entries))
	for method := range r.entries {
		methods = append(methods, method)
	}
	return methods
}

// Clear removes every handler. Used during shutdown.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.entries)
}
