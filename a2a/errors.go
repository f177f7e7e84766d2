package a2a

import "errors"

var (
	// ErrAlreadyInitialized is returned by Initialize on a manager that
	// already left the uninitialized state.
	ErrAlreadyInitialized = errors.New("manager is already initialized")

	// ErrNotReady is returned by lifecycle APIs (not the message path,
	// which answers with protocol errors) when the manager is not ready.
	ErrNotReady = errors.New("manager is not ready")
)
