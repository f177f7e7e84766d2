package handler

import "errors"

// Sentinel errors for the handler registry.
var (
	ErrNotFound          = errors.New("no handler registered for method")
	ErrAlreadyRegistered = errors.New("handler already registered for method")
	ErrEmptyMethod       = errors.New("method name is empty")
	ErrNilHandler        = errors.New("handler function is nil")
)
