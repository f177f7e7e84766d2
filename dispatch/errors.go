package dispatch

import "errors"

var (
	// ErrShuttingDown is returned by Submit while the dispatcher drains.
	ErrShuttingDown = errors.New("dispatcher is shutting down")

	// ErrStopped is returned by Submit after the dispatch loop has exited.
	ErrStopped = errors.New("dispatcher is stopped")
)
