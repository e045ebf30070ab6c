// Package core orchestrates the retrieval-and-fusion pipeline: memory
// lookup, web search triggering, prompt composition, and the agent bridge.
package core

import (
	"errors"
	"fmt"
)

// Predefined errors for common failure scenarios.
var (
	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrAgentNotConfigured indicates that no agent reference is available.
	ErrAgentNotConfigured = errors.New("agent not configured")

	// ErrStorageOperation indicates that a storage operation failed.
	ErrStorageOperation = errors.New("storage operation failed")
)

// SessionError wraps errors with operation context.
//
// Example:
//
//	err := &SessionError{
//	    Op:  "ProcessQuery",
//	    Err: ErrAgentNotConfigured,
//	}
//	// Error() returns: "sleepmem: ProcessQuery: agent not configured"
type SessionError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
func (e *SessionError) Error() string {
	return fmt.Sprintf("sleepmem: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *SessionError) Unwrap() error {
	return e.Err
}
