package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingSessionID is a client error: every message needs a session id.
	ErrMissingSessionID = errors.New("session_id is required")
	// ErrNotConfigured means no completion credential is configured.
	ErrNotConfigured = errors.New("completion API is not configured: set OPENAI_API_KEY")
)

// CompletionError wraps an upstream completion failure. The user message has
// already been appended to the session when this is returned.
type CompletionError struct {
	Err error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion failed: %v", e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}
