// Package store provides the process-wide conversation session registry.
//
// Sessions live in memory only. A restart clears every conversation.
package store

import (
	"time"

	"github.com/ashureev/pj-companion/internal/domain"
)

// SessionStore defines the operations the conversation pipeline needs from
// the session registry.
type SessionStore interface {
	// GetOrCreate returns a snapshot of the session, creating it with the
	// persona system message when absent.
	GetOrCreate(sessionID string) Snapshot

	// AppendUser appends a user message to the session.
	AppendUser(sessionID, text string)

	// AppendAssistant appends an assistant message to the session.
	AppendAssistant(sessionID, text string)

	// TrimmedView trims the session to its most recent turns, persists the
	// trimmed form and returns a copy of it.
	TrimmedView(sessionID string) []domain.Message

	// AppendUserAndTrim appends a user message and returns the trimmed view
	// under a single session lock.
	AppendUserAndTrim(sessionID, text string) []domain.Message

	// EvictExpired removes sessions idle for longer than the TTL.
	EvictExpired(now time.Time) int

	// Evict removes a single session. It reports whether one existed.
	Evict(sessionID string) bool

	// Exists reports whether a session is currently held.
	Exists(sessionID string) bool
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	ID       string
	Messages []domain.Message
	LastSeen time.Time
}

// Ensure Registry implements SessionStore.
var _ SessionStore = (*Registry)(nil)
