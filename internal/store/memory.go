package store

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/pj-companion/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	// DefaultMaxTurns bounds the stored history to this many user/assistant pairs.
	DefaultMaxTurns = 10
	// DefaultTTL is how long an idle session is kept.
	DefaultTTL = time.Hour
	// DefaultCleanupInterval is the minimum spacing between opportunistic sweeps.
	DefaultCleanupInterval = time.Minute
)

// session holds one conversation. messages[0] is always the persona.
// evicted is set under mu once the session has left the map; writers that
// find it set must reload.
type session struct {
	mu       sync.Mutex
	messages []domain.Message
	lastSeen time.Time
	evicted  bool
}

// Options configures a Registry.
type Options struct {
	Persona         string
	MaxTurns        int
	TTL             time.Duration
	CleanupInterval time.Duration
	// Now overrides the clock. Used by tests.
	Now func() time.Time
}

// Registry is the in-memory SessionStore. The map lock only guards lookup,
// creation and eviction; message mutation happens under the per-session lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session

	persona         string
	maxTurns        int
	ttl             time.Duration
	cleanupInterval time.Duration
	now             func() time.Time

	lastSweep atomic.Int64 // unix nanos of the last sweep
	evictions metric.Int64Counter

	// afterLoad runs between the map lookup and the session lock. Tests only.
	afterLoad func(sessionID string)
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = DefaultCleanupInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	r := &Registry{
		sessions:        make(map[string]*session),
		persona:         opts.Persona,
		maxTurns:        opts.MaxTurns,
		ttl:             opts.TTL,
		cleanupInterval: opts.CleanupInterval,
		now:             opts.Now,
	}
	r.lastSweep.Store(opts.Now().UnixNano())

	evictions, err := otel.Meter("pj/store").Int64Counter(
		"sessions.evicted",
		metric.WithDescription("Sessions removed by expiry sweeps"),
	)
	if err != nil {
		slog.Warn("failed to create eviction counter", "error", err)
	}
	r.evictions = evictions
	return r
}

// MaxTurns returns the configured turn cap.
func (r *Registry) MaxTurns() int {
	return r.maxTurns
}

// load returns the session for id, creating it when absent.
func (r *Registry) load(id string) *session {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok = r.sessions[id]; ok {
		return s
	}
	s = &session{
		messages: []domain.Message{domain.SystemMessage(r.persona)},
		lastSeen: r.now(),
	}
	r.sessions[id] = s
	slog.Debug("Session created", "session_id", id)
	return s
}

// lockLive returns the session for id with its lock held. A session evicted
// between lookup and locking is dropped and the lookup retried, so writes
// never land in a session that is no longer in the map.
func (r *Registry) lockLive(id string) *session {
	for {
		s := r.load(id)
		if r.afterLoad != nil {
			r.afterLoad(id)
		}
		s.mu.Lock()
		if !s.evicted {
			return s
		}
		s.mu.Unlock()
	}
}

// GetOrCreate returns a snapshot of the session and updates last_seen.
func (r *Registry) GetOrCreate(sessionID string) Snapshot {
	s := r.lockLive(sessionID)
	defer s.mu.Unlock()
	s.lastSeen = r.now()
	return Snapshot{
		ID:       sessionID,
		Messages: copyMessages(s.messages),
		LastSeen: s.lastSeen,
	}
}

// AppendUser appends a user message.
func (r *Registry) AppendUser(sessionID, text string) {
	r.append(sessionID, domain.UserMessage(text))
}

// AppendAssistant appends an assistant message.
func (r *Registry) AppendAssistant(sessionID, text string) {
	r.append(sessionID, domain.AssistantMessage(text))
}

func (r *Registry) append(id string, msg domain.Message) {
	s := r.lockLive(id)
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	s.lastSeen = r.now()
}

// TrimmedView trims the stored history to [system] + the last MaxTurns*2
// messages, persists it and returns a copy.
func (r *Registry) TrimmedView(sessionID string) []domain.Message {
	s := r.lockLive(sessionID)
	defer s.mu.Unlock()
	s.lastSeen = r.now()
	r.trimLocked(s)
	return copyMessages(s.messages)
}

// AppendUserAndTrim appends a user message and returns the trimmed view.
func (r *Registry) AppendUserAndTrim(sessionID, text string) []domain.Message {
	s := r.lockLive(sessionID)
	defer s.mu.Unlock()
	s.messages = append(s.messages, domain.UserMessage(text))
	s.lastSeen = r.now()
	r.trimLocked(s)
	return copyMessages(s.messages)
}

func (r *Registry) trimLocked(s *session) {
	limit := r.maxTurns * 2
	rest := len(s.messages) - 1
	if rest <= limit {
		return
	}
	trimmed := make([]domain.Message, 0, limit+1)
	trimmed = append(trimmed, s.messages[0])
	trimmed = append(trimmed, s.messages[len(s.messages)-limit:]...)
	s.messages = trimmed
}

// EvictExpired removes every session whose idle time exceeds the TTL.
func (r *Registry) EvictExpired(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		s.mu.Lock()
		expired := now.Sub(s.lastSeen) > r.ttl
		if expired {
			s.evicted = true
		}
		s.mu.Unlock()
		if expired {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// MaybeSweep runs EvictExpired when at least one cleanup interval has passed
// since the previous sweep. Concurrent callers race on a CAS so only one of
// them scans the map.
func (r *Registry) MaybeSweep(now time.Time) int {
	last := r.lastSweep.Load()
	if now.UnixNano()-last < int64(r.cleanupInterval) {
		return 0
	}
	if !r.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return 0
	}

	removed := r.EvictExpired(now)
	if removed > 0 {
		if r.evictions != nil {
			r.evictions.Add(context.Background(), int64(removed))
		}
		slog.Info("Expired sessions evicted", "count", removed, "ttl", r.ttl)
	}
	return removed
}

// Evict removes a single session.
func (r *Registry) Evict(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	delete(r.sessions, sessionID)
	s.mu.Lock()
	s.evicted = true
	s.mu.Unlock()
	return true
}

// Exists reports whether the session is held.
func (r *Registry) Exists(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[sessionID]
	return ok
}

// Len returns the number of held sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Clear drops every session. Called on shutdown.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		s.mu.Lock()
		s.evicted = true
		s.mu.Unlock()
	}
	r.sessions = make(map[string]*session)
}

func copyMessages(in []domain.Message) []domain.Message {
	out := make([]domain.Message, len(in))
	copy(out, in)
	return out
}
