// Package chat turns incoming messages into replies: time lookups are
// answered locally, everything else goes through the session history, optional
// web context and the completion API.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/pj-companion/internal/domain"
	"github.com/ashureev/pj-companion/internal/placetime"
	"github.com/ashureev/pj-companion/internal/search"
	"github.com/ashureev/pj-companion/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Completer produces a reply for an ordered message list.
type Completer interface {
	Complete(ctx context.Context, messages []domain.Message) (string, error)
}

// Searcher performs a best-effort web lookup.
type Searcher interface {
	Lookup(ctx context.Context, query string, limit int) search.Lookup
}

// Kind records which path produced a reply.
type Kind string

const (
	// KindEmpty is the fixed prompt for blank input.
	KindEmpty Kind = "empty"
	// KindTime is a locally resolved time lookup.
	KindTime Kind = "time"
	// KindTimeUnresolved is the help message for unknown places.
	KindTimeUnresolved Kind = "time_unresolved"
	// KindCompletion is a reply from the completion API.
	KindCompletion Kind = "completion"
)

// Result is the outcome of a single message.
type Result struct {
	Reply     string
	SessionID string
	Kind      Kind
	// Sources lists the web results attached to the completion request, if any.
	Sources []search.Result
}

// Orchestrator coordinates the reply pipeline.
type Orchestrator struct {
	sessions    store.SessionStore
	completer   Completer
	searcher    Searcher
	searchLimit int
	logger      *slog.Logger
	replies     metric.Int64Counter
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSearchLimit sets how many web results are attached to a request.
func WithSearchLimit(n int) Option {
	return func(o *Orchestrator) {
		o.searchLimit = search.ClampLimit(n)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates an Orchestrator. completer may be nil when no credential is
// configured; searcher may be nil to disable enrichment.
func New(sessions store.SessionStore, completer Completer, searcher Searcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sessions:    sessions,
		completer:   completer,
		searcher:    searcher,
		searchLimit: search.DefaultLimit,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	replies, err := otel.Meter("pj/chat").Int64Counter(
		"chat.replies",
		metric.WithDescription("Replies produced, by pipeline path"),
	)
	if err != nil {
		o.logger.Warn("failed to create replies counter", "error", err)
	}
	o.replies = replies
	return o
}

// Reply handles one incoming message for a session.
func (o *Orchestrator) Reply(ctx context.Context, sessionID, message string) (Result, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Result{}, ErrMissingSessionID
	}

	msg := strings.TrimSpace(message)
	if msg == "" {
		return o.done(ctx, Result{Reply: EmptyInputReply, SessionID: sessionID, Kind: KindEmpty}), nil
	}

	if place, ok := placetime.ExtractPlace(msg); ok {
		return o.done(ctx, o.timeReply(sessionID, place)), nil
	}

	if o.completer == nil {
		return Result{}, ErrNotConfigured
	}

	history := o.sessions.AppendUserAndTrim(sessionID, msg)
	outgoing, sources := o.enrich(ctx, sessionID, msg, history)

	reply, err := o.completer.Complete(ctx, outgoing)
	if err != nil {
		o.logger.Error("Completion failed",
			"session_id", sessionID,
			"messages", len(outgoing),
			"error", err,
		)
		return Result{}, &CompletionError{Err: err}
	}

	o.sessions.AppendAssistant(sessionID, reply)
	o.logger.Info("Chat reply",
		"session_id", sessionID,
		"history", len(history),
		"web_context", len(sources) > 0,
		"reply_length", len(reply),
	)
	return o.done(ctx, Result{Reply: reply, SessionID: sessionID, Kind: KindCompletion, Sources: sources}), nil
}

// enrich appends a trailing system message with web results when the message
// asks for a lookup. The block only lives in the returned slice.
func (o *Orchestrator) enrich(ctx context.Context, sessionID, msg string, history []domain.Message) ([]domain.Message, []search.Result) {
	if o.searcher == nil || !search.ShouldSearch(msg) {
		return history, nil
	}

	lookup := o.searcher.Lookup(ctx, msg, o.searchLimit)
	if !lookup.OK() {
		o.logger.Warn("Web search failed, continuing without context",
			"session_id", sessionID,
			"error", lookup.Err,
		)
		return history, nil
	}

	block := search.FormatContext(msg, lookup.Results)
	if block == "" {
		return history, nil
	}

	outgoing := make([]domain.Message, 0, len(history)+1)
	outgoing = append(outgoing, history...)
	outgoing = append(outgoing, domain.SystemMessage(block))
	return outgoing, lookup.Results
}

func (o *Orchestrator) timeReply(sessionID, place string) Result {
	title := cases.Title(language.English)
	if local, ok := placetime.ResolveTime(place); ok {
		return Result{
			Reply:     fmt.Sprintf("The current time in %s is %s.", title.String(place), local),
			SessionID: sessionID,
			Kind:      KindTime,
		}
	}

	known := placetime.KnownCities()
	names := make([]string, len(known))
	for i, city := range known {
		names[i] = title.String(city)
	}
	return Result{
		Reply: fmt.Sprintf("I don't have the time zone for %q yet. Try one of these cities: %s.",
			place, strings.Join(names, ", ")),
		SessionID: sessionID,
		Kind:      KindTimeUnresolved,
	}
}

func (o *Orchestrator) done(ctx context.Context, res Result) Result {
	if o.replies != nil {
		o.replies.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(res.Kind))))
	}
	return res
}
