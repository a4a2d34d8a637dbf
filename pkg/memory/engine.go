// Package memory implements the conversation memory engine.
//
// The engine keeps a bounded buffer of recent messages per conversation,
// compresses aged-out chunks into scored summaries, indexes messages and
// summaries for semantic retrieval and assembles token-budgeted context for
// downstream generation calls. All engine state lives in memory; see
// Snapshot and Restore for moving it elsewhere.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/recall/pkg/embeddings"
	"github.com/papercomputeco/recall/pkg/eventstream"
	"github.com/papercomputeco/recall/pkg/eventstream/nop"
	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/vector"
	"github.com/papercomputeco/recall/pkg/vector/chromem"
)

// convKey scopes a conversation to its project. The same conversation id
// under two projects names two conversations.
type convKey struct {
	projectID      string
	conversationID string
}

// Engine owns all conversation memory state. It is safe for concurrent use.
type Engine struct {
	cfg Config

	embedder     embeddings.Embedder
	embedEnabled bool
	messageIndex vector.Driver
	summaryIndex vector.Driver
	summarizer   Summarizer
	publisher    eventstream.Publisher
	responses    *responseCache
	logger       *slog.Logger
	now          func() time.Time
	newID        func() string

	// mu guards the entity maps below. Provider calls never happen under it.
	mu              sync.RWMutex
	messages        map[string]*Message
	summaries       map[string]*ConversationSummary
	buffers         map[convKey][]*Message
	convSummaries   map[convKey][]string
	projectMessages map[string][]string

	convLocks *keyLock[convKey]

	// generation changes on every mutation and keys the response cache.
	generation atomic.Uint64

	// cleanups counts completed Cleanup and Restore calls, so in-flight
	// summarizations can notice evictions.
	cleanups atomic.Uint64

	providerFailures atomic.Uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithEmbedder sets the embedding provider. Without one, or with an
// unavailable one, the engine runs in recency-only mode.
func WithEmbedder(e embeddings.Embedder) Option {
	return func(en *Engine) { en.embedder = e }
}

// WithIndices sets the message and summary indices. By default two
// in-process chromem collections are used.
func WithIndices(messages, summaries vector.Driver) Option {
	return func(en *Engine) {
		en.messageIndex = messages
		en.summaryIndex = summaries
	}
}

// WithSummarizer replaces the extractive summarizer.
func WithSummarizer(s Summarizer) Option {
	return func(en *Engine) { en.summarizer = s }
}

// WithPublisher emits memory events to p.
func WithPublisher(p eventstream.Publisher) Option {
	return func(en *Engine) { en.publisher = p }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(en *Engine) { en.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(en *Engine) { en.now = now }
}

// WithIDGenerator overrides uuid based ids.
func WithIDGenerator(f func() string) Option {
	return func(en *Engine) { en.newID = f }
}

// New constructs an engine. The engine takes ownership of the embedder,
// indices and publisher and releases them in Close.
func New(cfg Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:             cfg.withDefaults(),
		now:             time.Now,
		newID:           uuid.NewString,
		messages:        make(map[string]*Message),
		summaries:       make(map[string]*ConversationSummary),
		buffers:         make(map[convKey][]*Message),
		convSummaries:   make(map[convKey][]string),
		projectMessages: make(map[string][]string),
		convLocks:       newKeyLock[convKey](),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logger.OrNop(e.logger)

	if e.summarizer == nil {
		e.summarizer = NewExtractiveSummarizer(e.cfg)
	}
	if e.publisher == nil {
		e.publisher = nop.NewPublisher()
	}

	if (e.messageIndex == nil) != (e.summaryIndex == nil) {
		return nil, fmt.Errorf("%w: message and summary indices must be set together", ErrInvalidInput)
	}
	if e.messageIndex == nil {
		var err error
		if e.messageIndex, err = chromem.NewDriver(chromem.Config{CollectionName: "messages"}, e.logger); err != nil {
			return nil, fmt.Errorf("creating message index: %w", err)
		}
		if e.summaryIndex, err = chromem.NewDriver(chromem.Config{CollectionName: "summaries"}, e.logger); err != nil {
			return nil, fmt.Errorf("creating summary index: %w", err)
		}
	}

	responses, err := newResponseCache(e.cfg.ResponseTTL)
	if err != nil {
		return nil, err
	}
	e.responses = responses

	e.embedEnabled = embeddings.IsAvailable(e.embedder)
	if !e.embedEnabled {
		reason := "no embedder configured"
		if u, ok := e.embedder.(embeddings.Unavailable); ok {
			reason = u.Reason
		}
		e.logger.Warn("embeddings unavailable, running recency-only", "reason", reason)
	}

	return e, nil
}

// Config returns the effective tuning.
func (e *Engine) Config() Config {
	return e.cfg
}

// EmbeddingsEnabled reports whether semantic features are active.
func (e *Engine) EmbeddingsEnabled() bool {
	return e.embedEnabled
}

// Close releases the indices, the publisher and the embedder.
func (e *Engine) Close() error {
	e.responses.close()

	var errs []error
	if err := e.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing publisher: %w", err))
	}
	if err := e.messageIndex.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing message index: %w", err))
	}
	if err := e.summaryIndex.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing summary index: %w", err))
	}
	if e.embedder != nil {
		if err := e.embedder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing embedder: %w", err))
		}
	}
	return errors.Join(errs...)
}

// embed obtains an embedding, translating every failure into
// ErrProviderUnavailable and counting it.
func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	if !e.embedEnabled {
		return nil, ErrProviderUnavailable
	}

	emb, err := e.embedder.Embed(ctx, text)
	if err == nil && len(emb) == 0 {
		err = errors.New("empty embedding")
	}
	if err != nil {
		e.providerFailures.Add(1)
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	return emb, nil
}

func (e *Engine) publish(ctx context.Context, event *eventstream.Event) {
	if err := e.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		e.logger.Warn("publishing memory event",
			"event_type", event.EventType,
			"error", err,
		)
	}
}

func (e *Engine) bump() {
	e.generation.Add(1)
}
