// Package cache memoizes embeddings by content digest and gates provider
// calls through a rate limiter.
package cache

import (
	"container/list"
	"context"
	"encoding/hex"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/sync/singleflight"

	"github.com/papercomputeco/recall/pkg/embeddings"
	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/ratelimit"
)

// DefaultMaxEntries bounds the cache when no limit is configured.
const DefaultMaxEntries = 10000

// DefaultCallTimeout bounds a shared provider call, including the wait for
// the rate limiter.
const DefaultCallTimeout = 2 * time.Minute

type key [32]byte

type entry struct {
	key       key
	embedding []float32
}

// Cache is an embeddings.Embedder that remembers every successful
// embedding. When full, the entry written first is evicted. Returned
// slices are shared and must not be modified.
type Cache struct {
	embedder   embeddings.Embedder
	limiter    ratelimit.Acquirer
	maxEntries  int
	callTimeout time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	entries map[key]*list.Element
	order   *list.List

	group singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
}

type Option func(*Cache)

// WithLimiter gates every provider call.
func WithLimiter(l ratelimit.Acquirer) Option {
	return func(c *Cache) { c.limiter = l }
}

// WithMaxEntries bounds the number of cached embeddings.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithCallTimeout bounds each shared provider call.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger.OrNop(l) }
}

func New(e embeddings.Embedder, opts ...Option) *Cache {
	c := &Cache{
		embedder:    e,
		maxEntries:  DefaultMaxEntries,
		callTimeout: DefaultCallTimeout,
		logger:      logger.Nop(),
		entries:     make(map[key]*list.Element),
		order:       list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Embed implements embeddings.Embedder.
func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	return c.GetEmbedding(ctx, text)
}

// GetEmbedding returns the cached embedding for text, or acquires the rate
// limiter and asks the provider. Concurrent misses for the same text share
// one provider call. The shared call is detached from every caller's
// context and bounded by the call timeout; each caller stops waiting when
// its own ctx is done.
func (c *Cache) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	k := key(blake3.Sum256([]byte(text)))

	if emb, ok := c.lookup(k); ok {
		c.hits.Add(1)
		return emb, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := c.group.DoChan(hex.EncodeToString(k[:]), func() (any, error) {
		if emb, ok := c.lookup(k); ok {
			return emb, nil
		}

		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.callTimeout)
		defer cancel()

		c.misses.Add(1)
		if c.limiter != nil {
			if err := c.limiter.Acquire(callCtx); err != nil {
				return nil, err
			}
		}

		emb, err := c.embedder.Embed(callCtx, text)
		if err != nil {
			return nil, err
		}

		c.store(k, emb)
		return emb, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("shared in-flight embedding", "digest", hex.EncodeToString(k[:8]))
		}
		return res.Val.([]float32), nil
	}
}

func (c *Cache) lookup(k key) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[k]
	if !ok {
		return nil, false
	}
	return el.Value.(*entry).embedding, true
}

func (c *Cache) store(k key, emb []float32) {
	if len(emb) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[k]; ok {
		return
	}

	for c.order.Len() >= c.maxEntries {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
	}

	c.entries[k] = c.order.PushBack(&entry{key: k, embedding: emb})
}

// Len reports the number of cached embeddings.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// HitsMisses reports lookup counters since creation.
func (c *Cache) HitsMisses() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// Reset drops every cached embedding.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[key]*list.Element)
	c.order.Init()
}

// Close closes the wrapped embedder.
func (c *Cache) Close() error {
	return c.embedder.Close()
}

var _ embeddings.Embedder = (*Cache)(nil)
