package memory

import (
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/ristretto"
)

// responseCache keeps rendered context windows for a short TTL. Keys embed
// the engine generation, so entries written before a mutation are never
// read after it.
type responseCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

func newResponseCache(ttl time.Duration) (*responseCache, error) {
	if ttl <= 0 {
		return nil, nil
	}

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating response cache: %w", err)
	}
	return &responseCache{cache: c, ttl: ttl}, nil
}

func responseKey(generation uint64, req ContextRequest) string {
	return fmt.Sprintf("%d\x00%s\x00%s\x00%s\x00%s\x00%d",
		generation, req.ProjectID, req.ConversationID, req.AgentID, req.Query, req.MaxTokens)
}

func (r *responseCache) get(key string) (ContextWindow, bool) {
	if r == nil {
		return ContextWindow{}, false
	}
	v, ok := r.cache.Get(key)
	if !ok {
		return ContextWindow{}, false
	}
	w, ok := v.(ContextWindow)
	return w.clone(), ok
}

func (r *responseCache) set(key string, w ContextWindow) {
	if r == nil {
		return
	}
	r.cache.SetWithTTL(key, w.clone(), 1, r.ttl)
}

// clone copies the slices of w so callers never share them with the cache.
func (w ContextWindow) clone() ContextWindow {
	w.RecentMessages = slices.Clone(w.RecentMessages)
	w.RelevantSummaries = slices.Clone(w.RelevantSummaries)
	return w
}

// wait blocks until buffered writes are applied.
func (r *responseCache) wait() {
	if r != nil {
		r.cache.Wait()
	}
}

func (r *responseCache) clear() {
	if r != nil {
		r.cache.Clear()
	}
}

func (r *responseCache) close() {
	if r != nil {
		r.cache.Close()
	}
}
