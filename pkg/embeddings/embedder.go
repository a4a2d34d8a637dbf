// Package embeddings defines the text embedding provider used to index
// messages and summaries, along with the helpers that wrap providers.
package embeddings

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnavailable is returned when no embedding provider could be
	// initialized or a provider cannot currently be reached.
	ErrUnavailable = errors.New("embedding provider unavailable")

	// ErrEmbedding is returned when a provider fails to embed a text.
	ErrEmbedding = errors.New("embedding failed")
)

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}

// Unavailable is the Embedder returned when initialization failed. Every
// call reports ErrUnavailable along with Reason.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Embed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnavailable, u.Reason)
}

func (u Unavailable) Close() error { return nil }

// IsAvailable reports whether e can produce embeddings at all. It does not
// probe the provider.
func IsAvailable(e Embedder) bool {
	if e == nil {
		return false
	}
	switch e.(type) {
	case Unavailable, *Unavailable:
		return false
	}
	return true
}

var _ Embedder = Unavailable{}
