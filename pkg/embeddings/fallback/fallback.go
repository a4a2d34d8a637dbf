// Package fallback chains several embedding providers, trying each in turn.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/recall/pkg/embeddings"
	"github.com/papercomputeco/recall/pkg/logger"
)

// Provider is a named embedder in the chain.
type Provider struct {
	Name     string
	Embedder embeddings.Embedder
}

// Embedder returns the first successful embedding from its providers.
type Embedder struct {
	providers []Provider
	logger    *slog.Logger
}

func New(log *slog.Logger, providers ...Provider) *Embedder {
	return &Embedder{
		providers: providers,
		logger:    logger.OrNop(log),
	}
}

// Embed tries each provider in order and short-circuits on the first
// success. When all fail, the individual failures are joined.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if len(e.providers) == 0 {
		return nil, fmt.Errorf("%w: no providers configured", embeddings.ErrUnavailable)
	}

	var errs []error
	for _, p := range e.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		emb, err := p.Embedder.Embed(ctx, text)
		if err == nil {
			return emb, nil
		}

		e.logger.Warn("embedding provider failed", "provider", p.Name, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))
	}

	return nil, errors.Join(errs...)
}

// Close closes every provider.
func (e *Embedder) Close() error {
	var errs []error
	for _, p := range e.providers {
		if err := p.Embedder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", p.Name, err))
		}
	}
	return errors.Join(errs...)
}

var _ embeddings.Embedder = (*Embedder)(nil)
