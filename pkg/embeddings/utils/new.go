// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/papercomputeco/recall/pkg/embeddings"
	"github.com/papercomputeco/recall/pkg/embeddings/fallback"
	"github.com/papercomputeco/recall/pkg/embeddings/ollama"
	"github.com/papercomputeco/recall/pkg/embeddings/openai"
	"github.com/papercomputeco/recall/pkg/logger"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	Dimensions   uint

	// Fallbacks are provider types tried after ProviderType fails. They
	// use their own default endpoint and model.
	Fallbacks []string

	Logger *slog.Logger
}

// NewEmbedder builds the configured provider chain. Providers that cannot
// be initialized are skipped; when none remain the result is an
// embeddings.Unavailable, never nil.
func NewEmbedder(o *NewEmbedderOpts) embeddings.Embedder {
	log := logger.OrNop(o.Logger)

	var (
		providers []fallback.Provider
		reasons   []string
	)

	add := func(provider, target, model string, dims uint) {
		e, err := newProvider(provider, target, model, dims)
		if err != nil {
			log.Warn("skipping embedding provider", "provider", provider, "error", err)
			reasons = append(reasons, err.Error())
			return
		}
		providers = append(providers, fallback.Provider{Name: provider, Embedder: e})
	}

	add(o.ProviderType, o.TargetURL, o.Model, o.Dimensions)
	for _, fb := range o.Fallbacks {
		if fb == o.ProviderType {
			continue
		}
		add(fb, "", "", 0)
	}

	switch len(providers) {
	case 0:
		return embeddings.Unavailable{Reason: strings.Join(reasons, "; ")}
	case 1:
		return providers[0].Embedder
	default:
		return fallback.New(log, providers...)
	}
}

func newProvider(provider, target, model string, dims uint) (embeddings.Embedder, error) {
	switch provider {
	case "ollama":
		return ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: target,
			Model:   model,
		})
	case "openai":
		return openai.NewEmbedder(openai.EmbedderConfig{
			BaseURL:    target,
			Model:      model,
			Dimensions: int(dims),
		})
	case "", "none":
		return nil, fmt.Errorf("no embedding provider configured")
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
	}
}
