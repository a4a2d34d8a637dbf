package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/embeddings"
	"github.com/papercomputeco/recall/pkg/embeddings/cache"
	embeddingutils "github.com/papercomputeco/recall/pkg/embeddings/utils"
	"github.com/papercomputeco/recall/pkg/eventstream"
	"github.com/papercomputeco/recall/pkg/eventstream/async"
	"github.com/papercomputeco/recall/pkg/eventstream/kafka"
	"github.com/papercomputeco/recall/pkg/eventstream/nop"
	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/ratelimit"
	"github.com/papercomputeco/recall/pkg/vector"
	vectorutils "github.com/papercomputeco/recall/pkg/vector/utils"
)

// NewEngine wires a memory engine from cfg: embedder chain behind the
// cache and rate limiter, one vector driver per index and the event
// publisher.
func NewEngine(ctx context.Context, cfg *config.Config, log *slog.Logger) (*memory.Engine, error) {
	memCfg, err := memory.ConfigFrom(cfg)
	if err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(cfg, log)
	if err != nil {
		return nil, err
	}

	messages, err := newVectorDriver(ctx, cfg, "messages", log)
	if err != nil {
		return nil, errors.Join(err, embedder.Close())
	}
	summaries, err := newVectorDriver(ctx, cfg, "summaries", log)
	if err != nil {
		return nil, errors.Join(err, embedder.Close(), messages.Close())
	}

	publisher, err := newPublisher(cfg.Events, log)
	if err != nil {
		return nil, errors.Join(err, embedder.Close(), messages.Close(), summaries.Close())
	}

	engine, err := memory.New(memCfg,
		memory.WithEmbedder(embedder),
		memory.WithIndices(messages, summaries),
		memory.WithPublisher(publisher),
		memory.WithLogger(log),
	)
	if err != nil {
		return nil, errors.Join(err, embedder.Close(), messages.Close(), summaries.Close(), publisher.Close())
	}

	return engine, nil
}

func newEmbedder(cfg *config.Config, log *slog.Logger) (embeddings.Embedder, error) {
	base := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		Dimensions:   cfg.Embedding.Dimensions,
		Fallbacks:    cfg.Embedding.Fallbacks,
		Logger:       log,
	})
	if !embeddings.IsAvailable(base) {
		return base, nil
	}

	opts := []cache.Option{cache.WithLogger(log)}
	if cfg.Cache.MaxEntries > 0 {
		opts = append(opts, cache.WithMaxEntries(int(cfg.Cache.MaxEntries)))
	}
	if cfg.RateLimit.MaxCalls > 0 {
		window, err := cfg.RateLimit.WindowDuration()
		if err != nil {
			return nil, err
		}
		opts = append(opts, cache.WithLimiter(ratelimit.New(int(cfg.RateLimit.MaxCalls), window)))
	}

	return cache.New(base, opts...), nil
}

func newVectorDriver(ctx context.Context, cfg *config.Config, collection string, log *slog.Logger) (vector.Driver, error) {
	d, err := vectorutils.NewVectorDriver(ctx, &vectorutils.NewVectorDriverOpts{
		ProviderType: cfg.VectorStore.Provider,
		TargetURL:    cfg.VectorStore.Target,
		Path:         cfg.VectorStore.Path,
		Collection:   collection,
		Dimensions:   cfg.Embedding.Dimensions,
		Logger:       log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s index: %w", collection, err)
	}
	return d, nil
}

func newPublisher(c config.EventsConfig, log *slog.Logger) (eventstream.Publisher, error) {
	switch c.Provider {
	case "", "nop", "none":
		return nop.NewPublisher(), nil

	case "kafka":
		k, err := kafka.NewPublisher(kafka.Config{
			Brokers: c.Brokers,
			Topic:   c.Topic,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		return async.NewPublisher(&async.Config{
			Publisher: k,
			Logger:    log,
		})

	default:
		return nil, fmt.Errorf("unsupported events provider: %s", c.Provider)
	}
}
