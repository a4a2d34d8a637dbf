package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/papercomputeco/recall/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the RECALL_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (RECALL_API_LISTEN, RECALL_ENGINE_MAX_TOKENS, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}
	v.AddConfigPath(target)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("RECALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Engine
	v.SetDefault("engine.summary_threshold", d.Engine.SummaryThreshold)
	v.SetDefault("engine.recent_window", d.Engine.RecentWindow)
	v.SetDefault("engine.summary_top_k", d.Engine.SummaryTopK)
	v.SetDefault("engine.max_tokens", d.Engine.MaxTokens)
	v.SetDefault("engine.similarity_threshold", d.Engine.SimilarityThreshold)
	v.SetDefault("engine.tokens_per_word", d.Engine.TokensPerWord)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.fallbacks", d.Embedding.Fallbacks)

	// Rate limit
	v.SetDefault("rate_limit.max_calls", d.RateLimit.MaxCalls)
	v.SetDefault("rate_limit.window", d.RateLimit.Window)

	// Cache
	v.SetDefault("cache.max_entries", d.Cache.MaxEntries)
	v.SetDefault("cache.response_ttl", d.Cache.ResponseTTL)

	// Vector store
	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)
	v.SetDefault("vector_store.path", d.VectorStore.Path)

	// Retention
	v.SetDefault("retention.older_than_days", d.Retention.OlderThanDays)
	v.SetDefault("retention.interval", d.Retention.Interval)

	// Snapshot
	v.SetDefault("snapshot.provider", d.Snapshot.Provider)
	v.SetDefault("snapshot.target", d.Snapshot.Target)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)

	// API / client
	v.SetDefault("api.listen", d.API.Listen)
	v.SetDefault("client.api_target", d.Client.APITarget)
}

// FromViper materializes the effective configuration held by v.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Engine: EngineConfig{
			SummaryThreshold:    v.GetUint("engine.summary_threshold"),
			RecentWindow:        v.GetUint("engine.recent_window"),
			SummaryTopK:         v.GetUint("engine.summary_top_k"),
			MaxTokens:           v.GetUint("engine.max_tokens"),
			SimilarityThreshold: v.GetFloat64("engine.similarity_threshold"),
			TokensPerWord:       v.GetFloat64("engine.tokens_per_word"),
		},
		Embedding: EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			Dimensions: v.GetUint("embedding.dimensions"),
			Fallbacks:  v.GetStringSlice("embedding.fallbacks"),
		},
		RateLimit: RateLimitConfig{
			MaxCalls: v.GetUint("rate_limit.max_calls"),
			Window:   v.GetString("rate_limit.window"),
		},
		Cache: CacheConfig{
			MaxEntries:  v.GetUint("cache.max_entries"),
			ResponseTTL: v.GetString("cache.response_ttl"),
		},
		VectorStore: VectorStoreConfig{
			Provider: v.GetString("vector_store.provider"),
			Target:   v.GetString("vector_store.target"),
			Path:     v.GetString("vector_store.path"),
		},
		Retention: RetentionConfig{
			OlderThanDays: v.GetUint("retention.older_than_days"),
			Interval:      v.GetString("retention.interval"),
		},
		Snapshot: SnapshotConfig{
			Provider: v.GetString("snapshot.provider"),
			Target:   v.GetString("snapshot.target"),
		},
		Events: EventsConfig{
			Provider: v.GetString("events.provider"),
			Brokers:  v.GetStringSlice("events.brokers"),
			Topic:    v.GetString("events.topic"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Client: ClientConfig{
			APITarget: v.GetString("client.api_target"),
		},
	}
}

// Watch logs changes to the config file backing v. Settings that are read
// once at startup (listen address, providers) need a restart to take effect;
// onChange, when non-nil, is called with the reloaded config.
func Watch(v *viper.Viper, log *slog.Logger, onChange func(*Config)) {
	if v.ConfigFileUsed() == "" {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("config file changed", "file", e.Name, "op", e.Op.String())
		if onChange != nil {
			onChange(FromViper(v))
		}
	})
	v.WatchConfig()
}
