package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent recall configuration stored as config.toml
// in the .recall/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Engine      EngineConfig      `toml:"engine"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	RateLimit   RateLimitConfig   `toml:"rate_limit"`
	Cache       CacheConfig       `toml:"cache"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Retention   RetentionConfig   `toml:"retention"`
	Snapshot    SnapshotConfig    `toml:"snapshot"`
	Events      EventsConfig      `toml:"events"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
}

// EngineConfig holds the tunables of the memory engine.
type EngineConfig struct {
	SummaryThreshold    uint    `toml:"summary_threshold,omitempty"`
	RecentWindow        uint    `toml:"recent_window,omitempty"`
	SummaryTopK         uint    `toml:"summary_top_k,omitempty"`
	MaxTokens           uint    `toml:"max_tokens,omitempty"`
	SimilarityThreshold float64 `toml:"similarity_threshold,omitempty"`
	TokensPerWord       float64 `toml:"tokens_per_word,omitempty"`
}

// EmbeddingConfig holds embedding provider settings. Fallbacks name
// additional providers tried in order when the primary one fails.
type EmbeddingConfig struct {
	Provider   string   `toml:"provider,omitempty"`
	Target     string   `toml:"target,omitempty"`
	Model      string   `toml:"model,omitempty"`
	Dimensions uint     `toml:"dimensions,omitempty"`
	Fallbacks  []string `toml:"fallbacks,omitempty"`
}

// RateLimitConfig bounds embedding calls to MaxCalls per Window.
// A zero MaxCalls disables limiting.
type RateLimitConfig struct {
	MaxCalls uint   `toml:"max_calls,omitempty"`
	Window   string `toml:"window,omitempty"`
}

// WindowDuration parses Window.
func (r RateLimitConfig) WindowDuration() (time.Duration, error) {
	return parseDuration("rate_limit.window", r.Window)
}

// CacheConfig holds embedding and response cache settings.
type CacheConfig struct {
	MaxEntries  uint   `toml:"max_entries,omitempty"`
	ResponseTTL string `toml:"response_ttl,omitempty"`
}

// ResponseTTLDuration parses ResponseTTL.
func (c CacheConfig) ResponseTTLDuration() (time.Duration, error) {
	return parseDuration("cache.response_ttl", c.ResponseTTL)
}

// VectorStoreConfig holds vector store settings. Target is a remote URL
// (qdrant); Path is a local database file (sqlitevec).
type VectorStoreConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Path     string `toml:"path,omitempty"`
}

// RetentionConfig controls the background cleanup janitor.
type RetentionConfig struct {
	OlderThanDays uint   `toml:"older_than_days,omitempty"`
	Interval      string `toml:"interval,omitempty"`
}

// IntervalDuration parses Interval.
func (r RetentionConfig) IntervalDuration() (time.Duration, error) {
	return parseDuration("retention.interval", r.Interval)
}

// SnapshotConfig selects where engine snapshots are saved. Target is a file
// path for the "file" provider and a DSN for the SQL providers.
type SnapshotConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
}

// EventsConfig holds memory event publishing settings.
type EventsConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a running
// recall API server (e.g. recall snapshot export).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

func parseDuration(key, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return d, nil
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func floatKey(name string, field func(c *Config) *float64) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatFloat(*field(c), 'g', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = f
			return nil
		},
	}
}

func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = v
			return nil
		},
	}
}

// listKey stores a comma separated value as a list.
func listKey(field func(c *Config) *[]string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strings.Join(*field(c), ",") },
		set: func(c *Config, v string) error {
			var out []string
			for _, item := range strings.Split(v, ",") {
				if item = strings.TrimSpace(item); item != "" {
					out = append(out, item)
				}
			}
			*field(c) = out
			return nil
		},
	}
}

// orderedKeys lists every supported key in TOML section order.
var orderedKeys = []string{
	"engine.summary_threshold",
	"engine.recent_window",
	"engine.summary_top_k",
	"engine.max_tokens",
	"engine.similarity_threshold",
	"engine.tokens_per_word",
	"embedding.provider",
	"embedding.target",
	"embedding.model",
	"embedding.dimensions",
	"embedding.fallbacks",
	"rate_limit.max_calls",
	"rate_limit.window",
	"cache.max_entries",
	"cache.response_ttl",
	"vector_store.provider",
	"vector_store.target",
	"vector_store.path",
	"retention.older_than_days",
	"retention.interval",
	"snapshot.provider",
	"snapshot.target",
	"events.provider",
	"events.brokers",
	"events.topic",
	"api.listen",
	"client.api_target",
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"engine.summary_threshold": uintKey("engine.summary_threshold", func(c *Config) *uint { return &c.Engine.SummaryThreshold }),
	"engine.recent_window":     uintKey("engine.recent_window", func(c *Config) *uint { return &c.Engine.RecentWindow }),
	"engine.summary_top_k":     uintKey("engine.summary_top_k", func(c *Config) *uint { return &c.Engine.SummaryTopK }),
	"engine.max_tokens":        uintKey("engine.max_tokens", func(c *Config) *uint { return &c.Engine.MaxTokens }),
	"engine.similarity_threshold": floatKey("engine.similarity_threshold",
		func(c *Config) *float64 { return &c.Engine.SimilarityThreshold }),
	"engine.tokens_per_word": floatKey("engine.tokens_per_word",
		func(c *Config) *float64 { return &c.Engine.TokensPerWord }),

	"embedding.provider":   stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":     stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":      stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions": uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),
	"embedding.fallbacks":  listKey(func(c *Config) *[]string { return &c.Embedding.Fallbacks }),

	"rate_limit.max_calls": uintKey("rate_limit.max_calls", func(c *Config) *uint { return &c.RateLimit.MaxCalls }),
	"rate_limit.window":    durationKey("rate_limit.window", func(c *Config) *string { return &c.RateLimit.Window }),

	"cache.max_entries":  uintKey("cache.max_entries", func(c *Config) *uint { return &c.Cache.MaxEntries }),
	"cache.response_ttl": durationKey("cache.response_ttl", func(c *Config) *string { return &c.Cache.ResponseTTL }),

	"vector_store.provider": stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":   stringKey(func(c *Config) *string { return &c.VectorStore.Target }),
	"vector_store.path":     stringKey(func(c *Config) *string { return &c.VectorStore.Path }),

	"retention.older_than_days": uintKey("retention.older_than_days",
		func(c *Config) *uint { return &c.Retention.OlderThanDays }),
	"retention.interval": durationKey("retention.interval", func(c *Config) *string { return &c.Retention.Interval }),

	"snapshot.provider": stringKey(func(c *Config) *string { return &c.Snapshot.Provider }),
	"snapshot.target":   stringKey(func(c *Config) *string { return &c.Snapshot.Target }),

	"events.provider": stringKey(func(c *Config) *string { return &c.Events.Provider }),
	"events.brokers":  listKey(func(c *Config) *[]string { return &c.Events.Brokers }),
	"events.topic":    stringKey(func(c *Config) *string { return &c.Events.Topic }),

	"api.listen":        stringKey(func(c *Config) *string { return &c.API.Listen }),
	"client.api_target": stringKey(func(c *Config) *string { return &c.Client.APITarget }),
}
