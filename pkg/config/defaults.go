package config

const (
	defaultSummaryThreshold    = 10
	defaultRecentWindow        = 10
	defaultSummaryTopK         = 5
	defaultMaxTokens           = 3000
	defaultSimilarityThreshold = 0.3
	defaultTokensPerWord       = 1.3

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultRateLimitCalls  = 60
	defaultRateLimitWindow = "60s"

	defaultCacheEntries = 10000
	defaultResponseTTL  = "30s"

	defaultVectorProvider = "chromem"

	defaultRetentionDays     = 30
	defaultRetentionInterval = "1h"

	defaultSnapshotProvider = "file"

	defaultEventsProvider = "nop"
	defaultEventsBroker   = "localhost:9092"
	defaultEventsTopic    = "recall.memory"

	defaultAPIListen       = ":8090"
	defaultClientAPITarget = "http://localhost:8090"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Engine: EngineConfig{
			SummaryThreshold:    defaultSummaryThreshold,
			RecentWindow:        defaultRecentWindow,
			SummaryTopK:         defaultSummaryTopK,
			MaxTokens:           defaultMaxTokens,
			SimilarityThreshold: defaultSimilarityThreshold,
			TokensPerWord:       defaultTokensPerWord,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		RateLimit: RateLimitConfig{
			MaxCalls: defaultRateLimitCalls,
			Window:   defaultRateLimitWindow,
		},
		Cache: CacheConfig{
			MaxEntries:  defaultCacheEntries,
			ResponseTTL: defaultResponseTTL,
		},
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
		},
		Retention: RetentionConfig{
			OlderThanDays: defaultRetentionDays,
			Interval:      defaultRetentionInterval,
		},
		Snapshot: SnapshotConfig{
			Provider: defaultSnapshotProvider,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Brokers:  []string{defaultEventsBroker},
			Topic:    defaultEventsTopic,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
	}
}
