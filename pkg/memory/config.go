package memory

import (
	"time"

	"github.com/papercomputeco/recall/pkg/config"
)

// Topic maps a topic label to the keywords that signal it.
type Topic struct {
	Name     string
	Keywords []string
}

// DefaultKeywords raise a summary's importance score.
var DefaultKeywords = []string{
	"critical", "urgent", "important", "deadline", "issue", "problem",
	"decision", "milestone", "requirement", "architecture", "design",
}

// DefaultTopics is the topic table, reported in this order.
var DefaultTopics = []Topic{
	{Name: "database", Keywords: []string{"database", "sql", "query", "table", "schema", "migration"}},
	{Name: "api", Keywords: []string{"api", "endpoint", "rest", "graphql", "request", "response"}},
	{Name: "security", Keywords: []string{"security", "auth", "authentication", "authorization", "encryption", "vulnerability"}},
	{Name: "performance", Keywords: []string{"performance", "speed", "latency", "optimization", "cache", "slow"}},
	{Name: "ui", Keywords: []string{"ui", "interface", "design", "frontend", "layout", "component"}},
	{Name: "testing", Keywords: []string{"test", "testing", "qa", "bug", "debug", "coverage"}},
	{Name: "deployment", Keywords: []string{"deploy", "deployment", "release", "production", "staging", "ci/cd"}},
	{Name: "planning", Keywords: []string{"plan", "planning", "roadmap", "timeline", "milestone", "sprint"}},
}

// Config tunes the engine. Zero fields take the defaults.
type Config struct {
	// SummaryThreshold is the buffer length that triggers summarization.
	SummaryThreshold int

	// RecentWindow is how many buffered messages BuildContext considers.
	RecentWindow int

	// SummaryTopK is how many summaries BuildContext retrieves.
	SummaryTopK int

	// MaxTokens is the default BuildContext budget.
	MaxTokens int

	// SimilarityThreshold drops semantic hits scoring at or below it. Nil
	// selects the default; zero keeps every positive score.
	SimilarityThreshold *float64

	// TokensPerWord converts word counts to token estimates.
	TokensPerWord float64

	// RecentShare is the fraction of the budget reserved for recent
	// messages when trimming.
	RecentShare float64

	// Keywords raise a summary's importance score.
	Keywords []string

	// Topics is the topic table used for summary tagging.
	Topics []Topic

	// MaxSummaryLength caps summary text, in characters.
	MaxSummaryLength int

	// ResponseTTL keeps rendered contexts for repeated identical requests.
	// Zero disables the response cache.
	ResponseTTL time.Duration
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		SummaryThreshold:    10,
		RecentWindow:        10,
		SummaryTopK:         5,
		MaxTokens:           3000,
		SimilarityThreshold: Threshold(0.3),
		TokensPerWord:       1.3,
		RecentShare:         0.7,
		Keywords:            DefaultKeywords,
		Topics:              DefaultTopics,
		MaxSummaryLength:    500,
	}
}

// ConfigFrom maps the file configuration onto engine tuning.
func ConfigFrom(c *config.Config) (Config, error) {
	cfg := DefaultConfig()
	if c == nil {
		return cfg, nil
	}

	ttl, err := c.Cache.ResponseTTLDuration()
	if err != nil {
		return Config{}, err
	}

	cfg.SummaryThreshold = int(c.Engine.SummaryThreshold)
	cfg.RecentWindow = int(c.Engine.RecentWindow)
	cfg.SummaryTopK = int(c.Engine.SummaryTopK)
	cfg.MaxTokens = int(c.Engine.MaxTokens)
	cfg.SimilarityThreshold = Threshold(c.Engine.SimilarityThreshold)
	cfg.TokensPerWord = c.Engine.TokensPerWord
	cfg.ResponseTTL = ttl
	return cfg.withDefaults(), nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SummaryThreshold <= 0 {
		c.SummaryThreshold = d.SummaryThreshold
	}
	if c.RecentWindow <= 0 {
		c.RecentWindow = d.RecentWindow
	}
	if c.SummaryTopK <= 0 {
		c.SummaryTopK = d.SummaryTopK
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.SimilarityThreshold == nil || *c.SimilarityThreshold < 0 {
		c.SimilarityThreshold = d.SimilarityThreshold
	}
	if c.TokensPerWord <= 0 {
		c.TokensPerWord = d.TokensPerWord
	}
	if c.RecentShare <= 0 || c.RecentShare > 1 {
		c.RecentShare = d.RecentShare
	}
	if c.Keywords == nil {
		c.Keywords = d.Keywords
	}
	if c.Topics == nil {
		c.Topics = d.Topics
	}
	if c.MaxSummaryLength <= 0 {
		c.MaxSummaryLength = d.MaxSummaryLength
	}
	return c
}
