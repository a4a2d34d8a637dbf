package memory

import "time"

// Message is a single stored chat message. Messages are never mutated after
// AddMessage returns.
type Message struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"project_id"`
	ConversationID string    `json:"conversation_id"`
	Sender         string    `json:"sender"`
	AgentID        string    `json:"agent_id,omitempty"`
	Content        string    `json:"content"`
	MessageType    string    `json:"message_type,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	TokenEstimate  int       `json:"token_estimate"`

	// EmbeddingRef is the id of the message's entry in the message index,
	// empty when the message was not indexed.
	EmbeddingRef string `json:"embedding_ref,omitempty"`
}

// ConversationSummary compresses a contiguous chunk of a conversation
// buffer.
type ConversationSummary struct {
	ID               string    `json:"id"`
	ProjectID        string    `json:"project_id"`
	ConversationID   string    `json:"conversation_id"`
	SourceMessageIDs []string  `json:"source_message_ids"`
	SummaryText      string    `json:"summary_text"`
	ImportanceScore  float64   `json:"importance_score"`
	Timestamp        time.Time `json:"timestamp"`
	Participants     []string  `json:"participants"`
	Topics           []string  `json:"topics"`

	// Embedding is nil when the summary could not be embedded.
	Embedding []float32 `json:"-"`
}

// Indexed reports whether the summary is discoverable by semantic search.
func (s *ConversationSummary) Indexed() bool {
	return len(s.Embedding) > 0
}

// MessageInput is the argument to AddMessage.
type MessageInput struct {
	Content        string `json:"content"`
	ProjectID      string `json:"project_id"`
	ConversationID string `json:"conversation_id"`
	Sender         string `json:"sender"`
	AgentID        string `json:"agent_id,omitempty"`
	MessageType    string `json:"message_type,omitempty"`
}

// ContextRequest is the argument to BuildContext. Zero MaxTokens selects the
// configured default.
type ContextRequest struct {
	ProjectID      string `json:"project_id"`
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
	AgentID        string `json:"agent_id,omitempty"`
	MaxTokens      int    `json:"max_tokens,omitempty"`
}

// ContextWindow is the token-budgeted context assembled by BuildContext.
type ContextWindow struct {
	RecentMessages    []Message             `json:"recent_messages"`
	RelevantSummaries []ConversationSummary `json:"relevant_summaries"`
	TotalTokens       int                   `json:"total_tokens"`
	MaxTokens         int                   `json:"max_tokens"`
	Text              string                `json:"text"`
}

// SearchQuery is the argument to SearchMemories. Empty scope fields match
// everything. A zero Limit and a nil SimilarityThreshold select the
// defaults; Limit is capped at MaxSearchLimit.
type SearchQuery struct {
	Query               string   `json:"query"`
	ProjectID           string   `json:"project_id,omitempty"`
	UserID              string   `json:"user_id,omitempty"`
	AgentID             string   `json:"agent_id,omitempty"`
	MessageType         string   `json:"message_type,omitempty"`
	Limit               int      `json:"limit,omitempty"`
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty"`
}

// Threshold returns a pointer to v, for SearchQuery and Config.
func Threshold(v float64) *float64 {
	return &v
}

// HitKind tells which entity a SearchHit carries.
type HitKind string

const (
	HitMessage HitKind = "message"
	HitSummary HitKind = "summary"
)

// SearchHit is a single SearchMemories result. Exactly one of Message and
// Summary is set.
type SearchHit struct {
	Kind    HitKind              `json:"kind"`
	ID      string               `json:"id"`
	Score   float64              `json:"score"`
	Message *Message             `json:"message,omitempty"`
	Summary *ConversationSummary `json:"summary,omitempty"`
}

// CleanupResult reports what a retention sweep removed.
type CleanupResult struct {
	Cutoff           time.Time `json:"cutoff"`
	MessagesRemoved  int       `json:"messages_removed"`
	SummariesRemoved int       `json:"summaries_removed"`
}

// Stats is a point-in-time view of the engine.
type Stats struct {
	TotalMessages      int     `json:"total_messages"`
	TotalSummaries     int     `json:"total_summaries"`
	TotalProjects      int     `json:"total_projects"`
	TotalConversations int     `json:"total_conversations"`
	BufferedMessages   int     `json:"buffered_messages"`
	TotalTokens        int     `json:"total_tokens"`
	CacheSize          int     `json:"cache_size"`
	MemoryEfficiency   float64 `json:"memory_efficiency"`
	ProviderFailures   uint64  `json:"provider_failures"`
	EmbeddingsEnabled  bool    `json:"embeddings_enabled"`
}
