package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/recall/pkg/memory"
)

var (
	addMessageToolName    = "add_message"
	addMessageDescription = "Record a message in a conversation's memory. Older messages are summarized automatically once the conversation buffer fills up."

	buildContextToolName    = "build_context"
	buildContextDescription = "Build a token-bounded context window for a conversation: relevant summaries of past conversations in the same project followed by the most recent messages."

	statsToolName    = "memory_stats"
	statsDescription = "Report counts of stored messages, summaries, projects and conversations, plus embedding health."
)

// AddMessageInput represents the input arguments for the add_message tool.
type AddMessageInput struct {
	ProjectID      string `json:"project_id" jsonschema:"the project the conversation belongs to"`
	ConversationID string `json:"conversation_id" jsonschema:"the conversation to append to"`
	Sender         string `json:"sender" jsonschema:"who wrote the message"`
	Content        string `json:"content" jsonschema:"the message text"`
	AgentID        string `json:"agent_id,omitempty" jsonschema:"optional agent that produced the message"`
	MessageType    string `json:"message_type,omitempty" jsonschema:"optional message type, e.g. chat or tool"`
}

// AddMessageOutput is the id assigned to the stored message.
type AddMessageOutput struct {
	ID string `json:"id"`
}

// BuildContextInput represents the input arguments for the build_context tool.
type BuildContextInput struct {
	ProjectID      string `json:"project_id" jsonschema:"the project to draw past summaries from"`
	ConversationID string `json:"conversation_id" jsonschema:"the conversation whose recent messages are included"`
	Query          string `json:"query,omitempty" jsonschema:"text used to find relevant summaries"`
	AgentID        string `json:"agent_id,omitempty" jsonschema:"optional requesting agent"`
	MaxTokens      int    `json:"max_tokens,omitempty" jsonschema:"token budget for the window (default: engine max_tokens)"`
}

// BuildContextOutput is the rendered context window.
type BuildContextOutput struct {
	Text           string `json:"text"`
	TotalTokens    int    `json:"total_tokens"`
	MaxTokens      int    `json:"max_tokens"`
	RecentCount    int    `json:"recent_count"`
	SummaryCount   int    `json:"summary_count"`
	OldestIncluded string `json:"oldest_included,omitempty"`
}

// StatsInput takes no arguments.
type StatsInput struct{}

// StatsOutput mirrors memory.Stats.
type StatsOutput struct {
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

func (s *Server) handleAddMessage(ctx context.Context, _ *mcp.CallToolRequest, input AddMessageInput) (*mcp.CallToolResult, AddMessageOutput, error) {
	id, err := s.config.Engine.AddMessage(ctx, memory.MessageInput{
		Content:        input.Content,
		ProjectID:      input.ProjectID,
		ConversationID: input.ConversationID,
		Sender:         input.Sender,
		AgentID:        input.AgentID,
		MessageType:    input.MessageType,
	})
	if err != nil {
		return toolError("Failed to add message: %v", err), AddMessageOutput{}, nil
	}

	output := AddMessageOutput{ID: id}
	return toolResult(output), output, nil
}

func (s *Server) handleBuildContext(ctx context.Context, _ *mcp.CallToolRequest, input BuildContextInput) (*mcp.CallToolResult, BuildContextOutput, error) {
	if input.ConversationID == "" {
		return toolError("conversation_id is required"), BuildContextOutput{}, nil
	}

	s.config.Logger.Debug("MCP build_context request",
		"conversation_id", input.ConversationID,
		"max_tokens", input.MaxTokens,
	)

	w, err := s.config.Engine.BuildContext(ctx, memory.ContextRequest{
		ProjectID:      input.ProjectID,
		ConversationID: input.ConversationID,
		Query:          input.Query,
		AgentID:        input.AgentID,
		MaxTokens:      input.MaxTokens,
	})
	if err != nil {
		return toolError("Failed to build context: %v", err), BuildContextOutput{}, nil
	}

	output := BuildContextOutput{
		Text:         w.Text,
		TotalTokens:  w.TotalTokens,
		MaxTokens:    w.MaxTokens,
		RecentCount:  len(w.RecentMessages),
		SummaryCount: len(w.RelevantSummaries),
	}
	if len(w.RecentMessages) > 0 {
		output.OldestIncluded = w.RecentMessages[0].Timestamp.UTC().Format(time.RFC3339)
	}

	return toolResult(output), output, nil
}

func (s *Server) handleStats(_ context.Context, _ *mcp.CallToolRequest, _ StatsInput) (*mcp.CallToolResult, StatsOutput, error) {
	st := s.config.Engine.Stats()
	output := StatsOutput{
		TotalMessages:      st.TotalMessages,
		TotalSummaries:     st.TotalSummaries,
		TotalProjects:      st.TotalProjects,
		TotalConversations: st.TotalConversations,
		BufferedMessages:   st.BufferedMessages,
		TotalTokens:        st.TotalTokens,
		CacheSize:          st.CacheSize,
		MemoryEfficiency:   st.MemoryEfficiency,
		ProviderFailures:   st.ProviderFailures,
		EmbeddingsEnabled:  st.EmbeddingsEnabled,
	}
	return toolResult(output), output, nil
}
