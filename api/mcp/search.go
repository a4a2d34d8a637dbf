package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/recall/pkg/memory"
)

var (
	searchToolName    = "search_memories"
	searchDescription = "Search stored messages and conversation summaries semantically. Results can be scoped to a project, a user, an agent or a message type and are ordered by similarity."
)

// SearchInput represents the input arguments for the search_memories tool.
type SearchInput struct {
	Query       string `json:"query" jsonschema:"the search query text"`
	ProjectID   string `json:"project_id,omitempty" jsonschema:"restrict results to one project"`
	UserID      string `json:"user_id,omitempty" jsonschema:"restrict results to messages sent by this user"`
	AgentID     string `json:"agent_id,omitempty" jsonschema:"restrict results to messages from this agent"`
	MessageType string `json:"message_type,omitempty" jsonschema:"restrict results to this message type"`
	Limit       int    `json:"limit,omitempty" jsonschema:"number of results to return (default: 10, at most 100)"`
}

// SearchResult represents a single search hit.
type SearchResult struct {
	Kind           string  `json:"kind"`
	ID             string  `json:"id"`
	Score          float64 `json:"score"`
	ProjectID      string  `json:"project_id"`
	ConversationID string  `json:"conversation_id"`
	Sender         string  `json:"sender,omitempty"`
	Text           string  `json:"text"`
	Timestamp      string  `json:"timestamp"`
}

// SearchOutput represents the output of the search_memories tool.
type SearchOutput struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if input.Query == "" {
		return toolError("query is required"), SearchOutput{}, nil
	}

	s.config.Logger.Debug("MCP search request",
		"query", input.Query,
		"limit", input.Limit,
	)

	hits, err := s.config.Engine.SearchMemories(ctx, memory.SearchQuery{
		Query:       input.Query,
		ProjectID:   input.ProjectID,
		UserID:      input.UserID,
		AgentID:     input.AgentID,
		MessageType: input.MessageType,
		Limit:       input.Limit,
	})
	if err != nil {
		s.config.Logger.Error("failed to search memories", "error", err)
		return toolError("Failed to search memories: %v", err), SearchOutput{}, nil
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, searchResult(h))
	}

	output := SearchOutput{
		Query:   input.Query,
		Results: results,
		Count:   len(results),
	}
	return toolResult(output), output, nil
}

func searchResult(h memory.SearchHit) SearchResult {
	r := SearchResult{
		Kind:  string(h.Kind),
		ID:    h.ID,
		Score: h.Score,
	}

	switch {
	case h.Message != nil:
		r.ProjectID = h.Message.ProjectID
		r.ConversationID = h.Message.ConversationID
		r.Sender = h.Message.Sender
		r.Text = h.Message.Content
		r.Timestamp = h.Message.Timestamp.UTC().Format(time.RFC3339)
	case h.Summary != nil:
		r.ProjectID = h.Summary.ProjectID
		r.ConversationID = h.Summary.ConversationID
		r.Text = h.Summary.SummaryText
		r.Timestamp = h.Summary.Timestamp.UTC().Format(time.RFC3339)
	}

	return r
}
