package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/papercomputeco/recall/pkg/vector"
)

const (
	defaultSearchLimit = 10

	// MaxSearchLimit caps SearchQuery.Limit.
	MaxSearchLimit = 100

	// searchOverfetch widens index queries to leave room for scope filters
	// applied after retrieval.
	searchOverfetch = 4
)

// SearchMemories searches messages and summaries semantically. Messages
// match the user, agent and message type scopes; summaries match project
// and user (through their participants) and are excluded when an agent or
// message type scope is set. Hits at or below the similarity threshold are
// dropped; the rest are merged by score.
func (e *Engine) SearchMemories(ctx context.Context, q SearchQuery) (hits []SearchHit, err error) {
	ctx, span := startSpan(ctx, "memory.SearchMemories",
		attribute.String("project_id", q.ProjectID),
	)
	defer func() {
		span.SetAttributes(attribute.Int("hits", len(hits)))
		endSpan(span, err)
	}()

	if q.Limit <= 0 {
		q.Limit = defaultSearchLimit
	}
	q.Limit = min(q.Limit, MaxSearchLimit)
	threshold := *e.cfg.SimilarityThreshold
	if q.SimilarityThreshold != nil {
		threshold = *q.SimilarityThreshold
	}
	hits = []SearchHit{}

	if strings.TrimSpace(q.Query) == "" || !e.embedEnabled {
		return hits, nil
	}

	emb, err := e.embed(ctx, q.Query)
	if err != nil {
		e.logger.Warn("searching without embedding", "error", err)
		return hits, nil
	}

	topK := q.Limit * searchOverfetch
	messageResults, err := e.messageIndex.Query(ctx, emb, topK, vector.Filter{
		Kind:      vector.KindMessage,
		ProjectID: q.ProjectID,
	})
	if err != nil {
		e.logger.Warn("querying message index", "error", err)
		messageResults = nil
	}

	var summaryResults []vector.QueryResult
	if q.AgentID == "" && q.MessageType == "" {
		summaryResults, err = e.summaryIndex.Query(ctx, emb, topK, vector.Filter{
			Kind:      vector.KindSummary,
			ProjectID: q.ProjectID,
		})
		if err != nil {
			e.logger.Warn("querying summary index", "error", err)
			summaryResults = nil
		}
	}

	e.mu.RLock()
	for _, r := range messageResults {
		score := float64(r.Score)
		if score <= threshold {
			continue
		}
		m, ok := e.messages[r.ID]
		if !ok || !q.matchesMessage(m) {
			continue
		}
		msg := *m
		hits = append(hits, SearchHit{Kind: HitMessage, ID: msg.ID, Score: score, Message: &msg})
	}
	for _, r := range summaryResults {
		score := float64(r.Score)
		if score <= threshold {
			continue
		}
		s, ok := e.summaries[r.ID]
		if !ok || !q.matchesSummary(s) {
			continue
		}
		sum := *s
		hits = append(hits, SearchHit{Kind: HitSummary, ID: sum.ID, Score: score, Summary: &sum})
	}
	e.mu.RUnlock()

	slices.SortStableFunc(hits, func(a, b SearchHit) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	return hits, nil
}

func (q SearchQuery) matchesMessage(m *Message) bool {
	return (q.ProjectID == "" || q.ProjectID == m.ProjectID) &&
		(q.UserID == "" || q.UserID == m.Sender) &&
		(q.AgentID == "" || q.AgentID == m.AgentID) &&
		(q.MessageType == "" || q.MessageType == m.MessageType)
}

func (q SearchQuery) matchesSummary(s *ConversationSummary) bool {
	if q.ProjectID != "" && q.ProjectID != s.ProjectID {
		return false
	}
	return q.UserID == "" || slices.Contains(s.Participants, q.UserID)
}
