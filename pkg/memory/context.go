package memory

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/papercomputeco/recall/pkg/vector"
)

const (
	relevantHeader = "=== RELEVANT CONTEXT FROM PAST CONVERSATIONS ==="
	recentHeader   = "=== RECENT CONVERSATION ==="
	summaryTime    = "2006-01-02 15:04"
)

// BuildContext assembles recent messages of the conversation and the
// summaries most relevant to the query into a window of at most MaxTokens
// estimated tokens. Recent messages win over summaries when the budget is
// tight. Unknown ids yield an empty window and embedding failures a
// recency-only one; neither is an error.
func (e *Engine) BuildContext(ctx context.Context, req ContextRequest) (w ContextWindow, err error) {
	ctx, span := startSpan(ctx, "memory.BuildContext",
		attribute.String("project_id", req.ProjectID),
		attribute.String("conversation_id", req.ConversationID),
	)
	defer func() {
		span.SetAttributes(attribute.Int("total_tokens", w.TotalTokens))
		endSpan(span, err)
	}()

	if req.MaxTokens <= 0 {
		req.MaxTokens = e.cfg.MaxTokens
	}

	key := responseKey(e.generation.Load(), req)
	if cached, ok := e.responses.get(key); ok {
		return cached, nil
	}

	recent := e.recentMessages(convKey{req.ProjectID, req.ConversationID})
	summaries, scores, retrieved := e.relevantSummaries(ctx, req.ProjectID, req.Query)

	w = e.fit(recent, summaries, req.MaxTokens)
	w.Text = render(w)

	e.logger.Debug("context built",
		"conversation_id", req.ConversationID,
		"recent", len(w.RecentMessages),
		"summaries", len(w.RelevantSummaries),
		"top_score", topScore(scores),
		"total_tokens", w.TotalTokens,
		"max_tokens", w.MaxTokens,
	)

	if retrieved {
		e.responses.set(key, w)
	}
	return w, nil
}

func (e *Engine) recentMessages(conv convKey) []Message {
	e.mu.RLock()
	defer e.mu.RUnlock()

	buf := e.buffers[conv]
	if len(buf) > e.cfg.RecentWindow {
		buf = buf[len(buf)-e.cfg.RecentWindow:]
	}
	out := make([]Message, len(buf))
	for i, m := range buf {
		out[i] = *m
	}
	return out
}

// relevantSummaries returns stored summaries ranked by similarity to query,
// above the similarity threshold. retrieved is false when the lookup was
// attempted and failed, so the recency-only result only holds for this call.
func (e *Engine) relevantSummaries(ctx context.Context, projectID, query string) (summaries []ConversationSummary, scores []float64, retrieved bool) {
	if strings.TrimSpace(query) == "" || !e.embedEnabled {
		return nil, nil, true
	}

	emb, err := e.embed(ctx, query)
	if err != nil {
		e.logger.Warn("building recency-only context", "error", err)
		return nil, nil, false
	}

	results, err := e.summaryIndex.Query(ctx, emb, e.cfg.SummaryTopK, vector.Filter{
		Kind:      vector.KindSummary,
		ProjectID: projectID,
	})
	if err != nil {
		e.logger.Warn("querying summary index", "error", err)
		return nil, nil, false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, r := range results {
		score := float64(r.Score)
		if score <= *e.cfg.SimilarityThreshold {
			continue
		}
		s, ok := e.summaries[r.ID]
		if !ok {
			continue
		}
		summaries = append(summaries, *s)
		scores = append(scores, score)
	}
	return summaries, scores, true
}

// fit applies the token budget. When everything fits it is kept as is;
// otherwise the newest messages fill the recent share of the budget and
// summaries in rank order fill the rest.
func (e *Engine) fit(recent []Message, summaries []ConversationSummary, maxTokens int) ContextWindow {
	summaryTokens := make([]int, len(summaries))
	total := 0
	for _, m := range recent {
		total += m.TokenEstimate
	}
	for i, s := range summaries {
		summaryTokens[i] = EstimateTokens(s.SummaryText, e.cfg.TokensPerWord)
		total += summaryTokens[i]
	}

	w := ContextWindow{
		RecentMessages:    recent,
		RelevantSummaries: summaries,
		TotalTokens:       total,
		MaxTokens:         maxTokens,
	}
	if total <= maxTokens {
		return w
	}

	recentBudget := int(float64(maxTokens) * e.cfg.RecentShare)
	used := 0
	start := len(recent)
	for i := len(recent) - 1; i >= 0; i-- {
		if used+recent[i].TokenEstimate > recentBudget {
			break
		}
		used += recent[i].TokenEstimate
		start = i
	}

	kept := 0
	for i := range summaries {
		if used+summaryTokens[i] > maxTokens {
			break
		}
		used += summaryTokens[i]
		kept++
	}

	w.RecentMessages = recent[start:]
	w.RelevantSummaries = summaries[:kept]
	w.TotalTokens = used
	return w
}

func render(w ContextWindow) string {
	var b strings.Builder

	if len(w.RelevantSummaries) > 0 {
		b.WriteString(relevantHeader)
		b.WriteString("\n")
		for _, s := range w.RelevantSummaries {
			fmt.Fprintf(&b, "[%s]", s.Timestamp.Format(summaryTime))
			if len(s.Topics) > 0 {
				fmt.Fprintf(&b, " Topics: %s", strings.Join(s.Topics, ", "))
			}
			b.WriteString("\n")
			b.WriteString(s.SummaryText)
			b.WriteString("\n\n")
		}
	}

	if len(w.RecentMessages) > 0 {
		b.WriteString(recentHeader)
		b.WriteString("\n")
		for _, m := range w.RecentMessages {
			fmt.Fprintf(&b, "%s: %s\n", m.Sender, m.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "[Context tokens: %d]", w.TotalTokens)
	return b.String()
}

func topScore(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	return scores[0]
}
