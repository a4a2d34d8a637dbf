package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/papercomputeco/recall/pkg/eventstream"
	"github.com/papercomputeco/recall/pkg/vector"
)

// AddMessage stores a message, appends it to its conversation buffer and
// summarizes the oldest half of the buffer once it reaches the threshold.
// Embedding failures degrade the message to recency-only; the only errors
// returned are ErrInvalidInput.
func (e *Engine) AddMessage(ctx context.Context, in MessageInput) (id string, err error) {
	ctx, span := startSpan(ctx, "memory.AddMessage",
		attribute.String("project_id", in.ProjectID),
		attribute.String("conversation_id", in.ConversationID),
	)
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(in.ProjectID) == "" || strings.TrimSpace(in.ConversationID) == "" {
		return "", fmt.Errorf("%w: project and conversation ids are required", ErrInvalidInput)
	}

	conv := convKey{in.ProjectID, in.ConversationID}
	unlock := e.convLocks.Lock(conv)
	defer unlock()

	msg := &Message{
		ID:             e.newID(),
		ProjectID:      in.ProjectID,
		ConversationID: in.ConversationID,
		Sender:         in.Sender,
		AgentID:        in.AgentID,
		Content:        in.Content,
		MessageType:    in.MessageType,
		Timestamp:      e.now().UTC(),
		TokenEstimate:  EstimateTokens(in.Content, e.cfg.TokensPerWord),
	}

	if strings.TrimSpace(in.Content) != "" {
		if emb, embErr := e.embed(ctx, in.Content); embErr != nil {
			e.logger.Warn("message stored without embedding",
				"conversation_id", in.ConversationID,
				"error", embErr,
			)
		} else {
			msg.EmbeddingRef = e.index(ctx, e.messageIndex, messageDocument(msg, emb))
		}
	}

	e.mu.Lock()
	e.messages[msg.ID] = msg
	e.projectMessages[msg.ProjectID] = append(e.projectMessages[msg.ProjectID], msg.ID)
	buf := append(e.buffers[conv], msg)
	e.buffers[conv] = buf

	var chunk []Message
	if len(buf) >= e.cfg.SummaryThreshold {
		n := (len(buf) + 1) / 2
		chunk = make([]Message, n)
		for i, m := range buf[:n] {
			chunk[i] = *m
		}
	}
	epoch := e.cleanups.Load()
	e.mu.Unlock()
	e.bump()

	event := eventstream.NewEvent(eventstream.EventTypeMessageAdded, msg.ProjectID, msg.ConversationID)
	event.Message = &eventstream.MessagePayload{
		MessageID:     msg.ID,
		Sender:        msg.Sender,
		AgentID:       msg.AgentID,
		MessageType:   msg.MessageType,
		TokenEstimate: msg.TokenEstimate,
		Indexed:       msg.EmbeddingRef != "",
		Timestamp:     msg.Timestamp,
	}
	e.publish(ctx, event)

	if chunk != nil {
		e.compact(ctx, chunk, epoch)
	}

	return msg.ID, nil
}

// index adds doc to idx and returns its id, or "" when indexing failed.
// The write ignores cancellation so a started mutation completes.
func (e *Engine) index(ctx context.Context, idx vector.Driver, doc vector.Document) string {
	if err := idx.Add(context.WithoutCancel(ctx), []vector.Document{doc}); err != nil {
		e.logger.Warn("indexing document",
			"kind", string(doc.Kind),
			"id", doc.ID,
			"error", err,
		)
		return ""
	}
	return doc.ID
}

// Summarize turns chunk into a summary with its own embedding. The summary
// is not stored.
func (e *Engine) Summarize(ctx context.Context, chunk []Message) (ConversationSummary, error) {
	summary, err := e.summarizer.Summarize(ctx, chunk)
	if err != nil {
		return ConversationSummary{}, err
	}
	summary.ID = e.newID()
	summary.Timestamp = e.now().UTC()

	if strings.TrimSpace(summary.SummaryText) != "" {
		emb, embErr := e.embed(ctx, summary.SummaryText)
		if embErr != nil {
			e.logger.Warn("summary created without embedding",
				"conversation_id", summary.ConversationID,
				"error", embErr,
			)
		}
		summary.Embedding = emb
	}
	return summary, nil
}

// compact summarizes chunk and drops it from the buffer. The caller holds
// the conversation lock.
func (e *Engine) compact(ctx context.Context, chunk []Message, epoch uint64) {
	conversationID := chunk[0].ConversationID
	conv := convKey{chunk[0].ProjectID, conversationID}

	summary, err := e.Summarize(ctx, chunk)
	if err != nil {
		if !errors.Is(err, ErrEmptyChunk) {
			e.logger.Error("summarizing buffer",
				"conversation_id", conversationID,
				"error", err,
			)
		}
		return
	}

	if summary.Indexed() && e.index(ctx, e.summaryIndex, summaryDocument(&summary)) == "" {
		summary.Embedding = nil
	}

	drop := make(map[string]struct{}, len(chunk))
	for _, m := range chunk {
		drop[m.ID] = struct{}{}
	}

	e.mu.Lock()
	if e.cleanups.Load() != epoch && !e.anyStoredLocked(chunk) {
		// Everything in the chunk was evicted while summarizing.
		e.mu.Unlock()
		if summary.Indexed() {
			if err := e.summaryIndex.Delete(context.WithoutCancel(ctx), []string{summary.ID}); err != nil {
				e.logger.Warn("removing discarded summary from index", "summary_id", summary.ID, "error", err)
			}
		}
		e.logger.Debug("discarding summary of evicted messages", "conversation_id", conversationID)
		return
	}

	buf := e.buffers[conv]
	remaining := make([]*Message, 0, len(buf))
	for _, m := range buf {
		if _, ok := drop[m.ID]; !ok {
			remaining = append(remaining, m)
		}
	}
	e.setBufferLocked(conv, remaining)

	stored := &summary
	e.summaries[stored.ID] = stored
	e.convSummaries[conv] = append(e.convSummaries[conv], stored.ID)
	e.mu.Unlock()
	e.bump()

	e.logger.Debug("buffer summarized",
		"conversation_id", conversationID,
		"summary_id", stored.ID,
		"messages", len(chunk),
		"importance", stored.ImportanceScore,
	)

	event := eventstream.NewEvent(eventstream.EventTypeSummaryCreated, stored.ProjectID, conversationID)
	event.Summary = &eventstream.SummaryPayload{
		SummaryID:        stored.ID,
		SourceMessageIDs: stored.SourceMessageIDs,
		ImportanceScore:  stored.ImportanceScore,
		Topics:           stored.Topics,
		Participants:     stored.Participants,
		Indexed:          stored.Indexed(),
		Timestamp:        stored.Timestamp,
	}
	e.publish(ctx, event)
}

func summaryDocument(s *ConversationSummary) vector.Document {
	return vector.Document{
		ID:             s.ID,
		Kind:           vector.KindSummary,
		ProjectID:      s.ProjectID,
		ConversationID: s.ConversationID,
		Timestamp:      s.Timestamp,
		Embedding:      s.Embedding,
	}
}

func messageDocument(m *Message, emb []float32) vector.Document {
	return vector.Document{
		ID:             m.ID,
		Kind:           vector.KindMessage,
		ProjectID:      m.ProjectID,
		ConversationID: m.ConversationID,
		Timestamp:      m.Timestamp,
		Embedding:      emb,
	}
}

func (e *Engine) anyStoredLocked(chunk []Message) bool {
	for _, m := range chunk {
		if _, ok := e.messages[m.ID]; ok {
			return true
		}
	}
	return false
}

func (e *Engine) setBufferLocked(conv convKey, buf []*Message) {
	if len(buf) == 0 {
		delete(e.buffers, conv)
		return
	}
	e.buffers[conv] = buf
}

// Buffer returns a copy of the unsummarized messages of a conversation,
// oldest first.
func (e *Engine) Buffer(projectID, conversationID string) []Message {
	e.mu.RLock()
	defer e.mu.RUnlock()

	buf := e.buffers[convKey{projectID, conversationID}]
	out := make([]Message, len(buf))
	for i, m := range buf {
		out[i] = *m
	}
	return out
}

// Summaries lists the summaries of a conversation, oldest first.
func (e *Engine) Summaries(projectID, conversationID string) []ConversationSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := e.convSummaries[convKey{projectID, conversationID}]
	out := make([]ConversationSummary, 0, len(ids))
	for _, id := range ids {
		if s, ok := e.summaries[id]; ok {
			out = append(out, *s)
		}
	}
	return out
}

// Message looks up a stored message.
func (e *Engine) Message(id string) (Message, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m, ok := e.messages[id]
	if !ok {
		return Message{}, false
	}
	return *m, true
}
