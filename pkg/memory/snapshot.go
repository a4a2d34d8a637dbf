package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/papercomputeco/recall/pkg/vector"
)

// SnapshotVersion is the current snapshot document version.
const SnapshotVersion = 1

// Snapshot is a portable copy of all engine entities. Embeddings are not
// included; Restore recomputes them.
type Snapshot struct {
	Version   int                   `json:"version"`
	CreatedAt time.Time             `json:"created_at"`
	Messages  []Message             `json:"messages"`
	Summaries []ConversationSummary `json:"summaries"`
}

// Snapshot copies every stored message and summary, ordered by timestamp.
func (e *Engine) Snapshot() *Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := &Snapshot{
		Version:   SnapshotVersion,
		CreatedAt: e.now().UTC(),
		Messages:  make([]Message, 0, len(e.messages)),
		Summaries: make([]ConversationSummary, 0, len(e.summaries)),
	}
	for _, m := range e.messages {
		snap.Messages = append(snap.Messages, *m)
	}
	for _, s := range e.summaries {
		c := *s
		c.Embedding = nil
		snap.Summaries = append(snap.Summaries, c)
	}

	slices.SortFunc(snap.Messages, func(a, b Message) int {
		return cmp.Or(a.Timestamp.Compare(b.Timestamp), cmp.Compare(a.ID, b.ID))
	})
	slices.SortFunc(snap.Summaries, func(a, b ConversationSummary) int {
		return cmp.Or(a.Timestamp.Compare(b.Timestamp), cmp.Compare(a.ID, b.ID))
	})
	return snap
}

// Restore replaces all engine state with the snapshot. Messages not covered
// by any summary become the conversation buffers, in timestamp order.
// Everything is re-embedded into the indices; embedding failures degrade
// the affected entities to recency-only as in AddMessage.
func (e *Engine) Restore(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: nil snapshot", ErrInvalidInput)
	}
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedSnapshot, snap.Version)
	}

	messages := make(map[string]*Message, len(snap.Messages))
	for i := range snap.Messages {
		m := snap.Messages[i]
		if m.ID == "" || m.ProjectID == "" || m.ConversationID == "" {
			return fmt.Errorf("%w: message %d is missing identifiers", ErrInvalidInput, i)
		}
		m.EmbeddingRef = ""
		messages[m.ID] = &m
	}
	summaries := make(map[string]*ConversationSummary, len(snap.Summaries))
	covered := make(map[string]struct{})
	for i := range snap.Summaries {
		s := snap.Summaries[i]
		if s.ID == "" || len(s.SourceMessageIDs) == 0 {
			return fmt.Errorf("%w: summary %d is missing identifiers", ErrInvalidInput, i)
		}
		s.Embedding = nil
		summaries[s.ID] = &s
		for _, id := range s.SourceMessageIDs {
			covered[id] = struct{}{}
		}
	}

	var messageDocs, summaryDocs []vector.Document
	for _, m := range messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		emb, err := e.embed(ctx, m.Content)
		if err != nil {
			continue
		}
		m.EmbeddingRef = m.ID
		messageDocs = append(messageDocs, messageDocument(m, emb))
	}
	for _, s := range summaries {
		if strings.TrimSpace(s.SummaryText) == "" {
			continue
		}
		emb, err := e.embed(ctx, s.SummaryText)
		if err != nil {
			continue
		}
		s.Embedding = emb
		summaryDocs = append(summaryDocs, summaryDocument(s))
	}

	ordered := make([]*Message, 0, len(messages))
	for _, m := range messages {
		ordered = append(ordered, m)
	}
	slices.SortFunc(ordered, func(a, b *Message) int {
		return cmp.Or(a.Timestamp.Compare(b.Timestamp), cmp.Compare(a.ID, b.ID))
	})

	buffers := make(map[convKey][]*Message)
	projectMessages := make(map[string][]string)
	for _, m := range ordered {
		projectMessages[m.ProjectID] = append(projectMessages[m.ProjectID], m.ID)
		if _, ok := covered[m.ID]; !ok {
			conv := convKey{m.ProjectID, m.ConversationID}
			buffers[conv] = append(buffers[conv], m)
		}
	}

	orderedSummaries := make([]*ConversationSummary, 0, len(summaries))
	for _, s := range summaries {
		orderedSummaries = append(orderedSummaries, s)
	}
	slices.SortFunc(orderedSummaries, func(a, b *ConversationSummary) int {
		return cmp.Or(a.Timestamp.Compare(b.Timestamp), cmp.Compare(a.ID, b.ID))
	})
	convSummaries := make(map[convKey][]string)
	for _, s := range orderedSummaries {
		conv := convKey{s.ProjectID, s.ConversationID}
		convSummaries[conv] = append(convSummaries[conv], s.ID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	wctx := context.WithoutCancel(ctx)
	var errs []error
	if err := e.messageIndex.Delete(wctx, e.indexedMessageIDsLocked()); err != nil {
		errs = append(errs, fmt.Errorf("clearing message index: %w", err))
	}
	if err := e.summaryIndex.Delete(wctx, e.indexedSummaryIDsLocked()); err != nil {
		errs = append(errs, fmt.Errorf("clearing summary index: %w", err))
	}
	if len(messageDocs) > 0 {
		if err := e.messageIndex.Add(wctx, messageDocs); err != nil {
			errs = append(errs, fmt.Errorf("indexing messages: %w", err))
			for _, m := range messages {
				m.EmbeddingRef = ""
			}
		}
	}
	if len(summaryDocs) > 0 {
		if err := e.summaryIndex.Add(wctx, summaryDocs); err != nil {
			errs = append(errs, fmt.Errorf("indexing summaries: %w", err))
			for _, s := range summaries {
				s.Embedding = nil
			}
		}
	}

	e.messages = messages
	e.summaries = summaries
	e.buffers = buffers
	e.convSummaries = convSummaries
	e.projectMessages = projectMessages

	e.cleanups.Add(1)
	e.bump()
	e.responses.clear()

	e.logger.Info("memory restored",
		"messages", len(messages),
		"summaries", len(summaries),
		"indexed_messages", len(messageDocs),
		"indexed_summaries", len(summaryDocs),
	)

	return errors.Join(errs...)
}

func (e *Engine) indexedMessageIDsLocked() []string {
	ids := make([]string, 0, len(e.messages))
	for _, m := range e.messages {
		if m.EmbeddingRef != "" {
			ids = append(ids, m.EmbeddingRef)
		}
	}
	return ids
}

func (e *Engine) indexedSummaryIDsLocked() []string {
	ids := make([]string, 0, len(e.summaries))
	for id, s := range e.summaries {
		if s.Indexed() {
			ids = append(ids, id)
		}
	}
	return ids
}
