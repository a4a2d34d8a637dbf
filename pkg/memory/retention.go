package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/papercomputeco/recall/pkg/eventstream"
	"github.com/papercomputeco/recall/pkg/logger"
)

// Cleanup removes every message and summary with a timestamp at or before
// now minus olderThanDays, from storage, buffers, the project index and both
// semantic indices. It holds the engine lock exclusively for the whole
// sweep. Index removal failures are returned joined, after the in-memory
// state has been cleaned.
func (e *Engine) Cleanup(ctx context.Context, olderThanDays int) (res CleanupResult, err error) {
	ctx, span := startSpan(ctx, "memory.Cleanup", attribute.Int("older_than_days", olderThanDays))
	defer func() {
		span.SetAttributes(
			attribute.Int("messages_removed", res.MessagesRemoved),
			attribute.Int("summaries_removed", res.SummariesRemoved),
		)
		endSpan(span, err)
	}()

	if olderThanDays < 0 {
		return CleanupResult{}, fmt.Errorf("%w: older_than_days must not be negative", ErrInvalidInput)
	}

	cutoff := e.now().UTC().Add(-time.Duration(olderThanDays) * 24 * time.Hour)
	res.Cutoff = cutoff
	expired := func(t time.Time) bool { return !t.After(cutoff) }

	e.mu.Lock()
	defer e.mu.Unlock()

	var messageRefs, summaryRefs []string

	for id, m := range e.messages {
		if !expired(m.Timestamp) {
			continue
		}
		delete(e.messages, id)
		if m.EmbeddingRef != "" {
			messageRefs = append(messageRefs, m.EmbeddingRef)
		}
		res.MessagesRemoved++
	}
	for id, s := range e.summaries {
		if !expired(s.Timestamp) {
			continue
		}
		delete(e.summaries, id)
		if s.Indexed() {
			summaryRefs = append(summaryRefs, id)
		}
		res.SummariesRemoved++
	}

	for conv, buf := range e.buffers {
		kept := buf[:0:0]
		for _, m := range buf {
			if _, ok := e.messages[m.ID]; ok {
				kept = append(kept, m)
			}
		}
		e.setBufferLocked(conv, kept)
	}
	for conv, ids := range e.convSummaries {
		e.convSummaries[conv] = keepStored(ids, func(id string) bool { _, ok := e.summaries[id]; return ok })
		if len(e.convSummaries[conv]) == 0 {
			delete(e.convSummaries, conv)
		}
	}
	for project, ids := range e.projectMessages {
		e.projectMessages[project] = keepStored(ids, func(id string) bool { _, ok := e.messages[id]; return ok })
		if len(e.projectMessages[project]) == 0 {
			delete(e.projectMessages, project)
		}
	}

	var errs []error
	wctx := context.WithoutCancel(ctx)
	if len(messageRefs) > 0 {
		if err := e.messageIndex.Delete(wctx, messageRefs); err != nil {
			errs = append(errs, fmt.Errorf("deleting from message index: %w", err))
		}
	}
	if len(summaryRefs) > 0 {
		if err := e.summaryIndex.Delete(wctx, summaryRefs); err != nil {
			errs = append(errs, fmt.Errorf("deleting from summary index: %w", err))
		}
	}

	e.cleanups.Add(1)
	e.bump()
	e.responses.clear()

	e.logger.Info("memory cleanup completed",
		"older_than_days", olderThanDays,
		"messages_removed", res.MessagesRemoved,
		"summaries_removed", res.SummariesRemoved,
	)

	event := eventstream.NewEvent(eventstream.EventTypeCleanupCompleted, "", "")
	event.Cleanup = &eventstream.CleanupPayload{
		OlderThanDays:    olderThanDays,
		Cutoff:           cutoff,
		MessagesRemoved:  res.MessagesRemoved,
		SummariesRemoved: res.SummariesRemoved,
	}
	e.publish(ctx, event)

	return res, errors.Join(errs...)
}

func keepStored(ids []string, stored func(string) bool) []string {
	out := ids[:0:0]
	for _, id := range ids {
		if stored(id) {
			out = append(out, id)
		}
	}
	return out
}

// Stats reports engine totals.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := Stats{
		TotalMessages:     len(e.messages),
		TotalSummaries:    len(e.summaries),
		TotalProjects:     len(e.projectMessages),
		ProviderFailures:  e.providerFailures.Load(),
		EmbeddingsEnabled: e.embedEnabled,
	}

	conversations := make(map[convKey]struct{}, len(e.buffers))
	for _, m := range e.messages {
		st.TotalTokens += m.TokenEstimate
		conversations[convKey{m.ProjectID, m.ConversationID}] = struct{}{}
	}
	for conv := range e.convSummaries {
		conversations[conv] = struct{}{}
	}
	st.TotalConversations = len(conversations)

	for _, buf := range e.buffers {
		st.BufferedMessages += len(buf)
	}

	if sizer, ok := e.embedder.(interface{ Len() int }); ok {
		st.CacheSize = sizer.Len()
	}
	if st.TotalMessages > 0 {
		st.MemoryEfficiency = float64(st.TotalSummaries) / float64(st.TotalMessages)
	}
	return st
}

// Cleaner is the retention surface the Janitor drives.
type Cleaner interface {
	Cleanup(ctx context.Context, olderThanDays int) (CleanupResult, error)
}

// Janitor runs Cleanup on a fixed interval.
type Janitor struct {
	cleaner       Cleaner
	olderThanDays int
	interval      time.Duration
	logger        *slog.Logger
}

// NewJanitor creates a janitor. A zero interval disables it.
func NewJanitor(c Cleaner, olderThanDays int, interval time.Duration, log *slog.Logger) *Janitor {
	return &Janitor{
		cleaner:       c,
		olderThanDays: olderThanDays,
		interval:      interval,
		logger:        logger.OrNop(log),
	}
}

// Run sweeps every interval until ctx is cancelled. Sweep failures are
// logged and do not stop the loop.
func (j *Janitor) Run(ctx context.Context) error {
	if j.interval <= 0 {
		j.logger.Debug("retention janitor disabled")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("retention janitor started",
		"older_than_days", j.olderThanDays,
		"interval", j.interval.String(),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := j.cleaner.Cleanup(ctx, j.olderThanDays); err != nil {
				j.logger.Error("retention sweep failed", "error", err)
			}
		}
	}
}
