package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
)

// Summarizer compresses a chunk of buffered messages. Implementations fill
// every field except ID, Timestamp and Embedding, which the engine assigns.
type Summarizer interface {
	Summarize(ctx context.Context, chunk []Message) (ConversationSummary, error)
}

// ExtractiveSummarizer picks the highest scoring sentences of a chunk and
// tags it with keyword based importance and topics.
type ExtractiveSummarizer struct {
	Keywords  []string
	Topics    []Topic
	MaxLength int

	// Sentences is how many sentences are kept.
	Sentences int
}

// NewExtractiveSummarizer builds a summarizer from engine tuning.
func NewExtractiveSummarizer(cfg Config) *ExtractiveSummarizer {
	cfg = cfg.withDefaults()
	return &ExtractiveSummarizer{
		Keywords:  cfg.Keywords,
		Topics:    cfg.Topics,
		MaxLength: cfg.MaxSummaryLength,
		Sentences: 3,
	}
}

func (s *ExtractiveSummarizer) Summarize(_ context.Context, chunk []Message) (ConversationSummary, error) {
	if len(chunk) == 0 {
		return ConversationSummary{}, ErrEmptyChunk
	}

	lines := make([]string, len(chunk))
	ids := make([]string, len(chunk))
	for i, m := range chunk {
		lines[i] = m.Sender + ": " + m.Content
		ids[i] = m.ID
	}
	text := strings.Join(lines, "\n")

	return ConversationSummary{
		ProjectID:        chunk[0].ProjectID,
		ConversationID:   chunk[0].ConversationID,
		SourceMessageIDs: ids,
		SummaryText:      s.extract(text),
		ImportanceScore:  s.importance(chunk),
		Participants:     participants(chunk),
		Topics:           s.topics(text),
	}, nil
}

type scoredSentence struct {
	text  string
	pos   int
	score float64
}

// extract scores every sentence by length, discounted by position, and
// joins the best ones.
func (s *ExtractiveSummarizer) extract(text string) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return ""
	}

	scored := make([]scoredSentence, len(sentences))
	n := float64(len(sentences))
	for i, sentence := range sentences {
		scored[i] = scoredSentence{
			text:  sentence,
			pos:   i,
			score: float64(wordCount(sentence)) * (1 - float64(i)/n*0.5),
		}
	}
	slices.SortStableFunc(scored, func(a, b scoredSentence) int {
		return cmp.Compare(b.score, a.score)
	})

	keep := max(s.Sentences, 1)
	if len(scored) > keep {
		scored = scored[:keep]
	}
	picked := make([]string, len(scored))
	for i, sc := range scored {
		picked[i] = sc.text
	}

	return truncateRunes(strings.Join(picked, ". "), s.MaxLength)
}

func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *ExtractiveSummarizer) importance(chunk []Message) float64 {
	var total float64
	for _, m := range chunk {
		content := strings.ToLower(m.Content)
		words := wordCount(content)
		if words == 0 {
			continue
		}

		var score float64
		for _, kw := range s.Keywords {
			score += float64(strings.Count(content, kw))
		}
		score += min(float64(words)/20, 1)
		total += score
	}

	avg := total / float64(len(chunk))
	return min(max(avg, 0), 1)
}

func (s *ExtractiveSummarizer) topics(text string) []string {
	lower := strings.ToLower(text)
	found := []string{}
	for _, t := range s.Topics {
		for _, kw := range t.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				found = append(found, t.Name)
				break
			}
		}
	}
	return found
}

func participants(chunk []Message) []string {
	seen := make(map[string]struct{}, 2)
	out := []string{}
	for _, m := range chunk {
		if _, ok := seen[m.Sender]; ok {
			continue
		}
		seen[m.Sender] = struct{}{}
		out = append(out, m.Sender)
	}
	return out
}

func truncateRunes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
