package testutils

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"
)

// MockEmbedderDims is the size of vectors produced by MockEmbedder.
const MockEmbedderDims = 64

// MockEmbedder is a test embedder that returns predictable embeddings.
// Texts without an explicit entry in Embeddings get a bag-of-words vector,
// so texts sharing words are similar.
type MockEmbedder struct {
	mu sync.Mutex

	Embeddings map[string][]float32

	// FailOn causes Embed to return an error when the input text matches
	FailOn string

	// Err, when set, is returned by every call.
	Err error

	// Delay is waited (honoring ctx) before answering.
	Delay time.Duration

	calls  int
	inputs []string
	closed bool
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
	}
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.inputs = append(m.inputs, text)
	delay, failErr := m.Delay, m.Err
	emb, explicit := m.Embeddings[text]
	failOn := m.FailOn
	m.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	if failErr != nil {
		return nil, failErr
	}
	if failOn != "" && text == failOn {
		return nil, fmt.Errorf("mock embedding failure for: %s", text)
	}
	if explicit {
		return emb, nil
	}

	return BagOfWords(text), nil
}

// SetErr makes every subsequent call fail with err (nil restores success).
func (m *MockEmbedder) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}

// Calls reports how many times Embed was invoked.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Inputs returns the texts passed to Embed, in call order.
func (m *MockEmbedder) Inputs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.inputs...)
}

func (m *MockEmbedder) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockEmbedder) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// BagOfWords hashes the lowercase words of text into a MockEmbedderDims
// vector. Empty text maps to a fixed unit vector.
func BagOfWords(text string) []float32 {
	vec := make([]float32, MockEmbedderDims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%MockEmbedderDims]++
	}
	if len(words) == 0 {
		vec[MockEmbedderDims-1] = 1
	}
	return vec
}
