package testutils

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/papercomputeco/recall/pkg/vector"
)

// MockVectorDriver is an in-memory brute force vector driver with
// failure injection.
type MockVectorDriver struct {
	mu        sync.Mutex
	documents map[string]vector.Document

	// QueryErr, AddErr and DeleteErr are returned by the matching calls.
	QueryErr  error
	AddErr    error
	DeleteErr error

	queries int
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{
		documents: make(map[string]vector.Document),
	}
}

func (m *MockVectorDriver) Add(_ context.Context, docs []vector.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AddErr != nil {
		return m.AddErr
	}
	for _, d := range docs {
		m.documents[d.ID] = d
	}
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, embedding []float32, topK int, filter vector.Filter) ([]vector.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queries++
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}

	results := []vector.QueryResult{}
	for _, d := range m.documents {
		if !filter.Matches(d) {
			continue
		}
		results = append(results, vector.QueryResult{Document: d, Score: Cosine(embedding, d.Embedding)})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *MockVectorDriver) Get(_ context.Context, ids []string) ([]vector.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var docs []vector.Document
	for _, id := range ids {
		if d, ok := m.documents[id]; ok {
			docs = append(docs, d)
		}
	}
	return docs, nil
}

func (m *MockVectorDriver) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	for _, id := range ids {
		delete(m.documents, id)
	}
	return nil
}

func (m *MockVectorDriver) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.documents), nil
}

// Has reports whether id is indexed.
func (m *MockVectorDriver) Has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.documents[id]
	return ok
}

// Queries reports how many times Query was called.
func (m *MockVectorDriver) Queries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries
}

func (m *MockVectorDriver) Close() error {
	return nil
}

// Cosine returns the cosine similarity of a and b, 0 when either is empty
// or the lengths differ.
func Cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
