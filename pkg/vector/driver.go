// Package vector provides interfaces and implementations for the semantic
// indices that hold message and summary embeddings.
package vector

import (
	"context"
	"time"
)

// Kind distinguishes the two logical indices.
type Kind string

const (
	KindMessage Kind = "message"
	KindSummary Kind = "summary"
)

// Document represents an indexed item with its embedding and scoping metadata.
type Document struct {
	// ID is the id of the message or summary the embedding belongs to.
	ID string

	Kind           Kind
	ProjectID      string
	ConversationID string
	Timestamp      time.Time

	// Embedding is the vector representation of the document content.
	Embedding []float32
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	Document

	// Score is the cosine similarity to the query (higher = more similar).
	Score float32
}

// Filter restricts a query to documents whose metadata matches every
// non-empty field.
type Filter struct {
	Kind           Kind
	ProjectID      string
	ConversationID string
}

// IsZero reports whether f matches every document.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

// Matches reports whether doc satisfies f.
func (f Filter) Matches(doc Document) bool {
	return (f.Kind == "" || f.Kind == doc.Kind) &&
		(f.ProjectID == "" || f.ProjectID == doc.ProjectID) &&
		(f.ConversationID == "" || f.ConversationID == doc.ConversationID)
}

// Driver handles storage and retrieval of vector embeddings.
type Driver interface {
	// Add stores documents with their embeddings.
	// If a document with the same ID already exists, implementers should update
	// the document.
	Add(ctx context.Context, docs []Document) error

	// Query finds the topK most similar documents matching filter. An empty
	// index yields an empty result, not an error.
	Query(ctx context.Context, embedding []float32, topK int, filter Filter) ([]QueryResult, error)

	// Get retrieves documents by their IDs, skipping unknown ones.
	Get(ctx context.Context, ids []string) ([]Document, error)

	// Delete removes documents by their IDs. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// Count reports the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the driver.
	Close() error
}
