// Package chromem provides an in-process vector driver backed by chromem-go.
package chromem

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/vector"
)

const (
	// DefaultCollectionName is used when Config.CollectionName is empty.
	DefaultCollectionName = "recall"

	metaKind           = "kind"
	metaProjectID      = "project_id"
	metaConversationID = "conversation_id"
	metaTimestamp      = "timestamp"
)

// Config holds configuration for the chromem driver.
type Config struct {
	// CollectionName names the collection; one driver serves one collection.
	CollectionName string

	// Path, when set, persists the database to this directory.
	Path string
}

// Driver implements vector.Driver on a chromem-go collection. Embeddings are
// normalized on insert, so Get returns unit vectors.
type Driver struct {
	db         *chromemgo.DB
	collection *chromemgo.Collection
	logger     *slog.Logger

	mu   sync.Mutex
	dims int
}

// NewDriver opens (or creates) the configured collection.
func NewDriver(c Config, log *slog.Logger) (*Driver, error) {
	log = logger.OrNop(log)

	name := c.CollectionName
	if name == "" {
		name = DefaultCollectionName
	}

	var (
		db  *chromemgo.DB
		err error
	)
	if c.Path != "" {
		db, err = chromemgo.NewPersistentDB(c.Path, false)
		if err != nil {
			return nil, fmt.Errorf("opening chromem database %s: %w", c.Path, err)
		}
	} else {
		db = chromemgo.NewDB()
	}

	// Embeddings are always supplied by the caller, so no embedding func.
	collection, err := db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("getting or creating collection %q: %w", name, err)
	}

	log.Debug("chromem vector driver initialized",
		"collection", name,
		"persistent", c.Path != "",
		"documents", collection.Count(),
	)

	return &Driver{
		db:         db,
		collection: collection,
		logger:     log,
	}, nil
}

// checkDims records the dimensionality of the first embedding and rejects
// mismatches afterwards.
func (d *Driver) checkDims(n int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n == 0 {
		return fmt.Errorf("%w: empty embedding", vector.ErrDimensions)
	}
	if d.dims == 0 {
		d.dims = n
		return nil
	}
	if d.dims != n {
		return fmt.Errorf("%w: got %d, index has %d", vector.ErrDimensions, n, d.dims)
	}
	return nil
}

// Add stores documents with their embeddings. Re-adding an ID replaces it.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	chromemDocs := make([]chromemgo.Document, 0, len(docs))
	for _, doc := range docs {
		if err := d.checkDims(len(doc.Embedding)); err != nil {
			return fmt.Errorf("adding document %s: %w", doc.ID, err)
		}
		chromemDocs = append(chromemDocs, chromemgo.Document{
			ID:        doc.ID,
			Metadata:  toMetadata(doc),
			Embedding: doc.Embedding,
		})
	}

	for _, doc := range chromemDocs {
		if err := d.collection.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("adding document %s: %w", doc.ID, err)
		}
	}

	d.logger.Debug("added documents to chromem", "count", len(docs))
	return nil
}

// Query finds the topK most similar documents matching filter.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int, filter vector.Filter) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	count := d.collection.Count()
	if count == 0 {
		return []vector.QueryResult{}, nil
	}
	if err := d.checkDims(len(embedding)); err != nil {
		return nil, err
	}

	// chromem rejects nResults larger than the collection.
	if topK > count {
		topK = count
	}

	results, err := d.collection.QueryEmbedding(ctx, embedding, topK, toWhere(filter), nil)
	if err != nil {
		return nil, fmt.Errorf("querying chromem: %w", err)
	}

	out := make([]vector.QueryResult, 0, len(results))
	for _, r := range results {
		out = append(out, vector.QueryResult{
			Document: fromChromem(r.ID, r.Metadata, r.Embedding),
			Score:    r.Similarity,
		})
	}

	d.logger.Debug("queried chromem", "results", len(out))
	return out, nil
}

// Get retrieves documents by their IDs.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	docs := make([]vector.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := d.collection.GetByID(ctx, id)
		if err != nil {
			// chromem reports a missing ID as a plain error.
			continue
		}
		docs = append(docs, fromChromem(doc.ID, doc.Metadata, doc.Embedding))
	}
	return docs, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if err := d.collection.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}

	d.logger.Debug("deleted documents from chromem", "count", len(ids))
	return nil
}

func (d *Driver) Count(context.Context) (int, error) {
	return d.collection.Count(), nil
}

// Close releases resources held by the driver. Persistent databases are
// written on every change, so there is nothing to flush.
func (d *Driver) Close() error {
	return nil
}

func toMetadata(doc vector.Document) map[string]string {
	return map[string]string{
		metaKind:           string(doc.Kind),
		metaProjectID:      doc.ProjectID,
		metaConversationID: doc.ConversationID,
		metaTimestamp:      doc.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func toWhere(f vector.Filter) map[string]string {
	if f.IsZero() {
		return nil
	}

	where := make(map[string]string, 3)
	if f.Kind != "" {
		where[metaKind] = string(f.Kind)
	}
	if f.ProjectID != "" {
		where[metaProjectID] = f.ProjectID
	}
	if f.ConversationID != "" {
		where[metaConversationID] = f.ConversationID
	}
	return where
}

func fromChromem(id string, meta map[string]string, embedding []float32) vector.Document {
	doc := vector.Document{
		ID:             id,
		Kind:           vector.Kind(meta[metaKind]),
		ProjectID:      meta[metaProjectID],
		ConversationID: meta[metaConversationID],
		Embedding:      embedding,
	}
	if ts, err := time.Parse(time.RFC3339Nano, meta[metaTimestamp]); err == nil {
		doc.Timestamp = ts
	}
	return doc
}

var _ vector.Driver = (*Driver)(nil)
