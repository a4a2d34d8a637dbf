// Package qdrant provides a vector driver for a remote Qdrant server.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	qd "github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/vector"
)

const (
	// DefaultCollectionName is used when Config.Collection is empty.
	DefaultCollectionName = "recall"

	// DefaultPort is Qdrant's gRPC port.
	DefaultPort = 6334

	payloadDocID          = "doc_id"
	payloadKind           = "kind"
	payloadProjectID      = "project_id"
	payloadConversationID = "conversation_id"
	payloadTimestamp      = "timestamp"
)

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Target is "host", "host:port" or a URL such as "https://host:6334".
	Target string

	APIKey     string
	Collection string
	Dimensions uint
}

// Driver implements vector.Driver on a Qdrant collection using cosine
// distance. Point IDs are derived from document IDs with UUIDv5; the
// original ID travels in the payload.
type Driver struct {
	client     *qd.Client
	collection string
	logger     *slog.Logger
}

// Endpoint is a parsed Qdrant target.
type Endpoint struct {
	Host   string
	Port   int
	UseTLS bool
}

// ParseTarget splits a configured target into host, port and TLS usage.
func ParseTarget(target string) (Endpoint, error) {
	ep := Endpoint{Port: DefaultPort}
	if target == "" {
		return ep, fmt.Errorf("qdrant target is required")
	}

	hostport := target
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		ep.UseTLS = u.Scheme == "https"
		hostport = u.Host
	}

	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		// No port given.
		ep.Host = hostport
		return ep, nil
	}

	p, err := strconv.Atoi(port)
	if err != nil {
		return ep, fmt.Errorf("invalid qdrant port %q: %w", port, err)
	}
	ep.Host = host
	ep.Port = p
	return ep, nil
}

// NewDriver connects to Qdrant and creates the collection if needed.
func NewDriver(ctx context.Context, c Config, log *slog.Logger) (*Driver, error) {
	log = logger.OrNop(log)

	if c.Dimensions == 0 {
		return nil, fmt.Errorf("qdrant embedding dimensions cannot be 0, must be configured")
	}

	ep, err := ParseTarget(c.Target)
	if err != nil {
		return nil, err
	}

	collection := c.Collection
	if collection == "" {
		collection = DefaultCollectionName
	}

	client, err := qd.NewClient(&qd.Config{
		Host:   ep.Host,
		Port:   ep.Port,
		APIKey: c.APIKey,
		UseTLS: ep.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating qdrant client: %v", vector.ErrConnection, err)
	}

	exists, err := client.CollectionExists(ctx, collection)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: checking collection %q: %v", vector.ErrConnection, collection, err)
	}

	if !exists {
		err := client.CreateCollection(ctx, &qd.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qd.NewVectorsConfig(&qd.VectorParams{
				Size:     uint64(c.Dimensions),
				Distance: qd.Distance_Cosine,
			}),
		})
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("creating collection %q: %w", collection, err)
		}
	}

	log.Info("connected to qdrant",
		"host", ep.Host,
		"port", ep.Port,
		"collection", collection,
		"created", !exists,
	)

	return &Driver{
		client:     client,
		collection: collection,
		logger:     log,
	}, nil
}

// PointID maps a document ID onto the UUID used as the Qdrant point ID.
func PointID(docID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("recall:"+docID)).String()
}

// Add stores documents with their embeddings, overwriting existing IDs.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qd.PointStruct, 0, len(docs))
	for _, doc := range docs {
		points = append(points, &qd.PointStruct{
			Id:      qd.NewID(PointID(doc.ID)),
			Vectors: qd.NewVectors(doc.Embedding...),
			Payload: qd.NewValueMap(map[string]any{
				payloadDocID:          doc.ID,
				payloadKind:           string(doc.Kind),
				payloadProjectID:      doc.ProjectID,
				payloadConversationID: doc.ConversationID,
				payloadTimestamp:      doc.Timestamp.UnixNano(),
			}),
		})
	}

	_, err := d.client.Upsert(ctx, &qd.UpsertPoints{
		CollectionName: d.collection,
		Wait:           qd.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	d.logger.Debug("added documents to qdrant", "count", len(docs))
	return nil
}

// Query finds the topK most similar documents matching filter.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int, filter vector.Filter) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	points, err := d.client.Query(ctx, &qd.QueryPoints{
		CollectionName: d.collection,
		Query:          qd.NewQuery(embedding...),
		Limit:          qd.PtrOf(uint64(topK)),
		Filter:         toFilter(filter),
		WithPayload:    qd.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying qdrant: %w", err)
	}

	results := make([]vector.QueryResult, 0, len(points))
	for _, p := range points {
		results = append(results, vector.QueryResult{
			Document: fromPayload(p.GetPayload()),
			Score:    p.GetScore(),
		})
	}

	d.logger.Debug("queried qdrant", "results", len(results))
	return results, nil
}

// Get retrieves documents by their IDs.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	points, err := d.client.Get(ctx, &qd.GetPoints{
		CollectionName: d.collection,
		Ids:            pointIDs(ids),
		WithPayload:    qd.NewWithPayload(true),
		WithVectors:    qd.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting points: %w", err)
	}

	docs := make([]vector.Document, 0, len(points))
	for _, p := range points {
		doc := fromPayload(p.GetPayload())
		doc.Embedding = p.GetVectors().GetVector().GetData()
		docs = append(docs, doc)
	}
	return docs, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := d.client.Delete(ctx, &qd.DeletePoints{
		CollectionName: d.collection,
		Wait:           qd.PtrOf(true),
		Points:         qd.NewPointsSelector(pointIDs(ids)...),
	})
	if err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}

	d.logger.Debug("deleted documents from qdrant", "count", len(ids))
	return nil
}

// Count reports the exact number of points in the collection.
func (d *Driver) Count(ctx context.Context) (int, error) {
	n, err := d.client.Count(ctx, &qd.CountPoints{
		CollectionName: d.collection,
		Exact:          qd.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	return int(n), nil
}

// Close closes the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

func pointIDs(ids []string) []*qd.PointId {
	out := make([]*qd.PointId, 0, len(ids))
	for _, id := range ids {
		out = append(out, qd.NewID(PointID(id)))
	}
	return out
}

func toFilter(f vector.Filter) *qd.Filter {
	if f.IsZero() {
		return nil
	}

	var must []*qd.Condition
	if f.Kind != "" {
		must = append(must, qd.NewMatch(payloadKind, string(f.Kind)))
	}
	if f.ProjectID != "" {
		must = append(must, qd.NewMatch(payloadProjectID, f.ProjectID))
	}
	if f.ConversationID != "" {
		must = append(must, qd.NewMatch(payloadConversationID, f.ConversationID))
	}
	return &qd.Filter{Must: must}
}

func fromPayload(p map[string]*qd.Value) vector.Document {
	return vector.Document{
		ID:             p[payloadDocID].GetStringValue(),
		Kind:           vector.Kind(p[payloadKind].GetStringValue()),
		ProjectID:      p[payloadProjectID].GetStringValue(),
		ConversationID: p[payloadConversationID].GetStringValue(),
		Timestamp:      time.Unix(0, p[payloadTimestamp].GetIntegerValue()).UTC(),
	}
}

var _ vector.Driver = (*Driver)(nil)
