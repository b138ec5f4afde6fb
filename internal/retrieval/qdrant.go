package retrieval

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/intelligencedev/agentcore/internal/config"
)

// VectorIndex is the optional ANN backend for the vectorSearch leg of
// hybrid search (§4.3 step 3). A Retriever with no VectorIndex set passes
// the query vector to Store.SearchMessages for that leg; neither bundled
// store ranks by it (the memory store matches by text overlap, the
// Postgres store by its text query only). Setting one lets the index own
// nearest-neighbor lookups while the store stays the source of truth for
// message content.
type VectorIndex interface {
	Upsert(ctx context.Context, messageID string, vec []float32) error
	Search(ctx context.Context, vec []float32, limit int) ([]string, error)
}

// QdrantVectorSearch implements VectorIndex against a Qdrant collection,
// storing each saved message's embedding under its message id as the
// point id so hits resolve straight back to storage.Store.GetMessage.
type QdrantVectorSearch struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantVectorSearch dials the Qdrant gRPC port. The collection is
// created lazily on first Upsert, sized to whatever vector it's given.
func NewQdrantVectorSearch(cfg config.VectorSearchConfig) (*QdrantVectorSearch, error) {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 6334
	}
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("retrieval: connect qdrant %s:%d: %w", host, port, err)
	}
	return &QdrantVectorSearch{client: client, collection: cfg.Collection}, nil
}

func (q *QdrantVectorSearch) ensureCollection(ctx context.Context, dim int) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("retrieval: check qdrant collection: %w", err)
	}
	if exists {
		return nil
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("retrieval: create qdrant collection: %w", err)
	}
	return nil
}

// Upsert indexes one message's embedding. A nil/empty vector (tool or
// empty messages, per I4) is a no-op rather than an error.
func (q *QdrantVectorSearch) Upsert(ctx context.Context, messageID string, vec []float32) error {
	if len(vec) == 0 {
		return nil
	}
	if err := q.ensureCollection(ctx, len(vec)); err != nil {
		return err
	}
	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(messageID),
		Vectors: qdrant.NewVectors(vec...),
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("retrieval: qdrant upsert: %w", err)
	}
	return nil
}

// Search returns the message ids of the nearest neighbors to vec.
func (q *QdrantVectorSearch) Search(ctx context.Context, vec []float32, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	points := q.client.GetPointsClient()
	resp, err := points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: q.collection,
		Vector:         vec,
		Limit:          uint64(limit),
		WithPayload:    qdrant.NewWithPayload(false),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval: qdrant search: %w", err)
	}
	ids := make([]string, 0, len(resp.Result))
	for _, hit := range resp.Result {
		if hit.Id == nil {
			continue
		}
		if uuidID, ok := hit.Id.PointIdOptions.(*qdrant.PointId_Uuid); ok {
			ids = append(ids, uuidID.Uuid)
		}
	}
	return ids, nil
}
