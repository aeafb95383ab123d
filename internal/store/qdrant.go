package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/randalmurphal/code-context/internal/chunk"
	cerrors "github.com/randalmurphal/code-context/internal/errors"
)

const (
	denseVectorName  = "dense"
	sparseVectorName = "sparse"
)

// QdrantStore implements VectorStore on a Qdrant instance.
type QdrantStore struct {
	client *qdrant.Client
}

// NewQdrantStore connects to Qdrant at the given host.
func NewQdrantStore(host string) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	return &QdrantStore{client: client}, nil
}

// Close closes the Qdrant connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// CreateCollection creates a dense-vector collection if it doesn't exist.
func (s *QdrantStore) CreateCollection(ctx context.Context, name string, dimension int) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

// CreateHybridCollection creates a collection with a named dense vector plus
// a sparse lexical vector.
func (s *QdrantStore) CreateHybridCollection(ctx context.Context, name string, dimension int) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			denseVectorName: {
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			},
		}),
		SparseVectorsConfig: qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
			sparseVectorName: {},
		}),
	})
}

// DropCollection removes a collection.
func (s *QdrantStore) DropCollection(ctx context.Context, name string) error {
	return s.client.DeleteCollection(ctx, name)
}

// HasCollection reports whether a collection exists.
func (s *QdrantStore) HasCollection(ctx context.Context, name string) (bool, error) {
	return s.client.CollectionExists(ctx, name)
}

// ListCollections lists all collection names.
func (s *QdrantStore) ListCollections(ctx context.Context) ([]string, error) {
	return s.client.ListCollections(ctx)
}

// Insert upserts dense records.
func (s *QdrantStore) Insert(ctx context.Context, collection string, records []Record) error {
	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(r.ID)),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: qdrant.NewValueMap(recordPayload(r)),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	})
	return err
}

// InsertHybrid upserts records with both the dense vector and the sparse
// lexical encoding of the chunk content.
func (s *QdrantStore) InsertHybrid(ctx context.Context, collection string, records []Record) error {
	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		indices, values := EncodeSparse(r.Chunk.Content)
		points[i] = &qdrant.PointStruct{
			Id: qdrant.NewID(pointID(r.ID)),
			Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
				denseVectorName:  qdrant.NewVectorDense(r.Vector),
				sparseVectorName: qdrant.NewVectorSparse(indices, values),
			}),
			Payload: qdrant.NewValueMap(recordPayload(r)),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	})
	return err
}

// DeleteByPaths removes all records belonging to the given relative paths.
func (s *QdrantStore) DeleteByPaths(ctx context.Context, collection string, relativePaths []string) error {
	if len(relativePaths) == 0 {
		return nil
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchKeywords("relativePath", relativePaths...),
			},
		}),
	})
	return err
}

// Query scrolls records matching a payload filter without similarity search.
func (s *QdrantStore) Query(ctx context.Context, collection string, filter map[string]any, limit int) ([]SearchResult, error) {
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         buildFilter(filter),
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(points))
	for _, p := range points {
		c, err := payloadToChunk(p.Payload)
		if err != nil {
			return nil, err
		}
		results = append(results, SearchResult{ID: c.ID(), Chunk: c})
	}
	return results, nil
}

// Search performs dense similarity search.
func (s *QdrantStore) Search(ctx context.Context, collection string, vector []float32, opts SearchOptions) ([]SearchResult, error) {
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(opts.Limit)),
		Filter:         buildFilter(opts.Filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	return scoredResults(points)
}

// HybridSearch fuses the sub-requests with reciprocal rank fusion. Each
// sub-request carries its own limit; the fused list is capped by opts.Limit.
func (s *QdrantStore) HybridSearch(ctx context.Context, collection string, requests []HybridRequest, opts SearchOptions) ([]SearchResult, error) {
	if len(requests) == 0 {
		return nil, fmt.Errorf("hybrid search requires at least one sub-request")
	}

	prefetch := make([]*qdrant.PrefetchQuery, 0, len(requests))
	for _, req := range requests {
		limit := uint64(req.Limit)
		if limit == 0 {
			limit = uint64(opts.Limit)
		}
		if req.Dense != nil {
			prefetch = append(prefetch, &qdrant.PrefetchQuery{
				Query:  qdrant.NewQueryDense(req.Dense),
				Using:  qdrant.PtrOf(denseVectorName),
				Filter: buildFilter(opts.Filter),
				Limit:  qdrant.PtrOf(limit),
			})
			continue
		}
		indices, values := EncodeSparse(req.QueryText)
		prefetch = append(prefetch, &qdrant.PrefetchQuery{
			Query:  qdrant.NewQuerySparse(indices, values),
			Using:  qdrant.PtrOf(sparseVectorName),
			Filter: buildFilter(opts.Filter),
			Limit:  qdrant.PtrOf(limit),
		})
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Prefetch:       prefetch,
		Query:          qdrant.NewQueryFusion(qdrant.Fusion_RRF),
		Limit:          qdrant.PtrOf(uint64(opts.Limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	return scoredResults(points)
}

func scoredResults(points []*qdrant.ScoredPoint) ([]SearchResult, error) {
	results := make([]SearchResult, 0, len(points))
	for _, p := range points {
		c, err := payloadToChunk(p.Payload)
		if err != nil {
			return nil, err
		}
		results = append(results, SearchResult{
			ID:    c.ID(),
			Score: p.Score,
			Chunk: c,
		})
	}
	return results, nil
}

// pointID derives a deterministic UUID from the chunk identity, since Qdrant
// point IDs must be UUIDs or integers.
func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

func recordPayload(r Record) map[string]any {
	return map[string]any{
		"content":      r.Chunk.Content,
		"relativePath": r.Chunk.RelativePath,
		"startLine":    r.Chunk.StartLine,
		"endLine":      r.Chunk.EndLine,
		"language":     r.Chunk.Language,
		"fileMtime":    r.Chunk.FileModifiedAt.UnixMilli(),
		"importCount":  r.Chunk.ImportCount,
	}
}

func payloadToChunk(payload map[string]*qdrant.Value) (chunk.Chunk, error) {
	contentVal, ok := payload["content"]
	if !ok {
		return chunk.Chunk{}, cerrors.NewInvalidResponse("qdrant",
			fmt.Errorf("result payload missing content field"))
	}

	getString := func(key string) string {
		if v, ok := payload[key]; ok {
			return v.GetStringValue()
		}
		return ""
	}
	getInt := func(key string) int {
		if v, ok := payload[key]; ok {
			return int(v.GetIntegerValue())
		}
		return 0
	}

	c := chunk.Chunk{
		Content:      contentVal.GetStringValue(),
		RelativePath: getString("relativePath"),
		StartLine:    getInt("startLine"),
		EndLine:      getInt("endLine"),
		Language:     getString("language"),
		ImportCount:  getInt("importCount"),
	}
	if ms := payload["fileMtime"]; ms != nil {
		c.FileModifiedAt = time.UnixMilli(ms.GetIntegerValue())
	}
	return c, nil
}

func buildFilter(filter map[string]any) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}

	var must []*qdrant.Condition
	for key, value := range filter {
		switch v := value.(type) {
		case string:
			must = append(must, qdrant.NewMatch(key, v))
		case bool:
			must = append(must, qdrant.NewMatchBool(key, v))
		case int:
			must = append(must, qdrant.NewMatchInt(key, int64(v)))
		case int64:
			must = append(must, qdrant.NewMatchInt(key, v))
		}
	}
	return &qdrant.Filter{Must: must}
}
