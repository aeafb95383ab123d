// Package store provides vector storage backends for code chunks.
package store

import (
	"context"

	"github.com/randalmurphal/code-context/internal/chunk"
)

// Record pairs a chunk with its embedding. The store writes and deletes
// records but never mutates them in place.
type Record struct {
	ID     string
	Vector []float32
	Chunk  chunk.Chunk
}

// SearchOptions configure a search call.
type SearchOptions struct {
	Limit  int
	Filter map[string]any // payload field -> required value
}

// HybridRequest is one sub-request of a hybrid search: either a dense vector
// or a sparse text query.
type HybridRequest struct {
	Dense     []float32
	QueryText string // encoded to a sparse vector when Dense is nil
	Limit     int
}

// SearchResult is one hit with its similarity score and document payload.
type SearchResult struct {
	ID    string
	Score float32
	Chunk chunk.Chunk
}

// VectorStore persists vectors and answers nearest-neighbour and hybrid
// queries.
type VectorStore interface {
	CreateCollection(ctx context.Context, name string, dimension int) error
	CreateHybridCollection(ctx context.Context, name string, dimension int) error
	DropCollection(ctx context.Context, name string) error
	HasCollection(ctx context.Context, name string) (bool, error)
	ListCollections(ctx context.Context) ([]string, error)

	Insert(ctx context.Context, collection string, records []Record) error
	InsertHybrid(ctx context.Context, collection string, records []Record) error

	// DeleteByPaths removes every record whose chunk belongs to one of the
	// given relative paths.
	DeleteByPaths(ctx context.Context, collection string, relativePaths []string) error

	// Query scrolls records matching a payload filter, without similarity.
	Query(ctx context.Context, collection string, filter map[string]any, limit int) ([]SearchResult, error)

	Search(ctx context.Context, collection string, vector []float32, opts SearchOptions) ([]SearchResult, error)
	HybridSearch(ctx context.Context, collection string, requests []HybridRequest, opts SearchOptions) ([]SearchResult, error)
}
