package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/code-context/internal/chunk"
)

func TestPointIDDeterministic(t *testing.T) {
	a := pointID("src/a.go:1-10")
	b := pointID("src/a.go:1-10")
	c := pointID("src/a.go:11-20")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 36) // UUID string form
}

func TestRecordPayloadRoundTrip(t *testing.T) {
	mtime := time.UnixMilli(1700000000000)
	r := Record{
		ID: "src/a.go:1-10",
		Chunk: chunk.Chunk{
			Content:        "func main() {}",
			RelativePath:   "src/a.go",
			StartLine:      1,
			EndLine:        10,
			Language:       "go",
			FileModifiedAt: mtime,
			ImportCount:    3,
		},
	}

	payload := recordPayload(r)
	assert.Equal(t, "func main() {}", payload["content"])
	assert.Equal(t, "src/a.go", payload["relativePath"])
	assert.Equal(t, int64(1700000000000), payload["fileMtime"])
	assert.Equal(t, 3, payload["importCount"])
}

func TestEncodeSparse(t *testing.T) {
	indices, values := EncodeSparse("config parser config loader")
	require.Len(t, indices, 3) // config, parser, loader
	require.Len(t, values, 3)

	// Counts: "config" appears twice.
	total := float32(0)
	for _, v := range values {
		total += v
	}
	assert.Equal(t, float32(4), total)

	// Deterministic encoding.
	again, _ := EncodeSparse("config parser config loader")
	assert.Equal(t, indices, again)
}

func TestEncodeSparseEmpty(t *testing.T) {
	indices, values := EncodeSparse("   ")
	assert.Empty(t, indices)
	assert.Empty(t, values)
}

func TestBuildFilter(t *testing.T) {
	require.Nil(t, buildFilter(nil))

	f := buildFilter(map[string]any{"language": "go", "importCount": 3})
	require.NotNil(t, f)
	assert.Len(t, f.Must, 2)
}

func TestQdrantIntegration(t *testing.T) {
	host := os.Getenv("QDRANT_HOST")
	if host == "" {
		t.Skip("QDRANT_HOST not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := NewQdrantStore(host)
	require.NoError(t, err)
	defer s.Close()

	collection := "test_code_chunks"
	_ = s.DropCollection(ctx, collection)

	require.NoError(t, s.CreateCollection(ctx, collection, 4))

	has, err := s.HasCollection(ctx, collection)
	require.NoError(t, err)
	require.True(t, has)

	rec := Record{
		ID:     "a.go:1-2",
		Vector: []float32{0.1, 0.2, 0.3, 0.4},
		Chunk: chunk.Chunk{
			Content:      "package a",
			RelativePath: "a.go",
			StartLine:    1,
			EndLine:      2,
			Language:     "go",
		},
	}
	require.NoError(t, s.Insert(ctx, collection, []Record{rec}))

	results, err := s.Search(ctx, collection, []float32{0.1, 0.2, 0.3, 0.4}, SearchOptions{Limit: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.go:1-2", results[0].ID)
	assert.Equal(t, "package a", results[0].Chunk.Content)

	require.NoError(t, s.DeleteByPaths(ctx, collection, []string{"a.go"}))
	require.NoError(t, s.DropCollection(ctx, collection))
}
