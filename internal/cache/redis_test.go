package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchKeyStableAndDistinct(t *testing.T) {
	a := SearchKey("code_chunks_abc", "find parser", 5, false)
	b := SearchKey("code_chunks_abc", "find parser", 5, false)
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, SearchKey("code_chunks_abc", "find parser", 10, false))
	assert.NotEqual(t, a, SearchKey("code_chunks_abc", "find parser", 5, true))
	assert.NotEqual(t, a, SearchKey("code_chunks_other", "find parser", 5, false))
}

func TestRedisIntegration(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set, skipping integration test")
	}

	c, err := NewRedisCache(url)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	key := SearchKey("test_collection", "q", 5, false)

	require.NoError(t, c.Set(ctx, key, `[{"path":"a.go"}]`, time.Minute))

	val, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `[{"path":"a.go"}]`, val)

	require.NoError(t, c.InvalidateCollection(ctx, "test_collection"))
	val, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, val)
}
