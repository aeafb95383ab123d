package index

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/randalmurphal/code-context/internal/cache"
	"github.com/randalmurphal/code-context/internal/rank"
	"github.com/randalmurphal/code-context/internal/store"
)

// SearchHit is one result of a semantic search.
type SearchHit struct {
	Content      string  `json:"content"`
	RelativePath string  `json:"relativePath"`
	StartLine    int     `json:"startLine"`
	EndLine      int     `json:"endLine"`
	Language     string  `json:"language"`
	Score        float64 `json:"score"`
}

// SearchOptions configure a semantic search.
type SearchOptions struct {
	TopK          int
	MinScore      float64
	Filter        map[string]any
	EnableRanking bool
}

// DefaultSearchOptions returns the standard search options.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{TopK: 5, EnableRanking: true}
}

// SemanticSearch embeds the query, runs a vector (or hybrid) search against
// the root's collection, ranks the candidates, and returns the top hits.
// A root with no collection yields an empty result, not an error.
func (c *Coordinator) SemanticSearch(ctx context.Context, root, query string, opts SearchOptions) ([]SearchHit, error) {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return []SearchHit{}, nil
	}
	collection := c.CollectionName(abs)

	exists, err := c.store.HasCollection(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("check collection %s: %w", collection, err)
	}
	if !exists {
		return []SearchHit{}, nil
	}

	started := time.Now()
	// The cache key does not encode filters or ranking bypass, so only plain
	// ranked searches use the cache.
	cacheable := opts.EnableRanking && len(opts.Filter) == 0 && opts.MinScore == 0
	cacheKey := cache.SearchKey(collection, query, opts.TopK, c.cfg.Storage.HybridMode)
	if hits, ok := c.cachedHits(ctx, cacheKey, cacheable); ok {
		if c.metrics != nil {
			c.metrics.LogSearch(collection, query, len(hits), time.Since(started).Milliseconds(), true)
		}
		return hits, nil
	}

	queryVector, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var results []store.SearchResult
	if c.cfg.Storage.HybridMode {
		results, err = c.store.HybridSearch(ctx, collection, []store.HybridRequest{
			{Dense: queryVector.Values, Limit: opts.TopK},
			{QueryText: query, Limit: opts.TopK},
		}, store.SearchOptions{Limit: opts.TopK, Filter: opts.Filter})
	} else {
		results, err = c.store.Search(ctx, collection, queryVector.Values,
			store.SearchOptions{Limit: opts.TopK, Filter: opts.Filter})
	}
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	hits := c.rankResults(collection, query, results, opts)

	if cacheable {
		c.storeCachedHits(ctx, cacheKey, query, hits)
	}
	if c.metrics != nil {
		c.metrics.LogSearch(collection, query, len(hits), time.Since(started).Milliseconds(), false)
	}
	return hits, nil
}

// rankResults feeds store results through the ranker and shapes hits.
func (c *Coordinator) rankResults(collection, query string, results []store.SearchResult, opts SearchOptions) []SearchHit {
	candidates := make([]rank.Result, len(results))
	for i, r := range results {
		candidates[i] = rank.Result{
			Content:       r.Chunk.Content,
			RelativePath:  r.Chunk.RelativePath,
			StartLine:     r.Chunk.StartLine,
			EndLine:       r.Chunk.EndLine,
			FileExtension: filepath.Ext(r.Chunk.RelativePath),
			ModifiedAt:    r.Chunk.FileModifiedAt,
			VectorScore:   float64(r.Score),
			Metadata: map[string]any{
				"importCount": r.Chunk.ImportCount,
				"language":    r.Chunk.Language,
			},
		}
	}

	ranker := c.ranker
	if !opts.EnableRanking {
		// Bypass: behave exactly like a disabled ranker regardless of the
		// configured weights.
		disabled := c.ranker.Config()
		disabled.Enabled = false
		ranker = rank.NewRanker(disabled)
	} else {
		c.mu.Lock()
		if st, ok := c.collections[collection]; ok {
			ranker.SetMaxImportCount(st.maxImportCount)
		}
		c.mu.Unlock()
	}

	ranked := ranker.Rank(candidates, query, false)

	hits := make([]SearchHit, 0, len(ranked))
	for _, r := range ranked {
		if r.FinalScore < opts.MinScore {
			continue
		}
		hits = append(hits, SearchHit{
			Content:      r.Content,
			RelativePath: r.RelativePath,
			StartLine:    r.StartLine,
			EndLine:      r.EndLine,
			Language:     r.Language,
			Score:        r.FinalScore,
		})
		if len(hits) == opts.TopK {
			break
		}
	}
	return hits
}

// cachedHits returns cached hits for the key, if the cache is configured and
// holds a usable entry.
func (c *Coordinator) cachedHits(ctx context.Context, key string, cacheable bool) ([]SearchHit, bool) {
	if c.queryCache == nil || !cacheable {
		return nil, false
	}
	raw, err := c.queryCache.Get(ctx, key)
	if err != nil || raw == "" {
		return nil, false
	}
	var hits []SearchHit
	if err := json.Unmarshal([]byte(raw), &hits); err != nil {
		return nil, false
	}
	return hits, true
}

func (c *Coordinator) storeCachedHits(ctx context.Context, key, query string, hits []SearchHit) {
	if c.queryCache == nil {
		return
	}
	raw, err := json.Marshal(hits)
	if err != nil {
		return
	}
	if err := c.queryCache.Set(ctx, key, string(raw), 10*time.Minute); err != nil {
		c.logger.Debug("cache write failed", "query", query, "error", err)
	}
}
