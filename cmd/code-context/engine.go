package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/randalmurphal/code-context/internal/cache"
	"github.com/randalmurphal/code-context/internal/config"
	"github.com/randalmurphal/code-context/internal/embedding"
	"github.com/randalmurphal/code-context/internal/graph"
	"github.com/randalmurphal/code-context/internal/index"
	"github.com/randalmurphal/code-context/internal/metrics"
	"github.com/randalmurphal/code-context/internal/splitter"
	"github.com/randalmurphal/code-context/internal/store"
)

func globalConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".code-context.yaml"
	}
	return filepath.Join(homeDir, ".context", "config.yaml")
}

// newCoordinator wires the coordinator from config: Voyage embedder, Qdrant
// store, AST splitter, plus the optional Redis cache, Neo4j exporter, and
// metrics log.
func newCoordinator() (*index.Coordinator, *config.Config, error) {
	cfg, err := config.LoadConfig(globalConfigPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	apiKey := config.APIKey(cfg.Embedding.Provider)
	if apiKey == "" {
		return nil, nil, fmt.Errorf("VOYAGE_API_KEY not set (environment or ~/.context/.env)")
	}
	embedder := embedding.NewVoyageClient(apiKey, cfg.Embedding.Model)

	vectorStore, err := store.NewQdrantStore(cfg.Storage.QdrantHost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	var opts []index.Option

	if cfg.Storage.RedisURL != "" {
		queryCache, err := cache.NewRedisCache(cfg.Storage.RedisURL)
		if err != nil {
			fmt.Printf("Warning: Redis cache unavailable, continuing without cache: %v\n", err)
		} else {
			opts = append(opts, index.WithQueryCache(queryCache))
		}
	}

	if cfg.Storage.Neo4jURL != "" {
		graphStore, err := graph.NewNeo4jStore(cfg.Storage.Neo4jURL, cfg.Storage.Neo4jUser, cfg.Storage.Neo4jPass)
		if err != nil {
			fmt.Printf("Warning: Neo4j unavailable, import graph will not be exported: %v\n", err)
		} else {
			opts = append(opts, index.WithGraphStore(graphStore))
		}
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		metricsPath := filepath.Join(homeDir, ".context", "metrics.jsonl")
		if err := os.MkdirAll(filepath.Dir(metricsPath), 0755); err == nil {
			if m, err := metrics.NewLogger(metricsPath); err == nil {
				opts = append(opts, index.WithMetrics(m))
			}
		}
	}

	coordinator := index.NewCoordinator(cfg, embedder, vectorStore, splitter.NewCodeSplitter(), opts...)
	return coordinator, cfg, nil
}

func resolveRoot(arg string) (string, error) {
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	if _, err := os.Stat(abs); os.IsNotExist(err) {
		return "", fmt.Errorf("repository not found: %s", abs)
	}
	return abs, nil
}
