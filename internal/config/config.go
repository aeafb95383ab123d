// Package config loads engine configuration from YAML, the per-user env
// file, and the process environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/code-context/internal/rank"
)

// Config holds global configuration.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	Storage   StorageConfig   `yaml:"storage"`
	Indexing  IndexingConfig  `yaml:"indexing"`
	Ranking   rank.Config     `yaml:"ranking"`
}

type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "voyage"
	Model     string `yaml:"model"`
	BatchSize int    `yaml:"batch_size"`
}

type StorageConfig struct {
	QdrantHost string `yaml:"qdrant_host"`
	RedisURL   string `yaml:"redis_url"`
	Neo4jURL   string `yaml:"neo4j_url"`
	Neo4jUser  string `yaml:"neo4j_user"`
	Neo4jPass  string `yaml:"neo4j_password"`
	HybridMode bool   `yaml:"hybrid_mode"`
}

type IndexingConfig struct {
	SupportedExtensions []string `yaml:"supported_extensions"`
	IgnorePatterns      []string `yaml:"ignore_patterns"`
}

// DefaultExtensions are the file extensions indexed out of the box.
func DefaultExtensions() []string {
	return []string{
		".ts", ".tsx", ".js", ".jsx", ".py", ".go", ".java",
		".rs", ".c", ".h", ".cpp", ".hpp", ".cs", ".md",
	}
}

// DefaultIgnorePatterns skip common build output and dependency directories.
// Dot-prefixed entries are always skipped regardless of these patterns.
func DefaultIgnorePatterns() []string {
	return []string{
		"node_modules/",
		"dist/",
		"build/",
		"out/",
		"target/",
		"vendor/",
		"venv/",
		"__pycache__/",
		"*.min.js",
		"*.bundle.js",
		"*.lock",
	}
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:  "voyage",
			Model:     "voyage-code-3",
			BatchSize: 100,
		},
		Storage: StorageConfig{
			QdrantHost: "localhost",
		},
		Indexing: IndexingConfig{
			SupportedExtensions: DefaultExtensions(),
			IgnorePatterns:      DefaultIgnorePatterns(),
		},
		Ranking: rank.DefaultConfig(),
	}
}

// EnvFilePath returns the per-user env file location.
func EnvFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".context", ".env"), nil
}

// LoadConfig loads config from a YAML file (missing file means defaults),
// then applies the env file and process environment on top. Process
// environment values take precedence over the env file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv(loadEnvMap())
	return cfg, nil
}

// loadEnvMap merges the env file under the process environment.
func loadEnvMap() map[string]string {
	env := make(map[string]string)

	if path, err := EnvFilePath(); err == nil {
		if fileEnv, err := godotenv.Read(path); err == nil {
			for k, v := range fileEnv {
				env[k] = v
			}
		}
	}

	for _, key := range []string{
		"HYBRID_MODE", "EMBEDDING_BATCH_SIZE", "EMBEDDING_MODEL",
		"VOYAGE_API_KEY", "QDRANT_HOST", "REDIS_URL",
		"NEO4J_URL", "NEO4J_USER", "NEO4J_PASSWORD",
	} {
		if v, ok := os.LookupEnv(key); ok {
			env[key] = v
		}
	}
	return env
}

func (c *Config) applyEnv(env map[string]string) {
	if v, ok := env["HYBRID_MODE"]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Storage.HybridMode = b
		}
	}
	if v, ok := env["EMBEDDING_BATCH_SIZE"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Embedding.BatchSize = n
		}
	}
	if v, ok := env["EMBEDDING_MODEL"]; ok && v != "" {
		c.Embedding.Model = v
	}
	if v, ok := env["QDRANT_HOST"]; ok && v != "" {
		c.Storage.QdrantHost = v
	}
	if v, ok := env["REDIS_URL"]; ok {
		c.Storage.RedisURL = v
	}
	if v, ok := env["NEO4J_URL"]; ok {
		c.Storage.Neo4jURL = v
	}
	if v, ok := env["NEO4J_USER"]; ok {
		c.Storage.Neo4jUser = v
	}
	if v, ok := env["NEO4J_PASSWORD"]; ok {
		c.Storage.Neo4jPass = v
	}
}

// APIKey returns the provider API key from the environment (env file as
// fallback).
func APIKey(provider string) string {
	switch provider {
	case "voyage":
		if key := os.Getenv("VOYAGE_API_KEY"); key != "" {
			return key
		}
		if path, err := EnvFilePath(); err == nil {
			if fileEnv, err := godotenv.Read(path); err == nil {
				return fileEnv["VOYAGE_API_KEY"]
			}
		}
	}
	return ""
}

// AddExtensions appends extensions not already present.
func (c *Config) AddExtensions(exts []string) {
	seen := make(map[string]struct{}, len(c.Indexing.SupportedExtensions))
	for _, e := range c.Indexing.SupportedExtensions {
		seen[e] = struct{}{}
	}
	for _, e := range exts {
		if _, ok := seen[e]; !ok {
			c.Indexing.SupportedExtensions = append(c.Indexing.SupportedExtensions, e)
			seen[e] = struct{}{}
		}
	}
}

// SetExtensions replaces the extension list.
func (c *Config) SetExtensions(exts []string) {
	c.Indexing.SupportedExtensions = exts
}

// ResetExtensions restores the default extension list.
func (c *Config) ResetExtensions() {
	c.Indexing.SupportedExtensions = DefaultExtensions()
}

// AddIgnorePatterns appends patterns not already present.
func (c *Config) AddIgnorePatterns(patterns []string) {
	seen := make(map[string]struct{}, len(c.Indexing.IgnorePatterns))
	for _, p := range c.Indexing.IgnorePatterns {
		seen[p] = struct{}{}
	}
	for _, p := range patterns {
		if _, ok := seen[p]; !ok {
			c.Indexing.IgnorePatterns = append(c.Indexing.IgnorePatterns, p)
			seen[p] = struct{}{}
		}
	}
}

// SetIgnorePatterns replaces the ignore pattern list.
func (c *Config) SetIgnorePatterns(patterns []string) {
	c.Indexing.IgnorePatterns = patterns
}

// ResetIgnorePatterns restores the default ignore patterns.
func (c *Config) ResetIgnorePatterns() {
	c.Indexing.IgnorePatterns = DefaultIgnorePatterns()
}
