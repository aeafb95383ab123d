// Package graph provides optional Neo4j persistence for the import graph.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/randalmurphal/code-context/internal/imports"
)

// Node labels and relationship types in the graph.
const (
	NodeRepository = "Repository"
	NodeFile       = "File"
	NodeModule     = "Module"
	RelContains    = "CONTAINS"
	RelImports     = "IMPORTS"
)

// Neo4jStore exports import edges and file metadata to Neo4j.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
}

// NewNeo4jStore connects to Neo4j at the given bolt URL.
func NewNeo4jStore(url, username, password string) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(url, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Neo4j: %w", err)
	}
	return &Neo4jStore{driver: driver}, nil
}

// Close closes the Neo4j connection.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// VerifyConnectivity checks the connection.
func (s *Neo4jStore) VerifyConnectivity(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

// UpsertFile records a file node with its content hash under a repository.
func (s *Neo4jStore) UpsertFile(ctx context.Context, repo, relPath, hash string) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (r:Repository {name: $repo})
			MERGE (f:File {path: $path, repo: $repo})
			SET f.hash = $hash
			MERGE (r)-[:CONTAINS]->(f)
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"repo": repo,
			"path": relPath,
			"hash": hash,
		})
		return nil, err
	})
	return err
}

// SyncImportGraph replaces the repository's import edges with the analyzer's
// current graph.
func (s *Neo4jStore) SyncImportGraph(ctx context.Context, repo string, g imports.Graph) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		clear := `
			MATCH (:Repository {name: $repo})-[:CONTAINS]->(:File)-[i:IMPORTS]->()
			DELETE i
		`
		if _, err := tx.Run(ctx, clear, map[string]any{"repo": repo}); err != nil {
			return nil, err
		}

		insert := `
			MERGE (r:Repository {name: $repo})
			MERGE (f:File {path: $importer, repo: $repo})
			MERGE (r)-[:CONTAINS]->(f)
			MERGE (m:Module {name: $imported})
			MERGE (f)-[i:IMPORTS]->(m)
			SET i.language = $language, i.line = $line
		`
		for _, e := range g.Edges {
			params := map[string]any{
				"repo":     repo,
				"importer": e.Importer,
				"imported": e.Imported,
				"language": e.Language,
				"line":     e.Line,
			}
			if _, err := tx.Run(ctx, insert, params); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// MostImported returns the top-n modules by importer count for diagnostics.
func (s *Neo4jStore) MostImported(ctx context.Context, repo string, n int) ([]imports.ModuleCount, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (:Repository {name: $repo})-[:CONTAINS]->(:File)-[:IMPORTS]->(m:Module)
			RETURN m.name AS name, count(*) AS imports
			ORDER BY imports DESC, name ASC
			LIMIT $n
		`
		res, err := tx.Run(ctx, query, map[string]any{"repo": repo, "n": n})
		if err != nil {
			return nil, err
		}

		var counts []imports.ModuleCount
		for res.Next(ctx) {
			record := res.Record()
			name, _ := record.Get("name")
			count, _ := record.Get("imports")
			counts = append(counts, imports.ModuleCount{
				Module: name.(string),
				Count:  int(count.(int64)),
			})
		}
		return counts, res.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]imports.ModuleCount), nil
}
