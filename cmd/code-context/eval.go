// cmd/code-context/eval.go
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/code-context/internal/rank"
)

var evalCmd = &cobra.Command{
	Use:   "eval [fixture.json]",
	Short: "Run an offline A/B evaluation of two ranking configurations",
	Long:  `Apply two ranking configurations to pre-computed result sets and report NDCG, MRR, and Precision@k so weights can be tuned empirically.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runEval,
}

var evalDetail bool

func init() {
	evalCmd.Flags().BoolVar(&evalDetail, "detail", false, "Include per-query position changes")
	rootCmd.AddCommand(evalCmd)
}

// evalFixture is the on-disk evaluation input.
type evalFixture struct {
	Queries []struct {
		Query          string   `json:"query"`
		RelevantDocIDs []string `json:"relevantDocIds"`
	} `json:"queries"`
	Results map[string][]struct {
		Content      string  `json:"content"`
		RelativePath string  `json:"relativePath"`
		StartLine    int     `json:"startLine"`
		EndLine      int     `json:"endLine"`
		VectorScore  float64 `json:"vectorScore"`
		FileMtimeMs  int64   `json:"fileMtime"`
		ImportCount  int     `json:"importCount"`
	} `json:"results"`
	ConfigA struct {
		Name   string      `json:"name"`
		Config rank.Config `json:"config"`
	} `json:"configA"`
	ConfigB struct {
		Name   string      `json:"name"`
		Config rank.Config `json:"config"`
	} `json:"configB"`
}

func runEval(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}

	var fixture evalFixture
	if err := json.Unmarshal(data, &fixture); err != nil {
		return fmt.Errorf("decode fixture: %w", err)
	}

	resultSets := make(map[string][]rank.Result, len(fixture.Results))
	for query, rows := range fixture.Results {
		results := make([]rank.Result, len(rows))
		for i, r := range rows {
			results[i] = rank.Result{
				Content:      r.Content,
				RelativePath: r.RelativePath,
				StartLine:    r.StartLine,
				EndLine:      r.EndLine,
				VectorScore:  r.VectorScore,
				ModifiedAt:   time.UnixMilli(r.FileMtimeMs),
				Metadata:     map[string]any{"importCount": r.ImportCount},
			}
		}
		resultSets[query] = results
	}

	queries := make([]rank.TestQuery, len(fixture.Queries))
	for i, q := range fixture.Queries {
		queries[i] = rank.TestQuery{Query: q.Query, RelevantDocIDs: q.RelevantDocIDs}
	}

	evaluator := rank.NewEvaluator(resultSets, evalDetail)
	comparison := evaluator.Compare(queries,
		rank.NamedConfig{Name: fixture.ConfigA.Name, Config: fixture.ConfigA.Config},
		rank.NamedConfig{Name: fixture.ConfigB.Name, Config: fixture.ConfigB.Config})

	fmt.Print(comparison.Report())
	return nil
}
