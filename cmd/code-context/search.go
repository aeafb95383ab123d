// cmd/code-context/search.go
package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/code-context/internal/index"
)

var searchCmd = &cobra.Command{
	Use:   "search [path] [query]",
	Short: "Search a repository semantically",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSearch,
}

var (
	searchTopK      int
	searchMinScore  float64
	searchNoRanking bool
)

func init() {
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 5, "Number of results to return")
	searchCmd.Flags().Float64Var(&searchMinScore, "min-score", 0, "Minimum final score")
	searchCmd.Flags().BoolVar(&searchNoRanking, "no-ranking", false, "Return raw vector similarity order")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(args[0])
	if err != nil {
		return err
	}
	query := strings.Join(args[1:], " ")

	coordinator, _, err := newCoordinator()
	if err != nil {
		return err
	}

	hits, err := coordinator.SemanticSearch(context.Background(), root, query, index.SearchOptions{
		TopK:          searchTopK,
		MinScore:      searchMinScore,
		EnableRanking: !searchNoRanking,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(hits) == 0 {
		fmt.Println("No results. Is the repository indexed? Run 'code-context index' first.")
		return nil
	}

	for i, h := range hits {
		fmt.Printf("%d. %s:%d-%d (%s, score %.3f)\n", i+1, h.RelativePath, h.StartLine, h.EndLine, h.Language, h.Score)
		for _, line := range strings.Split(strings.TrimRight(h.Content, "\n"), "\n") {
			fmt.Printf("   %s\n", line)
		}
		fmt.Println()
	}
	return nil
}
