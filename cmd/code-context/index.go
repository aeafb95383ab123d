// cmd/code-context/index.go
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/code-context/internal/index"
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a repository",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndex,
}

var indexForce bool

func init() {
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "Drop the existing index and rebuild")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(args[0])
	if err != nil {
		return err
	}

	coordinator, _, err := newCoordinator()
	if err != nil {
		return err
	}

	fmt.Printf("Indexing %s...\n", root)

	result, err := coordinator.IndexCodebase(context.Background(), root, func(p index.Progress) {
		if p.Total > 0 {
			fmt.Printf("\r%s: %d/%d (%d%%)    ", p.Phase, p.Current, p.Total, p.Percentage)
		} else {
			fmt.Printf("\r%s (%d%%)    ", p.Phase, p.Percentage)
		}
	}, indexForce)
	fmt.Println()
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Printf("\nIndexing complete:\n")
	fmt.Printf("  Files indexed:  %d\n", result.FilesIndexed)
	fmt.Printf("  Files removed:  %d\n", result.FilesRemoved)
	fmt.Printf("  Chunks created: %d\n", result.ChunksCreated)
	if result.Incremental {
		fmt.Printf("  Mode:           incremental\n")
	} else {
		fmt.Printf("  Mode:           full\n")
	}

	return nil
}
