// cmd/code-context/status.go
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/code-context/internal/merkle"
)

var statusCmd = &cobra.Command{
	Use:   "status [path]",
	Short: "Show index status for a repository",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(args[0])
	if err != nil {
		return err
	}

	coordinator, cfg, err := newCoordinator()
	if err != nil {
		return err
	}

	collection := coordinator.CollectionName(root)
	has, err := coordinator.HasIndex(context.Background(), root)
	if err != nil {
		return err
	}

	fmt.Printf("Repository:  %s\n", root)
	fmt.Printf("Collection:  %s\n", collection)
	fmt.Printf("Hybrid mode: %t\n", cfg.Storage.HybridMode)
	fmt.Printf("Indexed:     %t\n", has)

	if path, err := merkle.SnapshotPath(root); err == nil {
		fmt.Printf("Snapshot:    %s\n", path)
	}

	if coordinator.IsWatching() {
		stats := coordinator.WatcherStats()
		fmt.Printf("Watching:    yes (events %d, processed %d, errors %d)\n",
			stats.TotalEvents, stats.ProcessedEvents, stats.Errors)
	} else {
		fmt.Printf("Watching:    no\n")
	}
	return nil
}
