// cmd/code-context/watch.go
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Watch a repository and re-index on changes",
	Long:  `Index the repository, then watch the tree and incrementally re-index after each debounced batch of file changes.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

var watchDebounce time.Duration

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 2*time.Second, "Debounce window for change batches")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(args[0])
	if err != nil {
		return err
	}

	coordinator, _, err := newCoordinator()
	if err != nil {
		return err
	}

	// Bring the index up to date before watching.
	if _, err := coordinator.IndexCodebase(cmd.Context(), root, nil, false); err != nil {
		return fmt.Errorf("initial index failed: %w", err)
	}

	if err := coordinator.StartWatching(root, nil, watchDebounce); err != nil {
		return fmt.Errorf("failed to start watching: %w", err)
	}
	fmt.Printf("Watching %s (debounce %s). Press Ctrl+C to stop.\n", root, watchDebounce)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	coordinator.StopWatching()

	stats := coordinator.WatcherStats()
	fmt.Printf("\nWatcher stopped:\n")
	fmt.Printf("  Events observed:  %d\n", stats.TotalEvents)
	fmt.Printf("  Events processed: %d\n", stats.ProcessedEvents)
	fmt.Printf("  Errors:           %d\n", stats.Errors)
	return nil
}
