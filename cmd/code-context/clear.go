// cmd/code-context/clear.go
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear [path]",
	Short: "Remove a repository's index and snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(args[0])
	if err != nil {
		return err
	}

	coordinator, _, err := newCoordinator()
	if err != nil {
		return err
	}

	if err := coordinator.ClearIndex(context.Background(), root, nil); err != nil {
		return fmt.Errorf("clear failed: %w", err)
	}
	fmt.Printf("Index cleared for %s\n", root)
	return nil
}
