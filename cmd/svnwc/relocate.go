package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var relocateCmd = &cobra.Command{
	Use:   "relocate NEW_URL [PATH]",
	Short: "Repoint the working copy at a moved repository",
	Long: `Rewrite the recorded repository root URL after the repository moved
(for example from http to https, or to a new host). The repository UUID
must be unchanged; relocation never switches to a different repository.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		newURL := args[0]
		target := "."
		if len(args) > 1 {
			target = args[1]
		}
		abs, err := filepath.Abs(target)
		if err != nil {
			return fmt.Errorf("resolving %q: %w", target, err)
		}
		if err := engine.GlobalRelocate(rootCtx, abs, newURL); err != nil {
			return err
		}
		fmt.Printf("Relocated to %s\n", newURL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(relocateCmd)
}
