package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var lockCmd = &cobra.Command{
	Use:   "lock [PATH]",
	Short: "Take the advisory working-copy lock on a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		abs, err := targetAbsPath(args)
		if err != nil {
			return err
		}
		if err := engine.WCLockSet(rootCtx, abs); err != nil {
			return err
		}
		fmt.Printf("Locked %s\n", abs)
		return nil
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock [PATH]",
	Short: "Release the advisory working-copy lock on a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		abs, err := targetAbsPath(args)
		if err != nil {
			return err
		}
		if err := engine.WCLockRemove(rootCtx, abs); err != nil {
			return err
		}
		fmt.Printf("Unlocked %s\n", abs)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(unlockCmd)
}
