package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wshe1978/subversion/internal/types"
)

var pristineCmd = &cobra.Command{
	Use:   "pristine",
	Short: "Inspect the pristine text store",
}

var pristineCheckCmd = &cobra.Command{
	Use:   "check CHECKSUM [PATH]",
	Short: "Verify a pristine text exists on disk and in the database",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		checksum, err := types.ParseChecksum(args[0])
		if err != nil {
			return err
		}
		abs, err := targetAbsPath(args[1:])
		if err != nil {
			return err
		}
		ok, err := engine.PristineCheck(rootCtx, abs, checksum)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("pristine %s is missing", checksum)
		}
		fmt.Printf("Present: %s\n", checksum)
		return nil
	},
}

func init() {
	pristineCmd.AddCommand(pristineCheckCmd)
	rootCmd.AddCommand(pristineCmd)
}
