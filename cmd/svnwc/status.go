package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [PATH]",
	Short: "List children of a directory with their effective status",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		abs, err := targetAbsPath(args)
		if err != nil {
			return err
		}
		children, err := engine.ReadChildren(rootCtx, abs)
		if err != nil {
			return err
		}
		for _, name := range children {
			info, err := engine.ReadInfo(rootCtx, abs+"/"+name)
			if err != nil {
				return err
			}
			marker := " "
			switch {
			case info.Conflicted:
				marker = "C"
			case info.Status != "normal":
				marker = string(info.Status[0])
			}
			fmt.Printf("%s  %-8s %s\n", marker, info.Kind, name)
		}
		return nil
	},
}

var childrenCmd = &cobra.Command{
	Use:   "children [PATH]",
	Short: "List the recorded children of a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		abs, err := targetAbsPath(args)
		if err != nil {
			return err
		}
		children, err := engine.ReadChildren(rootCtx, abs)
		if err != nil {
			return err
		}
		for _, name := range children {
			fmt.Println(name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(childrenCmd)
}
