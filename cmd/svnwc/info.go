package main

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var infoCmd = &cobra.Command{
	Use:   "info [PATH]",
	Short: "Show the effective state of a node",
	Long: `Display the arbitrated view of one path: its status after layering
the pending local changes over the last-updated base state, plus the
repository coordinates and conflict markers.

Examples:
  svnwc info
  svnwc info src/main.c`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		abs, err := targetAbsPath(args)
		if err != nil {
			return err
		}
		info, err := engine.ReadInfo(rootCtx, abs)
		if err != nil {
			return err
		}

		out := map[string]interface{}{
			"path":   abs,
			"status": string(info.Status),
			"kind":   string(info.Kind),
		}
		if info.Revision >= 0 {
			out["revision"] = info.Revision
		}
		if info.ReposRootURL != "" {
			out["repository_root"] = info.ReposRootURL
			out["repository_uuid"] = info.ReposUUID
			out["repository_path"] = info.ReposRelPath
		}
		if info.ChangedAuthor != "" {
			out["last_changed_author"] = info.ChangedAuthor
			out["last_changed_rev"] = info.ChangedRev
		}
		if !info.Checksum.IsZero() {
			out["checksum"] = info.Checksum.String()
		}
		if info.Changelist != "" {
			out["changelist"] = info.Changelist
		}
		if info.Conflicted {
			out["conflicted"] = true
		}

		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
