// svnwc inspects and maintains the administrative database of a working
// copy: effective status, BASE information, cleanup, relocation, locks, and
// the pristine store.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wshe1978/subversion/internal/config"
	"github.com/wshe1978/subversion/internal/wc"
)

var (
	rootCtx = context.Background()

	// engine is created before every command runs; it opens no database
	// until a command resolves a path.
	engine *wc.DB

	flagAutoUpgrade bool
)

var rootCmd = &cobra.Command{
	Use:           "svnwc",
	Short:         "Working copy administrative database tool",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return err
		}
		if cmd.Flags().Changed("auto-upgrade") {
			config.Set("auto-upgrade", flagAutoUpgrade)
		}
		engine = wc.Open(wc.Options{
			AutoUpgrade:    config.GetBool("auto-upgrade"),
			EnforceEmptyWQ: config.GetBool("enforce-empty-wq"),
			BusyTimeoutMS:  int(config.GetDuration("busy-timeout").Milliseconds()),
		})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if engine != nil {
			_ = engine.Close()
		}
	},
}

// targetAbsPath resolves the optional path argument (default ".") to an
// absolute path.
func targetAbsPath(args []string) (string, error) {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", target, err)
	}
	return abs, nil
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&flagAutoUpgrade, "auto-upgrade", false,
		"upgrade the working copy format when it is older than this client")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "svnwc: %v\n", err)
		os.Exit(1)
	}
}
