package main

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/wshe1978/subversion/internal/config"
	"github.com/wshe1978/subversion/internal/wc"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup [PATH]",
	Short: "Replay pending work items and sweep unreferenced pristine texts",
	Long: `Finish operations interrupted by a crash: replay the persisted work
queue in order, then remove pristine texts no node references anymore.

Only one cleanup may run per working copy; concurrent invocations fail
instead of replaying the same items twice.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		abs, err := targetAbsPath(args)
		if err != nil {
			return err
		}

		// Cleanup opens its own engine: the shared one refuses working
		// copies with pending items, which is exactly the state cleanup
		// exists to fix.
		cleanupEngine := wc.Open(wc.Options{
			AutoUpgrade:    config.GetBool("auto-upgrade"),
			EnforceEmptyWQ: false,
			BusyTimeoutMS:  int(config.GetDuration("busy-timeout").Milliseconds()),
		})
		defer func() { _ = cleanupEngine.Close() }()

		wcRoot, err := cleanupEngine.GetWCRoot(rootCtx, abs)
		if err != nil {
			return err
		}

		lock := flock.New(filepath.Join(wcRoot, wc.AdminDirName, "cleanup.lock"))
		locked, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquiring cleanup lock: %w", err)
		}
		if !locked {
			return fmt.Errorf("another cleanup is in progress in %s", wcRoot)
		}
		defer func() { _ = lock.Unlock() }()

		if err := cleanupEngine.RunWorkQueue(rootCtx, abs); err != nil {
			return err
		}
		if err := cleanupEngine.PristineCleanup(rootCtx, abs); err != nil {
			return err
		}
		fmt.Printf("Cleaned up working copy at %s\n", wcRoot)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}
