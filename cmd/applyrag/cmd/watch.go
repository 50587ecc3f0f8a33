package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/applyrag/applyrag/internal/output"
	"github.com/applyrag/applyrag/internal/tracker"
	"github.com/applyrag/applyrag/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var trackerFlag string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild and sync automatically when the tracker changes",
		Long: `Watch observes the tracker CSV and, after each save settles, rebuilds
the indexes and syncs any new outcome signals. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path, err := trackerPath(cfg, trackerFlag)
			if err != nil {
				return err
			}
			svc, idx, err := openService(cfg)
			if err != nil {
				return err
			}
			defer idx.Close()

			out := output.New(cmd.OutOrStdout())

			rebuild := func(ctx context.Context) error {
				res, err := svc.Build(ctx, path)
				if err != nil {
					return err
				}
				rows, err := tracker.LoadRows(path)
				if err != nil {
					return err
				}
				sync, err := svc.SyncTrackerFeedback(rows)
				if err != nil {
					return err
				}
				out.Successf("rebuilt %d records, synced %d new outcomes", res.Records, sync.Applied)
				return nil
			}

			// Initial pass so the watch starts from a fresh index.
			if err := rebuild(cmd.Context()); err != nil {
				return err
			}

			w := watcher.New(path, watcher.Options{}, rebuild)
			go func() {
				for err := range w.Errors() {
					out.Warningf("rebuild failed: %v", err)
				}
			}()

			out.Successf("watching %s", path)
			err = w.Run(cmd.Context())
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&trackerFlag, "tracker", "t", "", "Tracker CSV path (default from config)")
	return cmd
}
