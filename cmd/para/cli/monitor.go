package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newMonitorCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Poll the session snapshot on an interval and reprint it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return writeError(cmd, err)
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			var lastPaths []string
			render := func() error {
				views, err := a.Aggregator.Snapshot(a.orphanProbe(ctx))
				if err != nil {
					return writeError(cmd, err)
				}
				lastPaths = lastPaths[:0]
				for _, v := range views {
					lastPaths = append(lastPaths, v.WorktreePath)
				}
				if jsonOutput {
					return writeResult(cmd, views, nil)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\033[H\033[2J--- %s ---\n", time.Now().UTC().Format(time.RFC3339))
				renderSessionTable(cmd.OutOrStdout(), views)
				return nil
			}

			if err := render(); err != nil {
				return err
			}
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					for _, p := range lastPaths {
						a.Aggregator.InvalidateCache(p)
					}
					if err := render(); err != nil {
						return err
					}
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "refresh interval")
	return cmd
}
