package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/para-dev/para/internal/monitor"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List every active session with its status, age, and progress",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return writeError(cmd, err)
			}

			views, err := a.Aggregator.Snapshot(a.orphanProbe(ctx))
			if err != nil {
				return writeError(cmd, err)
			}

			return writeResult(cmd, views, func(w io.Writer) {
				renderSessionTable(w, views)
			})
		},
	}
	return cmd
}

func renderSessionTable(w io.Writer, views []monitor.SessionView) {
	if len(views) == 0 {
		fmt.Fprintln(w, "no active sessions")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tSTATUS\tAGE\tTASK\tTODOS\tTESTS\tBLOCKED")
	for _, v := range views {
		task := v.CurrentTask
		if task == "" {
			task = "-"
		}
		todos := "-"
		if v.TodosTotal > 0 {
			todos = fmt.Sprintf("%d/%d", v.TodosDone, v.TodosTotal)
		}
		tests := string(v.Tests)
		if tests == "" {
			tests = "-"
		}
		status := string(v.Status)
		if v.Orphaned {
			status += " (orphaned)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
			v.Name, v.Kind, status, v.Age.Round(time.Second), task, todos, tests, v.Blocked)
	}
	_ = tw.Flush()
}
