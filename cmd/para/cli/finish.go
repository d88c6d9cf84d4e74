package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/para-dev/para/internal/paths"
	"github.com/para-dev/para/internal/sessionmgr"
	"github.com/para-dev/para/internal/store"
)

func newFinishCmd() *cobra.Command {
	var (
		branch    string
		integrate bool
		strategy  string
	)
	cmd := &cobra.Command{
		Use:   "finish <message>",
		Short: "Squash a session's work into one commit and mark it ready for review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if name, worktreePath, ok := inContainer(); ok {
				return writeFinishSignal(cmd, name, worktreePath, args[0], branch)
			}

			a, err := newApp(ctx)
			if err != nil {
				return writeError(cmd, err)
			}

			record, err := a.Manager.Finish(ctx, sessionmgr.FinishOptions{
				Cwd:     cwdOrEmpty(),
				Message: args[0],
				Branch:  branch,
			}, ideCloser{})
			if err != nil {
				return writeError(cmd, err)
			}
			withTelemetryInfo(cmd, string(record.Kind), record.Kind == "Container")

			if client := daemonClientIfRunning(); client != nil {
				_ = client.UnregisterSession(record.Name)
			}

			if err := writeResult(cmd, record, func(w io.Writer) {
				fmt.Fprintf(w, "finished session %s, now on branch %s\n", record.Name, record.Branch)
			}); err != nil {
				return err
			}

			if integrate {
				return runIntegrate(cmd, []string{record.Name}, strategyFromFlag(strategy), false)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&branch, "branch", "", "rename the session's branch before marking it for review")
	cmd.Flags().BoolVar(&integrate, "integrate", false, "immediately integrate after finishing")
	cmd.Flags().StringVar(&strategy, "strategy", "Squash", "integration strategy when --integrate is set: Merge, Squash, Rebase")
	return cmd
}

func cwdOrEmpty() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return cwd
}

// writeFinishSignal is the in-container path: an agent cannot reach the
// host Session Manager directly, so it drops a finish_signal.json for
// the daemon's per-session watcher to pick up.
func writeFinishSignal(cmd *cobra.Command, name, worktreePath, message, branch string) error {
	return writeJSONSignal(cmd, worktreePath, paths.FinishSignalFile, struct {
		Message string `json:"message"`
		Branch  string `json:"branch,omitempty"`
	}{Message: message, Branch: branch}, name, "finish")
}
