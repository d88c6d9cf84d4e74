package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/para-dev/para/internal/paths"
	"github.com/para-dev/para/internal/sessionmgr"
	"github.com/para-dev/para/internal/store"
)

func newCancelCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "cancel [session]",
		Short: "Abandon a session, archiving its branch rather than deleting it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if name, worktreePath, ok := inContainer(); ok {
				return writeCancelSignal(cmd, name, worktreePath, force)
			}

			a, err := newApp(ctx)
			if err != nil {
				return writeError(cmd, err)
			}

			selector := ""
			if len(args) == 1 {
				selector = args[0]
			}

			if !force && !jsonOutput {
				confirmed, err := confirmCancel(selector)
				if err != nil {
					return writeError(cmd, err)
				}
				if !confirmed {
					fmt.Fprintln(cmd.OutOrStdout(), "cancelled nothing")
					return nil
				}
			}

			record, err := a.Manager.Cancel(ctx, sessionmgr.CancelOptions{
				Selector: selector,
				Cwd:      cwdOrEmpty(),
				Force:    force,
			})
			if err != nil {
				return writeError(cmd, err)
			}
			withTelemetryInfo(cmd, string(record.Kind), record.Kind == store.KindContainer)

			if client := daemonClientIfRunning(); client != nil {
				_ = client.UnregisterSession(record.Name)
			}

			return writeResult(cmd, record, func(w io.Writer) {
				fmt.Fprintf(w, "cancelled session %s; archived as %s (run `para recover %s` to restore it)\n", record.Name, record.Branch, record.Name)
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "cancel even with uncommitted changes, and skip the confirmation prompt")
	return cmd
}

// confirmCancel asks for interactive confirmation unless disabled, the
// huh-based confirmation prompt the CLI front-end uses for cancel/clean.
// ACCESSIBLE downgrades huh's own rendering to plain text automatically.
func confirmCancel(selector string) (bool, error) {
	label := selector
	if label == "" {
		label = "the current session"
	}
	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Cancel %s? Its branch will be archived, not deleted.", label)).
				Value(&confirmed),
		),
	)
	if err := form.Run(); err != nil {
		if err == huh.ErrUserAborted {
			return false, nil
		}
		return false, err
	}
	return confirmed, nil
}

func writeCancelSignal(cmd *cobra.Command, name, worktreePath string, force bool) error {
	return writeJSONSignal(cmd, worktreePath, paths.CancelSignalFile, struct {
		Force bool `json:"force"`
	}{Force: force}, name, "cancel")
}
