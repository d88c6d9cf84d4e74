package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/para-dev/para/internal/corerr"
	"github.com/para-dev/para/internal/sessionmgr"
)

func newCleanCmd() *cobra.Command {
	var (
		archived bool
		orphaned bool
		force    bool
	)
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Bulk-cancel sessions: active by default, or --archived / --orphaned",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return writeError(cmd, err)
			}

			scope := sessionmgr.CleanActive
			label := "all active sessions"
			switch {
			case archived:
				scope = sessionmgr.CleanArchived
				label = "the archived session list"
			case orphaned:
				scope = sessionmgr.CleanOrphaned
				label = "orphaned sessions (missing worktree or branch)"
			}

			if !force && !jsonOutput {
				confirmed, err := confirmClean(label)
				if err != nil {
					return writeError(cmd, err)
				}
				if !confirmed {
					fmt.Fprintln(cmd.OutOrStdout(), "cleaned nothing")
					return nil
				}
			}

			result, err := a.Manager.Clean(ctx, scope)
			if err != nil {
				return writeError(cmd, err)
			}

			// Errors is a map keyed by session name; fold it into one error
			// via multierr so a partial failure still reports every
			// session's problem instead of only the first one encountered.
			var combined error
			for name, sessionErr := range result.Errors {
				combined = multierr.Append(combined, fmt.Errorf("%s: %w", name, sessionErr))
			}

			if err := writeResult(cmd, result, func(w io.Writer) {
				if len(result.Cleaned) == 0 {
					fmt.Fprintln(w, "nothing to clean")
				} else {
					fmt.Fprintf(w, "cleaned %d session(s):\n", len(result.Cleaned))
					for _, name := range result.Cleaned {
						fmt.Fprintf(w, "  %s\n", name)
					}
				}
				if combined != nil {
					fmt.Fprintf(w, "%d session(s) failed to clean:\n", len(result.Errors))
					for _, e := range multierr.Errors(combined) {
						fmt.Fprintf(w, "  %s\n", e)
					}
				}
			}); err != nil {
				return err
			}

			if combined != nil {
				return NewSilentError(corerr.Wrap(corerr.PreconditionFailed, combined, "one or more sessions failed to clean"))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&archived, "archived", false, "report the archived session list instead of cancelling active sessions")
	cmd.Flags().BoolVar(&orphaned, "orphaned", false, "only clean sessions whose worktree or branch is already gone")
	cmd.Flags().BoolVar(&force, "force", false, "skip the confirmation prompt")
	return cmd
}

func confirmClean(label string) (bool, error) {
	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Clean %s? This cannot be undone for archived branches.", label)).
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
