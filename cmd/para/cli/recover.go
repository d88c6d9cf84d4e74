package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/para-dev/para/internal/corerr"
)

func newRecoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recover [session]",
		Short: "Restore an archived session back to Active",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return writeError(cmd, err)
			}

			name := ""
			if len(args) == 1 {
				name = args[0]
			}

			if name == "" {
				if jsonOutput {
					return writeError(cmd, corerr.New(corerr.NameInvalid, "a session name is required in --json mode"))
				}
				name, err = pickArchivedSession(a)
				if err != nil {
					return writeError(cmd, err)
				}
				if name == "" {
					fmt.Fprintln(cmd.OutOrStdout(), "recovered nothing")
					return nil
				}
			}

			record, err := a.Manager.Recover(ctx, name)
			if err != nil {
				return writeError(cmd, err)
			}

			return writeResult(cmd, record, func(w io.Writer) {
				fmt.Fprintf(w, "recovered session %s at %s\n", record.Name, record.WorktreePath)
			})
		},
	}
	return cmd
}

// pickArchivedSession offers an interactive picker over the archive when
// no name is given on the command line, the huh.NewSelect pattern the
// front-end uses wherever a choice among a short list is needed.
func pickArchivedSession(a *app) (string, error) {
	archived, err := a.Manager.ListArchive()
	if err != nil {
		return "", err
	}
	if len(archived) == 0 {
		return "", corerr.New(corerr.SessionNotFound, "the archive is empty")
	}

	options := make([]huh.Option[string], len(archived))
	for i, r := range archived {
		options[i] = huh.NewOption(fmt.Sprintf("%s (%s, archived from %s)", r.Name, r.Kind, r.BaseBranch), r.Name)
	}

	var selected string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Recover which archived session?").
				Options(options...).
				Value(&selected),
		),
	)
	if err := form.Run(); err != nil {
		if err == huh.ErrUserAborted {
			return "", nil
		}
		return "", err
	}
	return selected, nil
}
