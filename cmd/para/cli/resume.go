package cli

import (
	"github.com/spf13/cobra"

	"github.com/para-dev/para/internal/isolate"
	"github.com/para-dev/para/internal/store"
)

func newResumeCmd() *cobra.Command {
	var (
		sandbox        bool
		sandboxProfile string
	)
	cmd := &cobra.Command{
		Use:   "resume [session]",
		Short: "Reattach an interactive editor/agent to an existing session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return writeError(cmd, err)
			}

			selector := ""
			if len(args) == 1 {
				selector = args[0]
			}
			record, err := resolveRecord(a, selector, cwdOrEmpty())
			if err != nil {
				return writeError(cmd, err)
			}

			var launcher *isolate.Launcher
			if record.Kind == store.KindContainer {
				if launcher, err = a.launcher(); err != nil {
					return writeError(cmd, err)
				}
			}

			if jsonOutput {
				return writeResult(cmd, record, nil)
			}

			if err := launchInteractive(ctx, a.Config, record, launcher, sandboxRunOptions{
				Sandboxed: sandbox,
				Profile:   isolate.SandboxProfile(sandboxProfile),
			}, nil); err != nil {
				return writeError(cmd, err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&sandbox, "sandbox", false, "run the editor/agent under a sandbox-exec profile")
	cmd.Flags().StringVar(&sandboxProfile, "sandbox-profile", string(isolate.ProfileStandardProxied), "sandbox profile: permissive-open, permissive-closed, restrictive-closed, standard-proxied")
	return cmd
}
