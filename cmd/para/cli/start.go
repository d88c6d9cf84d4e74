package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/para-dev/para/internal/isolate"
	"github.com/para-dev/para/internal/sessionmgr"
	"github.com/para-dev/para/internal/store"
)

type startFlags struct {
	base             string
	container        bool
	image            string
	mounts           []string
	allowDomains     []string
	networkIsolation bool
	sandbox          bool
	sandboxProfile   string
	noAttach         bool
}

func (f *startFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.base, "base", "", "base branch to fork from (defaults to the current branch)")
	cmd.Flags().BoolVar(&f.container, "container", false, "launch this session inside an isolated container")
	cmd.Flags().StringVar(&f.image, "image", "", "container image (defaults to the configured default image)")
	cmd.Flags().StringSliceVar(&f.mounts, "mount", nil, "extra host:container[:ro] bind mount, repeatable")
	cmd.Flags().StringSliceVar(&f.allowDomains, "allow-domains", nil, "extra domains allow-listed beyond the essential set")
	cmd.Flags().BoolVar(&f.networkIsolation, "network-isolation", false, "require the image to be labeled for network isolation and proxy all egress")
	cmd.Flags().BoolVar(&f.sandbox, "sandbox", false, "run the host-side editor/agent under a sandbox-exec profile")
	cmd.Flags().StringVar(&f.sandboxProfile, "sandbox-profile", string(isolate.ProfileStandardProxied), "sandbox profile: permissive-open, permissive-closed, restrictive-closed, standard-proxied")
	cmd.Flags().BoolVar(&f.noAttach, "no-attach", false, "create the session without attaching an interactive editor/agent")
}

func newStartCmd() *cobra.Command {
	flags := &startFlags{}
	cmd := &cobra.Command{
		Use:   "start [name]",
		Short: "Create a new isolated session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, args, flags, "")
		},
	}
	flags.register(cmd)
	return cmd
}

// runStart is shared by start and dispatch: dispatch is start plus an
// initial prompt forwarded to the freshly created session.
func runStart(cmd *cobra.Command, args []string, flags *startFlags, initialPrompt string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return writeError(cmd, err)
	}

	name := ""
	if len(args) == 1 {
		name = args[0]
	}

	kind := store.KindWorktree
	if flags.container {
		kind = store.KindContainer
		if _, err := a.launcher(); err != nil {
			return writeError(cmd, err)
		}
	}

	record, err := a.Manager.Create(ctx, sessionmgr.CreateOptions{
		Name:             name,
		Kind:             kind,
		Base:             flags.base,
		InitialPrompt:    initialPrompt,
		Image:            flags.image,
		ExtraMounts:      flags.mounts,
		AllowDomains:     flags.allowDomains,
		NetworkIsolation: flags.networkIsolation,
	})
	if err != nil {
		withTelemetryInfo(cmd, string(kind), flags.container)
		return writeError(cmd, err)
	}
	withTelemetryInfo(cmd, string(kind), flags.container)

	if record.Kind == store.KindContainer {
		if client := daemonClientIfRunning(); client != nil {
			_ = client.RegisterContainerSession(record.Name, record.WorktreePath, a.Repo.RootPath)
		}
	}

	if err := writeResult(cmd, record, func(w io.Writer) {
		fmt.Fprintf(w, "started session %s (%s) at %s\n", record.Name, record.Kind, record.WorktreePath)
	}); err != nil {
		return err
	}

	if flags.noAttach || jsonOutput {
		return nil
	}

	var extraEnv []string
	if initialPrompt != "" {
		extraEnv = []string{"PARA_INITIAL_PROMPT=" + initialPrompt}
	}
	launcher, _ := a.launcher()
	if err := launchInteractive(ctx, a.Config, record, launcher, sandboxRunOptions{
		Sandboxed:    flags.sandbox,
		Profile:      isolate.SandboxProfile(flags.sandboxProfile),
		AllowDomains: flags.allowDomains,
	}, extraEnv); err != nil {
		return writeError(cmd, err)
	}
	return nil
}
