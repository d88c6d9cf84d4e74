package cli

import (
	"context"
	"strings"

	"github.com/para-dev/para/internal/config"
	"github.com/para-dev/para/internal/isolate"
	"github.com/para-dev/para/internal/logging"
	"github.com/para-dev/para/internal/store"
)

// ideCloser is the no-op-by-default EditorCloser the documented design
// calls for: window-closing is platform glue with no portable
// implementation, so Close only logs. A desktop integration that can
// actually address a window by session name would replace this.
type ideCloser struct{}

func (ideCloser) Close(ctx context.Context, worktreePath string) error {
	logging.Info(ctx, "editor close requested (no-op IDE integration)", "worktree", worktreePath)
	return nil
}

// resolveEditorCommand implements the wrapper > command > name >
// built-in-default fallback chain over the ide config section.
func resolveEditorCommand(cfg config.IDEConfig) (string, []string) {
	if cfg.Wrapper != "" {
		fields := strings.Fields(cfg.Wrapper)
		return fields[0], fields[1:]
	}
	if cfg.Command != "" {
		return cfg.Command, nil
	}
	if cfg.Name != "" {
		return cfg.Name, nil
	}
	return "bash", nil
}

// sandboxRunOptions configures launchInteractive.
type sandboxRunOptions struct {
	Sandboxed    bool
	Profile      isolate.SandboxProfile
	AllowDomains []string
}

// launchInteractive blocks on an interactive pty-attached command bound
// to worktreePath: the configured editor/agent for a Worktree-kind
// session, wrapped in a sandbox profile if requested, or attached to a
// running container for a Container-kind one. Host CLI processes are
// single-threaded for their one transactional operation, so this simply
// blocks the invoking process rather than tracking the spawned process
// across separate `start`/`finish` invocations.
func launchInteractive(ctx context.Context, cfg *config.Config, record *store.Record, launcher *isolate.Launcher, sandbox sandboxRunOptions, extraEnv []string) error {
	command, args := resolveEditorCommand(cfg.IDE)

	if record.Kind == store.KindContainer {
		if launcher == nil || launcher.Container == nil {
			return nil // no launcher configured; nothing to attach to
		}
		wrapped := launcher.Container.AttachCommand(record.ContainerID, command, args)
		return wrapped.Run(ctx)
	}

	if sandbox.Sandboxed {
		wrapped, err := isolate.WrapCommand(ctx, isolate.SandboxOptions{
			Profile:      sandbox.Profile,
			WorktreePath: record.WorktreePath,
			Command:      command,
			Args:         args,
			Env:          extraEnv,
			ExtraDomains: sandbox.AllowDomains,
		})
		if err != nil {
			return err
		}
		defer func() { _ = wrapped.Stop() }()
		return wrapped.Run(ctx)
	}

	wrapped := &isolate.WrappedCommand{Program: command, Args: args, Env: extraEnv, Dir: record.WorktreePath}
	return wrapped.Run(ctx)
}
