// Package isolate implements the Isolation Launcher (C6): the OS-sandbox
// and container flavors that wrap an agent/editor command, plus the
// allow-listing proxy, image-policy, pool-cap, and orphan-reaping
// responsibilities that go with the container flavor.
package isolate

import (
	"context"

	"github.com/para-dev/para/internal/config"
	"github.com/para-dev/para/internal/sessionmgr"
)

// Launcher composes the container flavor (satisfying sessionmgr.Launcher,
// for Kind=Container sessions) with the janitor's throttled cleanup. The
// OS sandbox flavor is invoked directly via WrapCommand by callers that
// start an agent/editor process in a plain Worktree-kind session; it has
// no SessionRecord-level state of its own and so is not part of this type.
type Launcher struct {
	Container *ContainerLauncher
	janitor   *Janitor
}

var _ sessionmgr.Launcher = (*Launcher)(nil)

// New constructs a Launcher backed by Docker, wiring the janitor to the
// same client.
func New(cfg *config.DockerConfig) (*Launcher, error) {
	containerLauncher, err := NewContainerLauncher(cfg)
	if err != nil {
		return nil, err
	}
	return &Launcher{
		Container: containerLauncher,
		janitor:   NewJanitor(containerLauncher),
	}, nil
}

// Launch delegates to the Container flavor; it is the method sessionmgr's
// Launcher interface calls for Kind=Container sessions.
func (l *Launcher) Launch(ctx context.Context, opts sessionmgr.LaunchOptions) (string, error) {
	return l.Container.Launch(ctx, opts)
}

// Stop delegates to the Container flavor.
func (l *Launcher) Stop(ctx context.Context, containerID string) error {
	return l.Container.Stop(ctx, containerID)
}

// MaybeRunJanitor runs the time-throttled orphan sweep if due. activeIDs is
// the set of container IDs with a live SessionRecord across every
// repository the caller knows about (the daemon's registered sessions, or a
// single repository's Store for a standalone CLI invocation).
func (l *Launcher) MaybeRunJanitor(ctx context.Context, activeIDs map[string]bool) error {
	return l.janitor.MaybeRun(ctx, activeIDs)
}

// Close releases the underlying Docker connection.
func (l *Launcher) Close() error {
	return l.Container.Close()
}
