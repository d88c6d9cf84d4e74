package cli

import (
	"context"
	"os"

	"github.com/para-dev/para/internal/config"
	"github.com/para-dev/para/internal/corerr"
	"github.com/para-dev/para/internal/gitrepo"
	"github.com/para-dev/para/internal/isolate"
	"github.com/para-dev/para/internal/monitor"
	"github.com/para-dev/para/internal/sessionmgr"
	"github.com/para-dev/para/internal/signalbus"
	"github.com/para-dev/para/internal/store"
)

// app bundles the components every session-touching command needs,
// discovered once per invocation: the repository, its Session Store and
// Manager, the loaded configuration, and a read-side Aggregator. The
// Isolation Launcher is constructed lazily (launcher()) since most
// commands never touch Docker at all.
type app struct {
	Config *config.Config
	Repo   *gitrepo.Repo
	Store  *store.Store
	Manager *sessionmgr.Manager
	Aggregator *monitor.Aggregator

	isolateLauncher *isolate.Launcher
}

// newApp discovers the repository containing the current working
// directory and wires up the Store, Manager, and Aggregator around it.
// The Manager's Launcher starts nil; launcher() builds and attaches one
// on first use by a container-kind operation.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, corerr.Wrap(corerr.IoError, err, "loading configuration")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, corerr.Wrap(corerr.IoError, err, "resolving current directory")
	}

	discovery, err := gitrepo.Discover(ctx, cwd)
	if err != nil {
		return nil, err
	}
	repo := gitrepo.Open(discovery.RootPath, discovery.CommonGitDir)

	st := store.New(discovery.RootPath, cfg.Session.ArchiveKeep)
	if _, err := st.CleanTmpLeftovers(); err != nil {
		return nil, err
	}

	manager := sessionmgr.New(repo, st, nil, cfg.Git.BranchPrefix)
	aggregator := monitor.New(st)

	return &app{Config: cfg, Repo: repo, Store: st, Manager: manager, Aggregator: aggregator}, nil
}

// launcher lazily constructs the Isolation Launcher and attaches it to
// the Manager, so a host process that never launches a container never
// pays the cost of dialing Docker.
func (a *app) launcher() (*isolate.Launcher, error) {
	if a.isolateLauncher != nil {
		return a.isolateLauncher, nil
	}
	l, err := isolate.New(&a.Config.Docker)
	if err != nil {
		return nil, err
	}
	a.isolateLauncher = l
	a.Manager.Launcher = l
	return l, nil
}

// inContainer reports whether this process is itself running inside a
// para-launched container (set by internal/isolate's
// ContainerSessionNameEnv marker), and if so the session name and
// in-container worktree path it belongs to.
func inContainer() (name, worktreePath string, ok bool) {
	name = os.Getenv("PARA_SESSION_NAME")
	worktreePath = os.Getenv("PARA_SESSION_WORKTREE")
	return name, worktreePath, name != "" && worktreePath != ""
}

// orphanProbe is the Store.List/Snapshot callback that flags a record
// whose worktree or branch has gone missing out from under the Store.
func (a *app) orphanProbe(ctx context.Context) func(store.Record) bool {
	return func(r store.Record) bool {
		if _, err := os.Stat(r.WorktreePath); err != nil {
			return true
		}
		exists, err := a.Repo.BranchExists(ctx, r.Branch)
		if err != nil {
			return false
		}
		return !exists
	}
}

// resolveRecord finds the active session named by selector, or the one
// containing cwd when selector is empty, the same name-or-autodetect
// resolution Manager.Finish/Cancel/Integrate use internally.
func resolveRecord(a *app, selector, cwd string) (*store.Record, error) {
	if selector != "" {
		record, err := a.Store.Load(selector)
		if err != nil {
			return nil, err
		}
		if record != nil {
			return record, nil
		}
		if byPath, err := a.Store.FindByPath(selector); err == nil && byPath != nil {
			return byPath, nil
		}
		return nil, corerr.Newf(corerr.SessionNotFound, "no active session named or rooted at %q", selector)
	}
	return a.Manager.AutoDetect(cwd)
}

// daemonClientIfRunning returns a signalbus.Client when a daemon appears
// to be reachable, or nil otherwise. Used to best-effort notify the
// daemon of session lifecycle changes without forcing every command to
// depend on one being up.
func daemonClientIfRunning() *signalbus.Client {
	if !signalbus.Running() {
		return nil
	}
	client, err := signalbus.NewClient()
	if err != nil {
		return nil
	}
	return client
}
