// Package sessionmgr implements the Session Manager (C4): the
// transactional heart that composes the Repository Adapter, the Session
// Store, and (for container sessions) the Isolation Launcher into the
// public create/finish/integrate/cancel/recover/clean operations. Record
// locks are taken inside the Store, one Store call at a time; a public
// method that makes several Store calls does not hold a lock across
// them.
package sessionmgr

import (
	"context"
	"sort"

	"github.com/para-dev/para/internal/corerr"
	"github.com/para-dev/para/internal/gitrepo"
	"github.com/para-dev/para/internal/paths"
	"github.com/para-dev/para/internal/store"
)

// Launcher is the subset of the Isolation Launcher the Session Manager
// depends on, kept as an interface so container provisioning can be
// substituted in tests without standing up real containers.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (containerID string, err error)
	Stop(ctx context.Context, containerID string) error
}

// LaunchOptions is the subset of container-launch configuration the
// Session Manager needs to pass through; the full option set (image,
// mounts, proxy) lives in the Isolation Launcher's own package.
type LaunchOptions struct {
	SessionName      string
	WorktreePath     string
	RepoRoot         string
	Image            string   // CLI-flag override; empty defers to config/built-in default
	ExtraMounts      []string // additional "host:container[:ro]" bind mounts, beyond the workspace
	AllowDomains     []string // extra domains beyond the launcher's essential allow-list
	NetworkIsolation bool
}

// Manager is the Session Manager for one repository.
type Manager struct {
	Repo     *gitrepo.Repo
	Store    *store.Store
	Launcher Launcher

	BranchPrefix string
}

// New constructs a Manager rooted at an already-discovered repository.
// Launcher may be nil if the caller never creates Container-kind sessions.
func New(repo *gitrepo.Repo, st *store.Store, launcher Launcher, branchPrefix string) *Manager {
	if branchPrefix == "" {
		branchPrefix = paths.DefaultBranchPrefix
	}
	return &Manager{Repo: repo, Store: st, Launcher: launcher, BranchPrefix: branchPrefix}
}

// exists adapts Store.Exists to nameid.Exists's (bool, error) shape.
func (m *Manager) exists(name string) (bool, error) {
	return m.Store.Exists(name), nil
}

// resolveSession finds the active record identified by name, a worktree
// path, or the caller's current directory, failing AmbiguousSession or
// SessionNotFound as appropriate. An empty selector falls back to
// auto-detection from cwd.
func (m *Manager) resolveSession(selector, cwd string) (*store.Record, error) {
	if selector != "" {
		record, err := m.Store.Load(selector)
		if err != nil {
			return nil, err
		}
		if record != nil {
			return record, nil
		}
		if byPath, err := m.Store.FindByPath(selector); err == nil && byPath != nil {
			return byPath, nil
		}
		return nil, corerr.Newf(corerr.SessionNotFound, "no active session named or rooted at %q", selector)
	}
	return m.AutoDetect(cwd)
}

// lockOrderedNames returns names sorted ascending, the order in which
// Clean cancels sessions in bulk. Each Cancel locks one record at a time
// through the Store, so no two record locks are ever held together.
func lockOrderedNames(sessionNames []string) []string {
	sorted := append([]string(nil), sessionNames...)
	sort.Strings(sorted)
	return sorted
}

// CleanTmpLeftovers removes any interrupted-write .tmp files, as run once
// at Session Manager startup before any other operation.
func (m *Manager) CleanTmpLeftovers() (int, error) {
	return m.Store.CleanTmpLeftovers()
}
