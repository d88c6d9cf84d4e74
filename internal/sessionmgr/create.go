package sessionmgr

import (
	"context"
	"time"

	"github.com/para-dev/para/internal/corerr"
	"github.com/para-dev/para/internal/nameid"
	"github.com/para-dev/para/internal/paths"
	"github.com/para-dev/para/internal/store"
)

// CreateOptions configures a create() call.
type CreateOptions struct {
	Name          string // optional; generated if empty
	Kind          store.Kind
	Base          string // optional; defaults to the repository's current branch
	InitialPrompt string // set by dispatch

	// Container-kind-only launch configuration, passed through to the
	// Isolation Launcher unexamined.
	Image            string
	ExtraMounts      []string
	AllowDomains     []string
	NetworkIsolation bool
}

// Create provisions a new session: a branch off Base, a worktree, and
// (for Kind=Container) a launched container. Every step is rolled back
// on a later failure so a partial session is never left behind.
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (*store.Record, error) {
	name := opts.Name
	if name == "" {
		generated, err := nameid.Generate(m.exists)
		if err != nil {
			return nil, corerr.Wrap(corerr.NameInvalid, err, "generating session name")
		}
		name = generated
	} else if err := nameid.ValidateSessionName(name); err != nil {
		return nil, corerr.Wrap(corerr.NameInvalid, err, "invalid session name")
	}

	if m.Store.Exists(name) {
		return nil, corerr.Newf(corerr.NameTaken, "session %q already exists", name)
	}

	base := opts.Base
	if base == "" {
		current, err := m.Repo.CurrentBranch(ctx)
		if err != nil {
			return nil, corerr.Wrap(corerr.BaseMissing, err, "resolving current branch as base")
		}
		base = current
	}

	branch := nameid.BranchForSession(m.BranchPrefix, name)
	if branchErr := nameid.ValidateBranchName(branch); branchErr != nil {
		return nil, corerr.Wrap(corerr.NameInvalid, branchErr, "invalid derived branch name")
	}
	if taken, err := m.Repo.BranchExists(ctx, branch); err != nil {
		return nil, err
	} else if taken {
		return nil, corerr.Newf(corerr.BranchExists, "branch %s already exists", branch)
	}

	worktreePath := paths.WorktreePath(m.Repo.RootPath, name)
	if err := m.Repo.CreateWorktree(ctx, branch, worktreePath, base); err != nil {
		return nil, err
	}

	var containerID string
	if opts.Kind == store.KindContainer {
		if m.Launcher == nil {
			_ = m.Repo.RemoveWorktree(ctx, worktreePath, true)
			return nil, corerr.New(corerr.ContainerLaunchFailed, "no isolation launcher configured for container sessions")
		}
		id, err := m.Launcher.Launch(ctx, LaunchOptions{
			SessionName:      name,
			WorktreePath:     worktreePath,
			RepoRoot:         m.Repo.RootPath,
			Image:            opts.Image,
			ExtraMounts:      opts.ExtraMounts,
			AllowDomains:     opts.AllowDomains,
			NetworkIsolation: opts.NetworkIsolation,
		})
		if err != nil {
			_ = m.Repo.RemoveWorktree(ctx, worktreePath, true)
			return nil, corerr.Wrap(corerr.ContainerLaunchFailed, err, "launching container")
		}
		containerID = id
	}

	record := store.Record{
		Name:          name,
		Branch:        branch,
		WorktreePath:  worktreePath,
		BaseBranch:    base,
		Status:        store.StatusActive,
		Kind:          opts.Kind,
		ContainerID:   containerID,
		InitialPrompt: opts.InitialPrompt,
		CreatedAt:     time.Now().UTC(),
	}

	if err := m.Store.Create(record); err != nil {
		if containerID != "" && m.Launcher != nil {
			_ = m.Launcher.Stop(ctx, containerID)
		}
		_ = m.Repo.RemoveWorktree(ctx, worktreePath, true)
		return nil, err
	}

	return &record, nil
}
