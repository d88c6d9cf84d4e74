package sessionmgr

import (
	"context"

	"github.com/para-dev/para/internal/corerr"
	"github.com/para-dev/para/internal/gitrepo"
	"github.com/para-dev/para/internal/store"
)

// CancelOptions configures a cancel() call.
type CancelOptions struct {
	Selector string
	Cwd      string
	Force    bool
}

// Cancel abandons a session: its branch is moved into the archive
// namespace (not deleted), its worktree and container (if any) are torn
// down, and its SessionRecord is archived as Cancelled.
func (m *Manager) Cancel(ctx context.Context, opts CancelOptions) (*store.Record, error) {
	record, err := m.resolveSession(opts.Selector, opts.Cwd)
	if err != nil {
		return nil, err
	}

	if !opts.Force {
		worktree := gitrepo.Open(record.WorktreePath, "")
		dirty, err := worktree.HasUncommittedChanges(ctx)
		if err != nil {
			return nil, err
		}
		if dirty {
			return nil, corerr.Newf(corerr.UncommittedChanges, "session %q has uncommitted changes; use force to cancel anyway", record.Name)
		}
	}

	archivedBranch, err := m.Repo.MoveToArchive(ctx, record.Branch, m.BranchPrefix+"/archived")
	if err != nil {
		return nil, err
	}

	if err := m.Repo.RemoveWorktree(ctx, record.WorktreePath, true); err != nil {
		return nil, err
	}

	if record.Kind == store.KindContainer && record.ContainerID != "" && m.Launcher != nil {
		_ = m.Launcher.Stop(ctx, record.ContainerID) // best-effort; teardown failure shouldn't block cancel
	}

	if err := m.Store.Update(record.Name, func(r *store.Record) error {
		r.Branch = archivedBranch
		r.Status = store.StatusCancelled
		return nil
	}); err != nil {
		return nil, err
	}

	if err := m.Store.Archive(record.Name, store.StatusCancelled); err != nil {
		return nil, err
	}

	cancelled := *record
	cancelled.Branch = archivedBranch
	cancelled.Status = store.StatusCancelled
	return &cancelled, nil
}
