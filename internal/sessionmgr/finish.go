package sessionmgr

import (
	"context"
	"fmt"

	"github.com/para-dev/para/internal/corerr"
	"github.com/para-dev/para/internal/gitrepo"
	"github.com/para-dev/para/internal/nameid"
	"github.com/para-dev/para/internal/store"
)

// FinishOptions configures a finish() call.
type FinishOptions struct {
	Selector string // session name, worktree path, or empty for auto-detect
	Cwd      string // used when Selector is empty
	Message  string
	Branch   string // optional rename target
}

// EditorCloser closes the editor window bound to a worktree, best-effort;
// its concrete implementation lives outside this package (it wraps
// whatever IDE integration the caller configured).
type EditorCloser interface {
	Close(ctx context.Context, worktreePath string) error
}

// Finish squashes a session's work into a single named commit, removes
// its worktree, and marks it Review. The worktree's own commit becomes
// the reviewable unit the caller hands off to integrate.
func (m *Manager) Finish(ctx context.Context, opts FinishOptions, editor EditorCloser) (*store.Record, error) {
	record, err := m.resolveSession(opts.Selector, opts.Cwd)
	if err != nil {
		return nil, err
	}

	worktree := gitrepo.Open(record.WorktreePath, "")

	if err := worktree.StageAll(ctx); err != nil {
		return nil, err
	}

	// Always produce a commit carrying message, even if nothing changed
	// this round; then squash it together with any prior session commits
	// into the single reviewable unit the contract promises.
	if err := worktree.Commit(ctx, opts.Message, true); err != nil {
		return nil, err
	}

	commitCount, err := worktree.CommitsSince(ctx, record.BaseBranch)
	if err != nil {
		return nil, err
	}
	if commitCount > 1 {
		if err := worktree.SoftResetTo(ctx, record.BaseBranch); err != nil {
			return nil, err
		}
		if err := worktree.Commit(ctx, opts.Message, true); err != nil {
			return nil, err
		}
	}

	finalBranch := record.Branch
	if opts.Branch != "" {
		finalBranch, err = m.renameWithCollisionSuffix(ctx, record.Branch, opts.Branch)
		if err != nil {
			return nil, err
		}
	}

	if err := m.Repo.RemoveWorktree(ctx, record.WorktreePath, false); err != nil {
		return nil, err
	}

	if editor != nil {
		_ = editor.Close(ctx, record.WorktreePath) // best-effort, logged by the caller
	}

	return m.Store.Update(record.Name, func(r *store.Record) error {
		r.Branch = finalBranch
		r.Status = store.StatusReview
		return nil
	})
}

// renameWithCollisionSuffix renames oldBranch to newBranch, appending
// -{k} for the smallest k>=1 that frees the name on collision.
func (m *Manager) renameWithCollisionSuffix(ctx context.Context, oldBranch, newBranch string) (string, error) {
	if err := nameid.ValidateBranchName(newBranch); err != nil {
		return "", corerr.Wrap(corerr.NameInvalid, err, "invalid branch name")
	}

	candidate := newBranch
	for k := 1; ; k++ {
		taken, err := m.Repo.BranchExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			break
		}
		candidate = fmt.Sprintf("%s-%d", newBranch, k)
	}

	if err := m.Repo.RenameBranch(ctx, oldBranch, candidate); err != nil {
		return "", err
	}
	return candidate, nil
}
