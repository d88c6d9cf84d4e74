package gitrepo

import (
	"context"
	"os"
	"path/filepath"

	"github.com/para-dev/para/internal/corerr"
)

// CreateWorktree creates branch off base and a worktree at path. If path
// already exists and is registered as a worktree of branch, this is a
// no-op success (idempotent create); if path exists but is
// registered to a different branch (or isn't a worktree at all), it fails
// WorktreeConflict.
func (r *Repo) CreateWorktree(ctx context.Context, branch, path, base string) error {
	if discovery, err := r.ListWorktrees(ctx); err == nil {
		if existing, ok := findByPath(discovery, path); ok {
			if existing.Branch == branch {
				return nil
			}
			return corerr.Newf(corerr.WorktreeConflict, "path %s is already a worktree of branch %s", path, existing.Branch)
		}
	}

	if _, err := os.Stat(path); err == nil {
		return corerr.Newf(corerr.WorktreeConflict, "path %s already exists and is not a registered worktree", path)
	}

	exists, err := r.BranchExists(ctx, branch)
	if err != nil {
		return err
	}
	if exists {
		return corerr.Newf(corerr.BranchExists, "branch %s already exists", branch)
	}

	baseExists, err := r.BranchExists(ctx, base)
	if err != nil {
		return err
	}
	if !baseExists {
		// base may be a tag/ref rather than a branch; let git decide.
		if _, resolveErr := r.run(ctx, "rev-parse", "--verify", base); resolveErr != nil {
			return corerr.Newf(corerr.BaseMissing, "base %s does not exist", base)
		}
	}

	if _, err := r.run(ctx, "worktree", "add", "-b", branch, path, base); err != nil {
		return err
	}
	return nil
}

// AddWorktreeForExistingBranch registers a worktree at path for a branch
// that already exists, without creating a new branch. Used by recover
// to reinstate an archived session.
func (r *Repo) AddWorktreeForExistingBranch(ctx context.Context, branch, path string) error {
	exists, err := r.BranchExists(ctx, branch)
	if err != nil {
		return err
	}
	if !exists {
		return corerr.Newf(corerr.BaseMissing, "branch %s does not exist", branch)
	}
	if _, err := os.Stat(path); err == nil {
		return corerr.Newf(corerr.WorktreeConflict, "path %s already exists", path)
	}
	_, err = r.run(ctx, "worktree", "add", path, branch)
	return err
}

// RemoveWorktree removes a worktree's registration and directory. The
// adapter refuses relative or otherwise suspicious paths; the caller (the
// Session Manager) is responsible for enforcing that path lives inside the
// repository's .para/worktrees tree.
func (r *Repo) RemoveWorktree(ctx context.Context, path string, force bool) error {
	if !filepath.IsAbs(path) {
		return corerr.Newf(corerr.IoError, "refusing to remove non-absolute worktree path %q", path)
	}

	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)

	if _, err := r.run(ctx, args...); err != nil {
		if force {
			// The directory may already be gone (e.g. after a previous
			// partial failure); prune stale registration and best-effort
			// remove any leftovers.
			_, _ = r.run(ctx, "worktree", "prune")
			_ = os.RemoveAll(path)
			return nil
		}
		return err
	}
	return nil
}

func findByPath(worktrees []WorktreeInfo, path string) (WorktreeInfo, bool) {
	for _, w := range worktrees {
		if w.Path == path {
			return w, true
		}
	}
	return WorktreeInfo{}, false
}
