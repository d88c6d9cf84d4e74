package gitrepo

import (
	"context"
	"strconv"

	"github.com/para-dev/para/internal/corerr"
)

// StageAll stages all changes in the working tree, untracked files
// included (`git add -A`).
// this is best-effort and scoped to the worktree; git
// itself enforces that files outside the working tree are never touched,
// and nested repositories (submodules) are skipped automatically by `git
// add -A` at the top level of a worktree.
func (r *Repo) StageAll(ctx context.Context) error {
	_, err := r.run(ctx, "add", "-A")
	return err
}

// Commit creates a commit with message. allowEmpty permits a commit with
// no staged changes (used when finish is invoked with nothing new to
// commit, to still produce the single named commit the contract promises).
func (r *Repo) Commit(ctx context.Context, message string, allowEmpty bool) error {
	args := []string{"commit", "-m", message}
	if allowEmpty {
		args = append(args, "--allow-empty")
	}
	_, err := r.run(ctx, args...)
	return err
}

// SoftResetTo performs `git reset --soft base`, used to squash multiple
// session commits into one before re-committing.
func (r *Repo) SoftResetTo(ctx context.Context, base string) error {
	_, err := r.run(ctx, "reset", "--soft", base)
	return err
}

// CommitsSince counts commits reachable from HEAD but not from base.
func (r *Repo) CommitsSince(ctx context.Context, base string) (int, error) {
	out, err := r.run(ctx, "rev-list", "--count", base+"..HEAD")
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.Atoi(out)
	if convErr != nil {
		return 0, corerr.Wrap(corerr.GitError, convErr, "parsing rev-list count")
	}
	return n, nil
}

// HeadCommit returns the current commit hash of HEAD.
func (r *Repo) HeadCommit(ctx context.Context) (string, error) {
	return r.run(ctx, "rev-parse", "HEAD")
}

// TreeHash returns the tree object hash that ref points at, used to
// verify squash/merge round-trip properties.
func (r *Repo) TreeHash(ctx context.Context, ref string) (string, error) {
	return r.run(ctx, "rev-parse", ref+"^{tree}")
}

// HasUncommittedChanges reports whether the worktree has any staged or
// unstaged modifications.
func (r *Repo) HasUncommittedChanges(ctx context.Context) (bool, error) {
	out, err := r.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// CurrentBranch returns the short name of the currently checked-out branch.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	return r.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

// Checkout switches the repository's working tree to ref.
func (r *Repo) Checkout(ctx context.Context, ref string) error {
	_, err := r.run(ctx, "checkout", ref)
	return err
}

// FetchDefault performs a best-effort `git fetch` on origin. Failures are
// returned to the caller, which treats remote sync as best-effort.
func (r *Repo) FetchDefault(ctx context.Context) error {
	_, err := r.run(ctx, "fetch", "origin")
	return err
}

// Show returns the content of path as it exists at ref, the "" content
// and no error if path does not exist at ref (e.g. one side of a
// conflict added the file), used by callers rendering a diff of a
// conflicted file between a session's base and its branch tip.
func (r *Repo) Show(ctx context.Context, ref, path string) (string, error) {
	out, stderr, err := r.runAllowFailure(ctx, "show", ref+":"+path)
	if err != nil {
		if _, isExit := asExitError(err); isExit {
			return "", nil
		}
		return "", corerr.Wrap(corerr.GitError, err, stderr)
	}
	return out, nil
}
