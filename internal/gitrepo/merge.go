package gitrepo

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/para-dev/para/internal/corerr"
)

// MergeStrategy selects how a session's branch is folded back into its
// base during integrate.
type MergeStrategy int

const (
	StrategyFastForward MergeStrategy = iota
	StrategyMerge
	StrategySquash
	StrategyRebase
)

// MergeOutcome reports what happened after attempting a merge.
type MergeOutcome struct {
	Conflicted    bool
	ConflictFiles []string
}

// Merge folds source into the currently checked-out branch (expected to
// be target, checked out by the caller beforehand) using strategy. On
// conflict it leaves the repository in git's native in-progress state
// (MERGE_HEAD / rebase-merge / CHERRY_PICK_HEAD) for a later
// ContinueOperation call, matching git's own conflict-resolution
// workflow rather than inventing a bespoke one.
func (r *Repo) Merge(ctx context.Context, strategy MergeStrategy, source, message string) (MergeOutcome, error) {
	switch strategy {
	case StrategyFastForward:
		if _, _, err := r.runAllowFailure(ctx, "merge", "--ff-only", source); err != nil {
			return r.inspectMergeFailure(ctx, err)
		}
		return MergeOutcome{}, nil

	case StrategyMerge:
		args := []string{"merge", "--no-ff", source}
		if message != "" {
			args = append(args, "-m", message)
		}
		if _, _, err := r.runAllowFailure(ctx, args...); err != nil {
			return r.inspectMergeFailure(ctx, err)
		}
		return MergeOutcome{}, nil

	case StrategySquash:
		if _, _, err := r.runAllowFailure(ctx, "merge", "--squash", source); err != nil {
			return r.inspectMergeFailure(ctx, err)
		}
		// --squash never commits automatically, so once the squashed
		// content is staged without conflicts it is committed here with
		// message.
		if _, err := r.run(ctx, "commit", "-m", message); err != nil {
			return r.inspectMergeFailure(ctx, err)
		}
		return MergeOutcome{}, nil

	case StrategyRebase:
		if _, _, err := r.runAllowFailure(ctx, "rebase", source); err != nil {
			return r.inspectMergeFailure(ctx, err)
		}
		return MergeOutcome{}, nil

	default:
		return MergeOutcome{}, corerr.Newf(corerr.IoError, "unknown merge strategy %d", strategy)
	}
}

// inspectMergeFailure distinguishes a genuine git error from a conflict:
// conflicts leave unmerged paths in the index, which `diff --name-only
// --diff-filter=U` reports.
func (r *Repo) inspectMergeFailure(ctx context.Context, cause error) (MergeOutcome, error) {
	files, listErr := r.ConflictFiles(ctx)
	if listErr == nil && len(files) > 0 {
		return MergeOutcome{Conflicted: true, ConflictFiles: files}, nil
	}
	return MergeOutcome{}, corerr.Wrap(corerr.GitError, cause, "merge failed")
}

// ConflictFiles lists paths with unresolved merge conflicts.
func (r *Repo) ConflictFiles(ctx context.Context) ([]string, error) {
	out, err := r.run(ctx, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// OperationKind identifies which native git operation is currently paused
// awaiting conflict resolution.
type OperationKind int

const (
	OperationNone OperationKind = iota
	OperationMerge
	OperationRebase
	OperationCherryPick
)

// InProgressOperation inspects the repository's git-internal state
// directories/files to determine whether a merge, rebase, or cherry-pick
// is currently paused.
func (r *Repo) InProgressOperation() (OperationKind, error) {
	gitDir := r.CommonGitDir
	if gitDir == "" {
		gitDir = filepath.Join(r.RootPath, ".git")
	}

	if exists(filepath.Join(gitDir, "MERGE_HEAD")) {
		return OperationMerge, nil
	}
	if exists(filepath.Join(gitDir, "CHERRY_PICK_HEAD")) {
		return OperationCherryPick, nil
	}
	if dirExists(filepath.Join(gitDir, "rebase-merge")) || dirExists(filepath.Join(gitDir, "rebase-apply")) {
		return OperationRebase, nil
	}
	return OperationNone, nil
}

// ContinueOperation resumes whatever git operation is currently paused. It
// fails NoOperationInProgress if nothing is paused, and
// UnresolvedConflicts if conflict markers remain staged.
func (r *Repo) ContinueOperation(ctx context.Context) (MergeOutcome, error) {
	kind, err := r.InProgressOperation()
	if err != nil {
		return MergeOutcome{}, err
	}
	if kind == OperationNone {
		return MergeOutcome{}, corerr.New(corerr.NoOperationInProgress, "no merge, rebase, or cherry-pick is in progress")
	}

	if files, ferr := r.ConflictFiles(ctx); ferr == nil && len(files) > 0 {
		return MergeOutcome{Conflicted: true, ConflictFiles: files}, corerr.Newf(corerr.UnresolvedConflicts, "unresolved conflicts remain in %d file(s)", len(files))
	}

	var args []string
	switch kind {
	case OperationMerge:
		args = []string{"commit", "--no-edit"}
	case OperationRebase:
		args = []string{"rebase", "--continue"}
	case OperationCherryPick:
		args = []string{"cherry-pick", "--continue"}
	}

	if _, _, cerr := r.runAllowFailure(ctx, args...); cerr != nil {
		return r.inspectMergeFailure(ctx, cerr)
	}
	return MergeOutcome{}, nil
}

// AbortOperation aborts whatever operation is currently paused, restoring
// the pre-merge working tree state.
func (r *Repo) AbortOperation(ctx context.Context) error {
	kind, err := r.InProgressOperation()
	if err != nil {
		return err
	}
	var args []string
	switch kind {
	case OperationMerge:
		args = []string{"merge", "--abort"}
	case OperationRebase:
		args = []string{"rebase", "--abort"}
	case OperationCherryPick:
		args = []string{"cherry-pick", "--abort"}
	default:
		return corerr.New(corerr.NoOperationInProgress, "no merge, rebase, or cherry-pick is in progress")
	}
	_, err = r.run(ctx, args...)
	return err
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
