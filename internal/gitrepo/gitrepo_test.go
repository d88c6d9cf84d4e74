package gitrepo

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// initTestRepo creates a throwaway git repository with one commit on
// main, returning a Repo handle rooted at it.
func initTestRepo(t *testing.T) *Repo {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init", "-b", "main")
	runGit(t, dir, "config", "user.email", "para-test@example.com")
	runGit(t, dir, "config", "user.name", "Para Test")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644))
	runGit(t, dir, "add", "-A")
	runGit(t, dir, "commit", "-m", "initial commit")

	return &Repo{RootPath: dir, CommonGitDir: filepath.Join(dir, ".git")}
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v failed: %s", args, out)
	return string(out)
}

func TestCreateWorktreeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r := initTestRepo(t)
	wtPath := filepath.Join(t.TempDir(), "wt")

	require.NoError(t, r.CreateWorktree(ctx, "feature-1", wtPath, "main"))

	// Calling again with the same branch/path should succeed as a no-op.
	require.NoError(t, r.CreateWorktree(ctx, "feature-1", wtPath, "main"))

	worktrees, err := r.ListWorktrees(ctx)
	require.NoError(t, err)
	found := false
	for _, w := range worktrees {
		if w.Path == wtPath && w.Branch == "feature-1" {
			found = true
		}
	}
	require.True(t, found, "expected worktree at %s on branch feature-1", wtPath)
}

func TestCreateWorktreeConflictsOnDifferentBranch(t *testing.T) {
	ctx := context.Background()
	r := initTestRepo(t)
	wtPath := filepath.Join(t.TempDir(), "wt")

	require.NoError(t, r.CreateWorktree(ctx, "feature-1", wtPath, "main"))
	err := r.CreateWorktree(ctx, "feature-2", wtPath, "main")
	require.Error(t, err)
}

func TestCreateWorktreeBranchAlreadyExists(t *testing.T) {
	ctx := context.Background()
	r := initTestRepo(t)
	runGit(t, r.RootPath, "branch", "taken")

	err := r.CreateWorktree(ctx, "taken", filepath.Join(t.TempDir(), "wt"), "main")
	require.Error(t, err)
}

func TestRemoveWorktree(t *testing.T) {
	ctx := context.Background()
	r := initTestRepo(t)
	wtPath := filepath.Join(t.TempDir(), "wt")
	require.NoError(t, r.CreateWorktree(ctx, "feature-1", wtPath, "main"))

	require.NoError(t, r.RemoveWorktree(ctx, wtPath, false))

	worktrees, err := r.ListWorktrees(ctx)
	require.NoError(t, err)
	for _, w := range worktrees {
		require.NotEqual(t, wtPath, w.Path)
	}
}

func TestRemoveWorktreeRejectsRelativePath(t *testing.T) {
	ctx := context.Background()
	r := initTestRepo(t)
	err := r.RemoveWorktree(ctx, "relative/path", false)
	require.Error(t, err)
}

func TestBranchExists(t *testing.T) {
	ctx := context.Background()
	r := initTestRepo(t)

	exists, err := r.BranchExists(ctx, "main")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = r.BranchExists(ctx, "does-not-exist")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestListBranches(t *testing.T) {
	r := initTestRepo(t)
	runGit(t, r.RootPath, "branch", "feature-a")
	runGit(t, r.RootPath, "branch", "feature-b")

	names, err := r.ListBranches(ScopeLocal)
	require.NoError(t, err)
	require.Contains(t, names, "main")
	require.Contains(t, names, "feature-a")
	require.Contains(t, names, "feature-b")
}

func TestMoveToArchive(t *testing.T) {
	ctx := context.Background()
	r := initTestRepo(t)
	runGit(t, r.RootPath, "branch", "para/demo")

	archived, err := r.MoveToArchive(ctx, "para/demo", "para/archived")
	require.NoError(t, err)
	require.Contains(t, archived, "para/archived/")
	require.Contains(t, archived, "/demo")

	exists, err := r.BranchExists(ctx, archived)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestStageAllAndCommit(t *testing.T) {
	ctx := context.Background()
	r := initTestRepo(t)

	require.NoError(t, os.WriteFile(filepath.Join(r.RootPath, "new.txt"), []byte("data"), 0o644))
	require.NoError(t, r.StageAll(ctx))
	require.NoError(t, r.Commit(ctx, "add new file", false))

	has, err := r.HasUncommittedChanges(ctx)
	require.NoError(t, err)
	require.False(t, has)

	n, err := r.CommitsSince(ctx, "main~1")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestCommitAllowEmpty(t *testing.T) {
	ctx := context.Background()
	r := initTestRepo(t)
	require.NoError(t, r.Commit(ctx, "empty commit", true))

	n, err := r.CommitsSince(ctx, "main~1")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestSoftResetTo(t *testing.T) {
	ctx := context.Background()
	r := initTestRepo(t)
	base, err := r.HeadCommit(ctx)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(r.RootPath, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, r.StageAll(ctx))
	require.NoError(t, r.Commit(ctx, "commit a", false))

	require.NoError(t, os.WriteFile(filepath.Join(r.RootPath, "b.txt"), []byte("b"), 0o644))
	require.NoError(t, r.StageAll(ctx))
	require.NoError(t, r.Commit(ctx, "commit b", false))

	require.NoError(t, r.SoftResetTo(ctx, base))
	require.NoError(t, r.Commit(ctx, "squashed", false))

	n, err := r.CommitsSince(ctx, base)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestMergeFastForward(t *testing.T) {
	ctx := context.Background()
	r := initTestRepo(t)
	wtPath := filepath.Join(t.TempDir(), "wt")
	require.NoError(t, r.CreateWorktree(ctx, "feature-1", wtPath, "main"))

	wt := &Repo{RootPath: wtPath, CommonGitDir: r.CommonGitDir}
	require.NoError(t, os.WriteFile(filepath.Join(wtPath, "feature.txt"), []byte("x"), 0o644))
	require.NoError(t, wt.StageAll(ctx))
	require.NoError(t, wt.Commit(ctx, "feature work", false))

	outcome, err := r.Merge(ctx, StrategyFastForward, "feature-1", "")
	require.NoError(t, err)
	require.False(t, outcome.Conflicted)
}

func TestMergeConflictDetectedAndContinued(t *testing.T) {
	ctx := context.Background()
	r := initTestRepo(t)

	conflictPath := filepath.Join(r.RootPath, "shared.txt")
	require.NoError(t, os.WriteFile(conflictPath, []byte("base\n"), 0o644))
	runGit(t, r.RootPath, "add", "-A")
	runGit(t, r.RootPath, "commit", "-m", "add shared file")

	wtPath := filepath.Join(t.TempDir(), "wt")
	require.NoError(t, r.CreateWorktree(ctx, "feature-1", wtPath, "main"))

	wt := &Repo{RootPath: wtPath, CommonGitDir: r.CommonGitDir}
	require.NoError(t, os.WriteFile(filepath.Join(wtPath, "shared.txt"), []byte("feature change\n"), 0o644))
	require.NoError(t, wt.StageAll(ctx))
	require.NoError(t, wt.Commit(ctx, "feature edits shared", false))

	require.NoError(t, os.WriteFile(conflictPath, []byte("main change\n"), 0o644))
	runGit(t, r.RootPath, "add", "-A")
	runGit(t, r.RootPath, "commit", "-m", "main edits shared")

	outcome, err := r.Merge(ctx, StrategyMerge, "feature-1", "merge feature-1")
	require.NoError(t, err)
	require.True(t, outcome.Conflicted)
	require.Contains(t, outcome.ConflictFiles, "shared.txt")

	kind, err := r.InProgressOperation()
	require.NoError(t, err)
	require.Equal(t, OperationMerge, kind)

	// Resolve and continue.
	require.NoError(t, os.WriteFile(conflictPath, []byte("resolved\n"), 0o644))
	require.NoError(t, r.StageAll(ctx))

	_, err = r.ContinueOperation(ctx)
	require.NoError(t, err)

	kind, err = r.InProgressOperation()
	require.NoError(t, err)
	require.Equal(t, OperationNone, kind)
}

func TestContinueOperationWithoutOneInProgress(t *testing.T) {
	ctx := context.Background()
	r := initTestRepo(t)

	_, err := r.ContinueOperation(ctx)
	require.Error(t, err)
}

func TestDiscover(t *testing.T) {
	ctx := context.Background()
	r := initTestRepo(t)

	d, err := Discover(ctx, r.RootPath)
	require.NoError(t, err)
	require.Equal(t, r.RootPath, d.RootPath)
	require.Len(t, d.Worktrees, 1)
}
