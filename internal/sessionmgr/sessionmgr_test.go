package sessionmgr

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/para-dev/para/internal/corerr"
	"github.com/para-dev/para/internal/gitrepo"
	"github.com/para-dev/para/internal/store"
)

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v failed: %s", args, out)
	return string(out)
}

// newTestManager initializes a throwaway repository with one commit on
// main and a Manager rooted at it.
func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init", "-b", "main")
	runGit(t, dir, "config", "user.email", "para-test@example.com")
	runGit(t, dir, "config", "user.name", "Para Test")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644))
	runGit(t, dir, "add", "-A")
	runGit(t, dir, "commit", "-m", "initial commit")

	repo := gitrepo.Open(dir, filepath.Join(dir, ".git"))
	st := store.New(dir, 3)
	return New(repo, st, nil, "para")
}

func TestCreateGeneratesNameAndWorktree(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	record, err := m.Create(ctx, CreateOptions{Kind: store.KindWorktree})
	require.NoError(t, err)
	require.NotEmpty(t, record.Name)
	require.Equal(t, "para/"+record.Name, record.Branch)
	require.DirExists(t, record.WorktreePath)
	require.Equal(t, store.StatusActive, record.Status)
}

func TestCreateWithExplicitNameCollides(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	_, err := m.Create(ctx, CreateOptions{Name: "widget", Kind: store.KindWorktree})
	require.NoError(t, err)

	_, err = m.Create(ctx, CreateOptions{Name: "widget", Kind: store.KindWorktree})
	require.True(t, corerr.Of(err, corerr.NameTaken))
}

func TestCreateRejectsInvalidName(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	_, err := m.Create(ctx, CreateOptions{Name: "not a valid name!", Kind: store.KindWorktree})
	require.True(t, corerr.Of(err, corerr.NameInvalid))
}

func TestFinishSquashesAndSetsReview(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	record, err := m.Create(ctx, CreateOptions{Name: "widget", Kind: store.KindWorktree})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(record.WorktreePath, "a.txt"), []byte("a\n"), 0o644))
	runGit(t, record.WorktreePath, "add", "-A")
	runGit(t, record.WorktreePath, "commit", "-m", "add a")
	require.NoError(t, os.WriteFile(filepath.Join(record.WorktreePath, "b.txt"), []byte("b\n"), 0o644))
	runGit(t, record.WorktreePath, "add", "-A")
	runGit(t, record.WorktreePath, "commit", "-m", "add b")

	finished, err := m.Finish(ctx, FinishOptions{Selector: "widget", Message: "widget: done"}, nil)
	require.NoError(t, err)
	require.Equal(t, store.StatusReview, finished.Status)
	require.NoDirExists(t, record.WorktreePath)

	out := runGit(t, m.Repo.RootPath, "rev-list", "--count", "main.."+finished.Branch)
	require.Equal(t, "1\n", out, "commits since base should be squashed to exactly one")
}

func TestFinishWithBranchRenameCollision(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	runGit(t, m.Repo.RootPath, "branch", "para/taken")

	record, err := m.Create(ctx, CreateOptions{Name: "widget", Kind: store.KindWorktree})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(record.WorktreePath, "a.txt"), []byte("a\n"), 0o644))

	finished, err := m.Finish(ctx, FinishOptions{Selector: "widget", Message: "done", Branch: "para/taken"}, nil)
	require.NoError(t, err)
	require.Equal(t, "para/taken-1", finished.Branch)
}

func TestIntegrateMergeArchivesAsFinished(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	record, err := m.Create(ctx, CreateOptions{Name: "widget", Kind: store.KindWorktree})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(record.WorktreePath, "a.txt"), []byte("a\n"), 0o644))
	runGit(t, record.WorktreePath, "add", "-A")
	runGit(t, record.WorktreePath, "commit", "-m", "add a")

	finished, err := m.Finish(ctx, FinishOptions{Selector: "widget", Message: "widget: done"}, nil)
	require.NoError(t, err)
	require.Equal(t, store.StatusReview, finished.Status)

	result, err := m.Integrate(ctx, IntegrateOptions{Selector: "widget", Strategy: StrategyMerge})
	require.NoError(t, err)
	require.False(t, result.Paused)
	require.Equal(t, store.StatusFinished, result.Record.Status)

	_, err = m.Store.Load("widget")
	require.NoError(t, err)
	archived, err := m.Store.LoadArchived("widget")
	require.NoError(t, err)
	require.NotNil(t, archived)
}

func TestCancelWithoutForceRejectsUncommittedChanges(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	record, err := m.Create(ctx, CreateOptions{Name: "widget", Kind: store.KindWorktree})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(record.WorktreePath, "a.txt"), []byte("a\n"), 0o644))

	_, err = m.Cancel(ctx, CancelOptions{Selector: "widget"})
	require.True(t, corerr.Of(err, corerr.UncommittedChanges))
}

func TestCancelMovesBranchToArchiveNamespace(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	record, err := m.Create(ctx, CreateOptions{Name: "widget", Kind: store.KindWorktree})
	require.NoError(t, err)

	cancelled, err := m.Cancel(ctx, CancelOptions{Selector: "widget", Force: true})
	require.NoError(t, err)
	require.Equal(t, store.StatusCancelled, cancelled.Status)
	require.Contains(t, cancelled.Branch, "para/archived/")
	require.NoDirExists(t, record.WorktreePath)

	archived, err := m.Store.LoadArchived("widget")
	require.NoError(t, err)
	require.NotNil(t, archived)
}

func TestRecoverReinstatesArchivedSession(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	_, err := m.Create(ctx, CreateOptions{Name: "widget", Kind: store.KindWorktree})
	require.NoError(t, err)
	_, err = m.Cancel(ctx, CancelOptions{Selector: "widget", Force: true})
	require.NoError(t, err)

	recovered, err := m.Recover(ctx, "widget")
	require.NoError(t, err)
	require.Equal(t, "widget", recovered.Name)
	require.Equal(t, store.StatusActive, recovered.Status)
	require.DirExists(t, recovered.WorktreePath)
}

func TestAutoDetectFindsSessionFromWorktreeSubdir(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	record, err := m.Create(ctx, CreateOptions{Name: "widget", Kind: store.KindWorktree})
	require.NoError(t, err)
	sub := filepath.Join(record.WorktreePath, "nested")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	found, err := m.AutoDetect(sub)
	require.NoError(t, err)
	require.Equal(t, "widget", found.Name)
}

func TestAutoDetectFailsOutsideAnySession(t *testing.T) {
	m := newTestManager(t)
	_, err := m.AutoDetect(t.TempDir())
	require.True(t, corerr.Of(err, corerr.NotInSession))
}

func TestIntegrateConflictPausesAndContinueResolves(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	record, err := m.Create(ctx, CreateOptions{Name: "widget", Kind: store.KindWorktree})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(record.WorktreePath, "README.md"), []byte("session change\n"), 0o644))
	runGit(t, record.WorktreePath, "add", "-A")
	runGit(t, record.WorktreePath, "commit", "-m", "session edit")

	_, err = m.Finish(ctx, FinishOptions{Selector: "widget", Message: "widget: done"}, nil)
	require.NoError(t, err)

	// Diverge main so the merge conflicts.
	require.NoError(t, os.WriteFile(filepath.Join(m.Repo.RootPath, "README.md"), []byte("main change\n"), 0o644))
	runGit(t, m.Repo.RootPath, "add", "-A")
	runGit(t, m.Repo.RootPath, "commit", "-m", "main edit")

	result, err := m.Integrate(ctx, IntegrateOptions{Selector: "widget", Strategy: StrategyMerge})
	require.NoError(t, err)
	require.True(t, result.Paused)
	require.Contains(t, result.ConflictFiles, "README.md")

	state, err := m.Store.LoadIntegrationState()
	require.NoError(t, err)
	require.NotNil(t, state)
	require.Equal(t, "widget", state.Session)

	require.NoError(t, os.WriteFile(filepath.Join(m.Repo.RootPath, "README.md"), []byte("resolved\n"), 0o644))
	runGit(t, m.Repo.RootPath, "add", "-A")

	continued, err := m.Continue(ctx)
	require.NoError(t, err)
	require.False(t, continued.Paused)
	require.Equal(t, store.StatusFinished, continued.Record.Status)

	state, err = m.Store.LoadIntegrationState()
	require.NoError(t, err)
	require.Nil(t, state)
}

func TestCleanActiveCancelsAllSessions(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	_, err := m.Create(ctx, CreateOptions{Name: "widget", Kind: store.KindWorktree})
	require.NoError(t, err)
	_, err = m.Create(ctx, CreateOptions{Name: "gadget", Kind: store.KindWorktree})
	require.NoError(t, err)

	result, err := m.Clean(ctx, CleanActive)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"widget", "gadget"}, result.Cleaned)
	require.Empty(t, result.Errors)

	active, err := m.Store.List(nil)
	require.NoError(t, err)
	require.Empty(t, active)
}
