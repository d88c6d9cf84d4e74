package monitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/para-dev/para/internal/store"
)

func newTestAggregator(t *testing.T) (*Aggregator, *store.Store, string) {
	t.Helper()
	repoRoot := t.TempDir()
	st := store.New(repoRoot, 3)
	return New(st), st, repoRoot
}

func TestSnapshotOrdersByName(t *testing.T) {
	agg, st, repoRoot := newTestAggregator(t)

	for _, name := range []string{"zulu", "alpha", "mike"} {
		worktree := filepath.Join(repoRoot, name)
		require.NoError(t, os.MkdirAll(worktree, 0o755))
		require.NoError(t, st.Create(store.Record{
			Name:         name,
			Branch:       "para/" + name,
			WorktreePath: worktree,
			BaseBranch:   "main",
			Status:       store.StatusActive,
			Kind:         store.KindWorktree,
		}))
	}

	views, err := agg.Snapshot(nil)
	require.NoError(t, err)
	require.Len(t, views, 3)
	require.Equal(t, []string{"alpha", "mike", "zulu"}, []string{views[0].Name, views[1].Name, views[2].Name})
}

func TestSnapshotIncludesStatusSample(t *testing.T) {
	agg, st, repoRoot := newTestAggregator(t)
	worktree := filepath.Join(repoRoot, "alpha")
	require.NoError(t, os.MkdirAll(worktree, 0o755))
	require.NoError(t, st.Create(store.Record{
		Name:         "alpha",
		Branch:       "para/alpha",
		WorktreePath: worktree,
		BaseBranch:   "main",
		Status:       store.StatusActive,
		Kind:         store.KindWorktree,
	}))
	require.NoError(t, st.WriteStatus("alpha", store.StatusSample{
		Task:       "writing tests",
		Tests:      store.TestsPassed,
		Confidence: store.ConfidenceHigh,
		TodosDone:  2,
		TodosTotal: 5,
		UpdatedAt:  time.Now().UTC(),
	}))

	views, err := agg.Snapshot(nil)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, "writing tests", views[0].CurrentTask)
	require.Equal(t, store.TestsPassed, views[0].Tests)
	require.Equal(t, store.ConfidenceHigh, views[0].Confidence)
	require.Equal(t, 2, views[0].TodosDone)
	require.Equal(t, 5, views[0].TodosTotal)
}

func TestLastActivityIgnoresGitMetadata(t *testing.T) {
	agg, _, repoRoot := newTestAggregator(t)
	worktree := filepath.Join(repoRoot, "alpha")
	require.NoError(t, os.MkdirAll(filepath.Join(worktree, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(worktree, "README.md"), []byte("hi"), 0o644))

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(worktree, "README.md"), old, old))

	gitFile := filepath.Join(worktree, ".git", "HEAD")
	require.NoError(t, os.WriteFile(gitFile, []byte("ref: refs/heads/main"), 0o644))
	newer := time.Now()
	require.NoError(t, os.Chtimes(gitFile, newer, newer))

	last, err := agg.lastActivity(worktree)
	require.NoError(t, err)
	require.True(t, last.Before(newer) || last.Equal(old))
}

func TestLastActivityCachesWithinTTL(t *testing.T) {
	agg, _, repoRoot := newTestAggregator(t)
	worktree := filepath.Join(repoRoot, "alpha")
	sub := filepath.Join(worktree, "src")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	// A change nested below the worktree root, deep enough that it does not
	// touch the root directory's own mtime, so the TTL (rather than the
	// mtime_of_root key) is what's under test here.
	first, err := agg.lastActivity(worktree)
	require.NoError(t, err)

	nested := filepath.Join(sub, "existing.go")
	require.NoError(t, os.WriteFile(nested, []byte("package src"), 0o644))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(nested, future, future))

	cached, err := agg.lastActivity(worktree)
	require.NoError(t, err)
	require.Equal(t, first, cached)
}

func TestInvalidateCacheForcesRewalk(t *testing.T) {
	agg, _, repoRoot := newTestAggregator(t)
	worktree := filepath.Join(repoRoot, "alpha")
	sub := filepath.Join(worktree, "src")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	_, err := agg.lastActivity(worktree)
	require.NoError(t, err)

	nested := filepath.Join(sub, "existing.go")
	require.NoError(t, os.WriteFile(nested, []byte("package src"), 0o644))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(nested, future, future))

	agg.InvalidateCache(worktree)

	updated, err := agg.lastActivity(worktree)
	require.NoError(t, err)
	require.True(t, updated.Equal(future))
}
