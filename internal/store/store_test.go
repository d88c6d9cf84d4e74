package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/para-dev/para/internal/corerr"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	return New(root, 3), root
}

func sampleRecord(name string) Record {
	return Record{
		Name:         name,
		Branch:       "para/" + name,
		WorktreePath: filepath.Join("/tmp", name),
		BaseBranch:   "main",
		Status:       StatusActive,
		Kind:         KindWorktree,
	}
}

func TestCreateAndLoad(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Create(sampleRecord("alpha")))

	loaded, err := s.Load("alpha")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, "alpha", loaded.Name)
	require.Equal(t, SchemaVersion, loaded.SchemaVersion)
	require.False(t, loaded.CreatedAt.IsZero())
}

func TestCreateDuplicateFails(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Create(sampleRecord("alpha")))

	err := s.Create(sampleRecord("alpha"))
	require.Error(t, err)
	require.True(t, corerr.Of(err, corerr.AlreadyExists))
}

func TestLoadMissingReturnsNil(t *testing.T) {
	s, _ := newTestStore(t)
	loaded, err := s.Load("ghost")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestUpdateMutatesAndStampsTimestamp(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Create(sampleRecord("alpha")))

	before, err := s.Load("alpha")
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	updated, err := s.Update("alpha", func(r *Record) error {
		r.Status = StatusReview
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, StatusReview, updated.Status)
	require.True(t, updated.LastModified.After(before.LastModified))
}

func TestUpdateMissingSessionFails(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Update("ghost", func(r *Record) error { return nil })
	require.Error(t, err)
	require.True(t, corerr.Of(err, corerr.SessionNotFound))
}

func TestListReturnsAllActive(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Create(sampleRecord("alpha")))
	require.NoError(t, s.Create(sampleRecord("beta")))

	records, err := s.List(nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
}

func TestListFlagsOrphans(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Create(sampleRecord("alpha")))

	records, err := s.List(func(r Record) bool { return true })
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.True(t, records[0].Orphaned)
}

func TestArchiveMovesRecordAndRemovesActive(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Create(sampleRecord("alpha")))

	require.NoError(t, s.Archive("alpha", StatusFinished))

	active, err := s.Load("alpha")
	require.NoError(t, err)
	require.Nil(t, active)

	archived, err := s.LoadArchived("alpha")
	require.NoError(t, err)
	require.NotNil(t, archived)
	require.Equal(t, StatusFinished, archived.Status)
}

func TestArchiveTrimsToRetentionLimit(t *testing.T) {
	s, _ := newTestStore(t)
	names := []string{"one", "two", "three", "four"}
	for _, n := range names {
		require.NoError(t, s.Create(sampleRecord(n)))
		time.Sleep(time.Millisecond)
		require.NoError(t, s.Archive(n, StatusFinished))
	}

	archived, err := s.ListArchived()
	require.NoError(t, err)
	require.Len(t, archived, 3)
	// The oldest ("one") should have been trimmed.
	for _, r := range archived {
		require.NotEqual(t, "one", r.Name)
	}
}

func TestFindByPath(t *testing.T) {
	s, root := newTestStore(t)
	record := sampleRecord("alpha")
	record.WorktreePath = filepath.Join(root, "worktrees", "alpha")
	require.NoError(t, s.Create(record))

	found, err := s.FindByPath(record.WorktreePath)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, "alpha", found.Name)

	notFound, err := s.FindByPath(filepath.Join(root, "worktrees", "missing"))
	require.NoError(t, err)
	require.Nil(t, notFound)
}

func TestWriteAndReadStatus(t *testing.T) {
	s, _ := newTestStore(t)
	sample := StatusSample{
		Task:       "implement feature",
		Tests:      TestsPassed,
		Confidence: ConfidenceHigh,
		TodosDone:  3,
		TodosTotal: 5,
	}
	require.NoError(t, s.WriteStatus("alpha", sample))

	loaded, err := s.ReadStatus("alpha")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, "implement feature", loaded.Task)
	require.False(t, loaded.UpdatedAt.IsZero())
}

func TestIntegrationStateRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	state := IntegrationState{
		Session:         "alpha",
		Strategy:        "Squash",
		Phase:           "conflict",
		ConflictedFiles: []string{"a.go", "b.go"},
		StartedAt:       time.Now().UTC(),
	}
	require.NoError(t, s.SaveIntegrationState(state))

	loaded, err := s.LoadIntegrationState()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, "alpha", loaded.Session)
	require.Len(t, loaded.ConflictedFiles, 2)

	require.NoError(t, s.ClearIntegrationState())
	loaded, err = s.LoadIntegrationState()
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestExists(t *testing.T) {
	s, _ := newTestStore(t)
	require.False(t, s.Exists("alpha"))

	require.NoError(t, s.Create(sampleRecord("alpha")))
	require.True(t, s.Exists("alpha"))

	require.NoError(t, s.Archive("alpha", StatusCancelled))
	require.True(t, s.Exists("alpha"))
}

func TestCleanTmpLeftovers(t *testing.T) {
	s, root := newTestStore(t)
	require.NoError(t, s.Create(sampleRecord("alpha")))

	tmpPath := filepath.Join(root, ".para", "state", "stray.state.tmp")
	require.NoError(t, os.WriteFile(tmpPath, []byte("{}"), 0o600))

	removed, err := s.CleanTmpLeftovers()
	require.NoError(t, err)
	require.Equal(t, 1, removed)
}
