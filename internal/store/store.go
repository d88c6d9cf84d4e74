package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/para-dev/para/internal/corerr"
	"github.com/para-dev/para/internal/jsonutil"
	"github.com/para-dev/para/internal/paths"
)

// DefaultArchiveKeep is the number of archived records retained per
// repository when none is configured.
const DefaultArchiveKeep = 3

// Store persists SessionRecords for one repository, rooted at
// {repoRoot}/.para/state.
type Store struct {
	repoRoot    string
	archiveKeep int
}

// New returns a Store rooted at repoRoot. archiveKeep <= 0 uses
// DefaultArchiveKeep.
func New(repoRoot string, archiveKeep int) *Store {
	if archiveKeep <= 0 {
		archiveKeep = DefaultArchiveKeep
	}
	return &Store{repoRoot: repoRoot, archiveKeep: archiveKeep}
}

func (s *Store) ensureDirs() error {
	if err := os.MkdirAll(paths.StatePath(s.repoRoot), 0o755); err != nil {
		return corerr.Wrap(corerr.IoError, err, "creating state directory")
	}
	if err := os.MkdirAll(paths.ArchivedStatePath(s.repoRoot), 0o755); err != nil {
		return corerr.Wrap(corerr.IoError, err, "creating archive directory")
	}
	return nil
}

// Create writes a new active SessionRecord. Fails AlreadyExists if a
// record with this name is already present (active or archived).
func (s *Store) Create(record Record) error {
	if err := s.ensureDirs(); err != nil {
		return err
	}

	lock, err := lockFile(paths.SessionLockFile(s.repoRoot, record.Name))
	if err != nil {
		return corerr.Wrap(corerr.IoError, err, "acquiring session lock")
	}
	defer lock.Unlock()

	statePath := paths.SessionStateFile(s.repoRoot, record.Name)
	if _, err := os.Stat(statePath); err == nil {
		return corerr.Newf(corerr.AlreadyExists, "session %q already exists", record.Name)
	}
	if _, err := os.Stat(paths.ArchivedStateFile(s.repoRoot, record.Name)); err == nil {
		return corerr.Newf(corerr.AlreadyExists, "session %q exists in the archive", record.Name)
	}

	record.SchemaVersion = SchemaVersion
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.LastModified = now

	return jsonutil.WriteJSONAtomic(statePath, &record, 0o600)
}

// Load reads the active record for name. Returns (nil, nil) if no such
// active session exists; a malformed file is a hard error, never silently
// dropped.
func (s *Store) Load(name string) (*Record, error) {
	return loadFrom(paths.SessionStateFile(s.repoRoot, name))
}

// LoadArchived reads an archived record for name.
func (s *Store) LoadArchived(name string) (*Record, error) {
	return loadFrom(paths.ArchivedStateFile(s.repoRoot, name))
}

func loadFrom(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, corerr.Wrap(corerr.IoError, err, "reading session record")
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, corerr.Wrapf(corerr.IoError, err, "session record %s is malformed", path)
	}
	if record.SchemaVersion > SchemaVersion {
		return nil, corerr.Newf(corerr.IoError, "session record %s has unsupported schema version %d", path, record.SchemaVersion)
	}
	return &record, nil
}

// Mutator transforms a loaded record in place before it is rewritten.
type Mutator func(*Record) error

// Update loads name under its exclusive lock, applies mutate, stamps
// LastModified, and atomically rewrites it. Fails SessionNotFound if no
// active record exists.
func (s *Store) Update(name string, mutate Mutator) (*Record, error) {
	lock, err := lockFile(paths.SessionLockFile(s.repoRoot, name))
	if err != nil {
		return nil, corerr.Wrap(corerr.IoError, err, "acquiring session lock")
	}
	defer lock.Unlock()

	record, err := s.Load(name)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, corerr.Newf(corerr.SessionNotFound, "no active session named %q", name)
	}

	if err := mutate(record); err != nil {
		return nil, err
	}
	record.LastModified = time.Now().UTC()

	if err := jsonutil.WriteJSONAtomic(paths.SessionStateFile(s.repoRoot, name), record, 0o600); err != nil {
		return nil, err
	}
	return record, nil
}

// List scans the active-state directory. The caller is responsible for
// any ordering it needs; List itself makes no promise beyond directory
// scan order. probeOrphan, if non-nil, is called per record to
// determine whether its worktree/branch still exist; flagged records are
// returned with Orphaned=true rather than dropped.
func (s *Store) List(probeOrphan func(Record) bool) ([]Record, error) {
	entries, err := os.ReadDir(paths.StatePath(s.repoRoot))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, corerr.Wrap(corerr.IoError, err, "reading state directory")
	}

	var records []Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".state") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".state")
		record, err := s.Load(name)
		if err != nil {
			return nil, err
		}
		if record == nil {
			continue
		}
		if probeOrphan != nil {
			record.Orphaned = probeOrphan(*record)
		}
		records = append(records, *record)
	}
	return records, nil
}

// ListArchived scans the archive directory, newest first.
func (s *Store) ListArchived() ([]Record, error) {
	entries, err := os.ReadDir(paths.ArchivedStatePath(s.repoRoot))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, corerr.Wrap(corerr.IoError, err, "reading archive directory")
	}

	var records []Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".state") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".state")
		record, err := s.LoadArchived(name)
		if err != nil {
			return nil, err
		}
		if record == nil {
			continue
		}
		records = append(records, *record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].LastModified.After(records[j].LastModified)
	})
	return records, nil
}

// Archive moves an active record to Finished/Cancelled archive storage,
// then trims the archive to the configured retention count. status must
// be StatusFinished or StatusCancelled.
func (s *Store) Archive(name string, status Status) error {
	lock, err := lockFile(paths.SessionLockFile(s.repoRoot, name))
	if err != nil {
		return corerr.Wrap(corerr.IoError, err, "acquiring session lock")
	}
	defer lock.Unlock()

	record, err := s.Load(name)
	if err != nil {
		return err
	}
	if record == nil {
		return corerr.Newf(corerr.SessionNotFound, "no active session named %q", name)
	}

	record.Status = status
	record.LastModified = time.Now().UTC()

	if err := jsonutil.WriteJSONAtomic(paths.ArchivedStateFile(s.repoRoot, name), record, 0o600); err != nil {
		return err
	}
	if err := os.Remove(paths.SessionStateFile(s.repoRoot, name)); err != nil && !os.IsNotExist(err) {
		return corerr.Wrap(corerr.IoError, err, "removing active session record")
	}
	_ = os.Remove(paths.SessionLockFile(s.repoRoot, name))
	_ = os.Remove(paths.SessionStatusFile(s.repoRoot, name))

	return s.trimArchive()
}

// trimArchive keeps only the archiveKeep most recently modified archived
// records per repository, under the repository-wide archive lock so
// concurrent archive() callers don't race each other's trim pass.
func (s *Store) trimArchive() error {
	lock, err := lockFile(paths.ArchiveLockFile(s.repoRoot))
	if err != nil {
		return corerr.Wrap(corerr.IoError, err, "acquiring archive lock")
	}
	defer lock.Unlock()

	records, err := s.ListArchived()
	if err != nil {
		return err
	}
	if len(records) <= s.archiveKeep {
		return nil
	}

	for _, stale := range records[s.archiveKeep:] {
		path := paths.ArchivedStateFile(s.repoRoot, stale.Name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return corerr.Wrap(corerr.IoError, err, "trimming archive")
		}
	}
	return nil
}

// RemoveArchived deletes an archived record outright, used by recover
// just before the session is reinstated as active (the archive slot is
// consumed by the recovery, not retained alongside the new active
// record).
func (s *Store) RemoveArchived(name string) error {
	lock, err := lockFile(paths.SessionLockFile(s.repoRoot, name))
	if err != nil {
		return corerr.Wrap(corerr.IoError, err, "acquiring session lock")
	}
	defer lock.Unlock()

	if err := os.Remove(paths.ArchivedStateFile(s.repoRoot, name)); err != nil && !os.IsNotExist(err) {
		return corerr.Wrap(corerr.IoError, err, "removing archived session record")
	}
	return nil
}

// FindByPath resolves the session (if any) whose worktree matches path,
// after canonicalizing both to absolute paths.
func (s *Store) FindByPath(path string) (*Record, error) {
	target, err := filepath.Abs(path)
	if err != nil {
		return nil, corerr.Wrap(corerr.IoError, err, "resolving path")
	}

	records, err := s.List(nil)
	if err != nil {
		return nil, err
	}
	for i := range records {
		recPath, err := filepath.Abs(records[i].WorktreePath)
		if err != nil {
			continue
		}
		if recPath == target {
			return &records[i], nil
		}
	}
	return nil, nil
}

// WriteStatus atomically persists the latest StatusSample for name.
func (s *Store) WriteStatus(name string, sample StatusSample) error {
	if err := s.ensureDirs(); err != nil {
		return err
	}
	sample.UpdatedAt = time.Now().UTC()
	return jsonutil.WriteJSONAtomic(paths.SessionStatusFile(s.repoRoot, name), &sample, 0o600)
}

// ReadStatus loads the latest StatusSample for name, or (nil, nil) if
// none has been written yet.
func (s *Store) ReadStatus(name string) (*StatusSample, error) {
	data, err := os.ReadFile(paths.SessionStatusFile(s.repoRoot, name))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, corerr.Wrap(corerr.IoError, err, "reading status sample")
	}
	var sample StatusSample
	if err := json.Unmarshal(data, &sample); err != nil {
		return nil, corerr.Wrap(corerr.IoError, err, "parsing status sample")
	}
	return &sample, nil
}

// CleanTmpLeftovers removes any *.tmp files left behind by an
// interrupted atomic write, as run at Session Manager startup during
// crash recovery.
func (s *Store) CleanTmpLeftovers() (int, error) {
	removed := 0
	for _, dir := range []string{paths.StatePath(s.repoRoot), paths.ArchivedStatePath(s.repoRoot)} {
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return removed, corerr.Wrap(corerr.IoError, err, "scanning for tmp leftovers")
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tmp") {
				continue
			}
			if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// SaveIntegrationState atomically writes the paused-integration record.
func (s *Store) SaveIntegrationState(state IntegrationState) error {
	if err := os.MkdirAll(paths.ParaRoot(s.repoRoot), 0o755); err != nil {
		return corerr.Wrap(corerr.IoError, err, "creating para root")
	}
	state.SchemaVersion = SchemaVersion
	return jsonutil.WriteJSONAtomic(paths.IntegrationStatePath(s.repoRoot), &state, 0o600)
}

// LoadIntegrationState reads the paused-integration record, or (nil, nil)
// if none is in progress.
func (s *Store) LoadIntegrationState() (*IntegrationState, error) {
	data, err := os.ReadFile(paths.IntegrationStatePath(s.repoRoot))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, corerr.Wrap(corerr.IoError, err, "reading integration state")
	}
	var state IntegrationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, corerr.Wrap(corerr.IoError, err, "parsing integration state")
	}
	return &state, nil
}

// ClearIntegrationState deletes the paused-integration record.
func (s *Store) ClearIntegrationState() error {
	if err := os.Remove(paths.IntegrationStatePath(s.repoRoot)); err != nil && !os.IsNotExist(err) {
		return corerr.Wrap(corerr.IoError, err, "clearing integration state")
	}
	return nil
}

// Exists reports whether name is taken by an active or archived session,
// satisfying nameid.Exists for collision-checked name generation.
func (s *Store) Exists(name string) bool {
	if _, err := os.Stat(paths.SessionStateFile(s.repoRoot, name)); err == nil {
		return true
	}
	if _, err := os.Stat(paths.ArchivedStateFile(s.repoRoot, name)); err == nil {
		return true
	}
	return false
}
