// Package monitor implements the Monitor Aggregator (C7): a pure
// read-side component that composes the Session Store's records, the
// agent-written StatusSample stream, and a worktree activity probe into
// one consistent-per-row snapshot for observers (the `list`/`monitor`
// commands, or any JSON consumer).
package monitor

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/para-dev/para/internal/store"
)

// SessionView is one row of a snapshot.
type SessionView struct {
	Name         string           `json:"name"`
	Kind         store.Kind       `json:"kind"`
	Status       store.Status     `json:"status"`
	WorktreePath string           `json:"worktree_path"`
	Age          time.Duration    `json:"age"`
	LastActivity time.Time        `json:"last_activity"`
	CurrentTask  string           `json:"current_task,omitempty"`
	Tests        store.TestResult `json:"tests,omitempty"`
	Confidence   store.Confidence `json:"confidence,omitempty"`
	TodosDone    int              `json:"todos_done"`
	TodosTotal   int              `json:"todos_total"`
	Blocked      bool             `json:"blocked"`
	Orphaned     bool             `json:"orphaned"`
}

// Aggregator produces snapshots for one repository's Store.
type Aggregator struct {
	Store *store.Store

	mu    sync.Mutex
	cache map[string]activityCacheEntry
}

type activityCacheEntry struct {
	rootMtime    time.Time
	lastActivity time.Time
	cachedAt     time.Time
}

// ActivityCacheTTL bounds how long a worktree's last-activity probe is
// reused before a fresh filesystem walk is required, even if the
// worktree root's own mtime hasn't changed.
const ActivityCacheTTL = 2 * time.Second

// New constructs an Aggregator over st.
func New(st *store.Store) *Aggregator {
	return &Aggregator{Store: st, cache: map[string]activityCacheEntry{}}
}

// Snapshot lists every active session and assembles one SessionView per
// record, ordered by name. probeOrphan flags a record whose worktree or
// branch has gone missing, the same callback Store.List accepts.
func (a *Aggregator) Snapshot(probeOrphan func(store.Record) bool) ([]SessionView, error) {
	records, err := a.Store.List(probeOrphan)
	if err != nil {
		return nil, err
	}

	views := make([]SessionView, 0, len(records))
	now := time.Now().UTC()
	for _, record := range records {
		views = append(views, a.view(record, now))
	}

	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })
	return views, nil
}

func (a *Aggregator) view(record store.Record, now time.Time) SessionView {
	v := SessionView{
		Name:         record.Name,
		Kind:         record.Kind,
		Status:       record.Status,
		WorktreePath: record.WorktreePath,
		Age:          now.Sub(record.CreatedAt),
		Orphaned:     record.Orphaned,
	}

	if sample, err := a.Store.ReadStatus(record.Name); err == nil && sample != nil {
		v.CurrentTask = sample.Task
		v.Tests = sample.Tests
		v.Confidence = sample.Confidence
		v.TodosDone = sample.TodosDone
		v.TodosTotal = sample.TodosTotal
		v.Blocked = sample.Blocked
	}

	if lastActivity, err := a.lastActivity(record.WorktreePath); err == nil {
		v.LastActivity = lastActivity
	} else {
		v.LastActivity = record.LastModified
	}

	return v
}

// lastActivity returns the newest mtime among worktreePath's tracked
// files, ignoring .git metadata, cached per (worktree_path,
// mtime_of_root) with a short TTL so a `monitor` refresh loop doesn't
// re-walk every worktree on every tick.
func (a *Aggregator) lastActivity(worktreePath string) (time.Time, error) {
	rootInfo, err := os.Stat(worktreePath)
	if err != nil {
		return time.Time{}, err
	}
	rootMtime := rootInfo.ModTime()

	a.mu.Lock()
	if entry, ok := a.cache[worktreePath]; ok &&
		entry.rootMtime.Equal(rootMtime) &&
		time.Since(entry.cachedAt) < ActivityCacheTTL {
		a.mu.Unlock()
		return entry.lastActivity, nil
	}
	a.mu.Unlock()

	newest := rootMtime
	_ = filepath.Walk(worktreePath, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // a single unreadable entry shouldn't sink the whole probe
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.Contains(path, string(filepath.Separator)+".git"+string(filepath.Separator)) {
			return nil
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})

	a.mu.Lock()
	a.cache[worktreePath] = activityCacheEntry{rootMtime: rootMtime, lastActivity: newest, cachedAt: time.Now()}
	a.mu.Unlock()

	return newest, nil
}

// InvalidateCache drops the cached activity probe for worktreePath, so
// the next snapshot walks that worktree again. The monitor command calls
// it for every listed worktree on each refresh tick.
func (a *Aggregator) InvalidateCache(worktreePath string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.cache, worktreePath)
}
