package sessionmgr

import (
	"context"
	"os"

	"github.com/para-dev/para/internal/store"
)

// CleanScope selects which sessions a clean() call targets.
type CleanScope int

const (
	CleanActive CleanScope = iota
	CleanArchived
	CleanOrphaned
)

// CleanResult aggregates the outcome of a bulk clean, preserving partial
// progress: a failure on one session never blocks the rest.
type CleanResult struct {
	Cleaned []string
	Errors  map[string]error
}

// Clean bulk-cancels sessions in scope. Active and Orphaned scopes cancel
// via the normal Cancel path (force=true, since bulk cleanup shouldn't
// block on uncommitted changes); Archived scope is a no-op report since
// archive entries already carry no live branch or worktree to tear down.
func (m *Manager) Clean(ctx context.Context, scope CleanScope) (*CleanResult, error) {
	result := &CleanResult{Errors: map[string]error{}}

	switch scope {
	case CleanArchived:
		records, err := m.Store.ListArchived()
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			result.Cleaned = append(result.Cleaned, r.Name)
		}
		return result, nil

	case CleanOrphaned:
		records, err := m.Store.List(func(r store.Record) bool { return m.isOrphaned(ctx, r) })
		if err != nil {
			return nil, err
		}
		m.cancelAll(ctx, onlyOrphaned(records), result)
		return result, nil

	default: // CleanActive
		records, err := m.Store.List(nil)
		if err != nil {
			return nil, err
		}
		m.cancelAll(ctx, records, result)
		return result, nil
	}
}

func (m *Manager) cancelAll(ctx context.Context, records []store.Record, result *CleanResult) {
	for _, name := range lockOrderedNames(recordNames(records)) {
		if _, err := m.Cancel(ctx, CancelOptions{Selector: name, Force: true}); err != nil {
			result.Errors[name] = err
			continue
		}
		result.Cleaned = append(result.Cleaned, name)
	}
}

func (m *Manager) isOrphaned(ctx context.Context, r store.Record) bool {
	if _, err := os.Stat(r.WorktreePath); err != nil {
		return true
	}
	exists, err := m.Repo.BranchExists(ctx, r.Branch)
	if err != nil {
		return false
	}
	return !exists
}

func recordNames(records []store.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Name
	}
	return out
}

func onlyOrphaned(records []store.Record) []store.Record {
	var out []store.Record
	for _, r := range records {
		if r.Orphaned {
			out = append(out, r)
		}
	}
	return out
}
