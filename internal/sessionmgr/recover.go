package sessionmgr

import (
	"context"
	"fmt"
	"os"

	"github.com/para-dev/para/internal/corerr"
	"github.com/para-dev/para/internal/paths"
	"github.com/para-dev/para/internal/store"
)

// ListArchive returns the archived records for this repository, newest first.
func (m *Manager) ListArchive() ([]store.Record, error) {
	return m.Store.ListArchived()
}

// Recover restores an archived session to Active: its branch is renamed
// back into the active namespace, a worktree is recreated at the path
// for the recovered name, and the SessionRecord reinstated. Collisions against an
// already-ACTIVE name/branch/path are resolved by appending
// -recovered-{k} for the smallest k that frees all three; the archived
// entry being recovered is consumed by this call, so it is never itself
// treated as a collision.
func (m *Manager) Recover(ctx context.Context, name string) (*store.Record, error) {
	archived, err := m.Store.LoadArchived(name)
	if err != nil {
		return nil, err
	}
	if archived == nil {
		return nil, corerr.Newf(corerr.SessionNotFound, "no archived session named %q", name)
	}

	targetName := name
	for k := 0; ; k++ {
		candidateName := targetNameFor(name, k)
		candidateBranch := fmt.Sprintf("%s/%s", m.BranchPrefix, candidateName)
		candidatePath := paths.WorktreePath(m.Repo.RootPath, candidateName)

		activeRecord, err := m.Store.Load(candidateName)
		if err != nil {
			return nil, err
		}
		branchTaken, err := m.Repo.BranchExists(ctx, candidateBranch)
		if err != nil {
			return nil, err
		}

		if activeRecord == nil && !branchTaken && !pathExists(candidatePath) {
			targetName = candidateName
			break
		}
	}

	targetBranch := fmt.Sprintf("%s/%s", m.BranchPrefix, targetName)
	targetPath := paths.WorktreePath(m.Repo.RootPath, targetName)

	if err := m.Repo.RenameBranch(ctx, archived.Branch, targetBranch); err != nil {
		return nil, err
	}
	if err := m.Repo.AddWorktreeForExistingBranch(ctx, targetBranch, targetPath); err != nil {
		return nil, err
	}

	record := store.Record{
		Name:         targetName,
		Branch:       targetBranch,
		WorktreePath: targetPath,
		BaseBranch:   archived.BaseBranch,
		Status:       store.StatusActive,
		Kind:         archived.Kind,
		CreatedAt:    archived.CreatedAt,
	}
	// The archive slot for name must be freed before Create, since Create
	// itself refuses to reuse a name still sitting in the archive.
	if err := m.Store.RemoveArchived(name); err != nil {
		return nil, err
	}
	if err := m.Store.Create(record); err != nil {
		return nil, err
	}
	return &record, nil
}

func targetNameFor(name string, k int) string {
	if k == 0 {
		return name
	}
	return fmt.Sprintf("%s-recovered-%d", name, k)
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
