package sessionmgr

import (
	"path/filepath"

	"github.com/para-dev/para/internal/corerr"
	"github.com/para-dev/para/internal/paths"
	"github.com/para-dev/para/internal/store"
)

// AutoDetect canonicalizes cwd and walks upward, matching against every
// Active record's worktree_path prefix. Returns the first match, or
// NotInSession if cwd isn't inside any active session's worktree.
func (m *Manager) AutoDetect(cwd string) (*store.Record, error) {
	target, err := filepath.Abs(cwd)
	if err != nil {
		return nil, corerr.Wrap(corerr.IoError, err, "resolving current directory")
	}

	records, err := m.Store.List(nil)
	if err != nil {
		return nil, err
	}

	for i := range records {
		worktree, err := filepath.Abs(records[i].WorktreePath)
		if err != nil {
			continue
		}
		if target == worktree || paths.IsDescendant(worktree, target) {
			return &records[i], nil
		}
	}

	return nil, corerr.New(corerr.NotInSession, "current directory is not inside any active session's worktree")
}
