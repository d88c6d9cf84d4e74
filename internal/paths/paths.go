// Package paths centralizes the on-disk layout of a para-managed repository
// and the per-user config directory. Every other package resolves paths
// through here so the .para/ layout only needs to change in one place.
package paths

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/para-dev/para/internal/corerr"
)

// ParaDir is the directory, relative to a repository root, that holds all
// para-managed state for that repository.
const ParaDir = ".para"

// Layout subdirectories and files under ParaDir.
const (
	StateDir        = "state"
	ArchivedDirName = "archived"
	WorktreesDir    = "worktrees"
	IntegrationFile = "integration.state"
	GitignoreFile   = ".gitignore"
)

// Signal file names written by the agent under a worktree's .para/ directory.
const (
	FinishSignalFile = "finish_signal.json"
	CancelSignalFile = "cancel_signal.json"
	StatusSignalFile = "status.json"
	RejectedDirName  = "rejected"
)

// DefaultBranchPrefix is used when the user configuration does not override it.
const DefaultBranchPrefix = "para"

// repoRootCache avoids re-invoking git for repeated lookups within a process.
var (
	repoRootMu       sync.RWMutex
	repoRootCache    string
	repoRootCacheDir string
)

// RepoRoot returns the absolute root of the git repository containing the
// current working directory, by shelling out to `git rev-parse
// --show-toplevel`. Results are cached per working directory.
func RepoRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}

	repoRootMu.RLock()
	if repoRootCache != "" && repoRootCacheDir == cwd {
		cached := repoRootCache
		repoRootMu.RUnlock()
		return cached, nil
	}
	repoRootMu.RUnlock()

	root, err := repoRootUncached(cwd)
	if err != nil {
		return "", err
	}

	repoRootMu.Lock()
	repoRootCache = root
	repoRootCacheDir = cwd
	repoRootMu.Unlock()

	return root, nil
}

func repoRootUncached(cwd string) (string, error) {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "git", "-C", cwd, "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", corerr.New(corerr.NotARepository, "not inside a git repository")
	}
	return strings.TrimSpace(string(output)), nil
}

// ClearRepoRootCache clears the cached repository root. Used by tests that
// change the working directory between assertions.
func ClearRepoRootCache() {
	repoRootMu.Lock()
	repoRootCache = ""
	repoRootCacheDir = ""
	repoRootMu.Unlock()
}

// ParaRoot returns {repoRoot}/.para.
func ParaRoot(repoRoot string) string {
	return filepath.Join(repoRoot, ParaDir)
}

// StatePath returns {repoRoot}/.para/state.
func StatePath(repoRoot string) string {
	return filepath.Join(ParaRoot(repoRoot), StateDir)
}

// ArchivedStatePath returns {repoRoot}/.para/state/archived.
func ArchivedStatePath(repoRoot string) string {
	return filepath.Join(StatePath(repoRoot), ArchivedDirName)
}

// WorktreesPath returns {repoRoot}/.para/worktrees.
func WorktreesPath(repoRoot string) string {
	return filepath.Join(ParaRoot(repoRoot), WorktreesDir)
}

// WorktreePath returns {repoRoot}/.para/worktrees/{name}.
func WorktreePath(repoRoot, name string) string {
	return filepath.Join(WorktreesPath(repoRoot), name)
}

// IntegrationStatePath returns {repoRoot}/.para/integration.state.
func IntegrationStatePath(repoRoot string) string {
	return filepath.Join(ParaRoot(repoRoot), IntegrationFile)
}

// SessionStateFile returns {repoRoot}/.para/state/{name}.state.
func SessionStateFile(repoRoot, name string) string {
	return filepath.Join(StatePath(repoRoot), name+".state")
}

// SessionLockFile returns {repoRoot}/.para/state/{name}.state.lock.
func SessionLockFile(repoRoot, name string) string {
	return filepath.Join(StatePath(repoRoot), name+".state.lock")
}

// SessionStatusFile returns {repoRoot}/.para/state/{name}.status.json.
func SessionStatusFile(repoRoot, name string) string {
	return filepath.Join(StatePath(repoRoot), name+".status.json")
}

// ArchivedStateFile returns {repoRoot}/.para/state/archived/{name}.state.
func ArchivedStateFile(repoRoot, name string) string {
	return filepath.Join(ArchivedStatePath(repoRoot), name+".state")
}

// ArchiveLockFile returns the repository-wide lock used while trimming the archive.
func ArchiveLockFile(repoRoot string) string {
	return filepath.Join(ParaRoot(repoRoot), "archive.lock")
}

// WorktreeSignalDir returns {worktreePath}/.para, where the agent drops signal files.
func WorktreeSignalDir(worktreePath string) string {
	return filepath.Join(worktreePath, ParaDir)
}

// WorktreeRejectedDir returns {worktreePath}/.para/rejected, where malformed
// signal files are quarantined rather than deleted.
func WorktreeRejectedDir(worktreePath string) string {
	return filepath.Join(WorktreeSignalDir(worktreePath), RejectedDirName)
}

// UserConfigDir returns the directory holding ~/.config/para/config.json
// (or the OS-conventional equivalent via os.UserConfigDir).
func UserConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", corerr.Wrap(corerr.IoError, err, "resolving user config directory")
	}
	return filepath.Join(base, "para"), nil
}

// UserStateDir returns the directory holding host-wide runtime state: the
// daemon socket, its PID file, and the container-pool lock.
func UserStateDir() (string, error) {
	base, err := os.UserHomeDir()
	if err != nil {
		return "", corerr.Wrap(corerr.IoError, err, "resolving user home directory")
	}
	return filepath.Join(base, ".para"), nil
}

// DaemonSocketPath returns the path to the daemon's Unix-domain socket.
func DaemonSocketPath() (string, error) {
	dir, err := UserStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "daemon.sock"), nil
}

// DaemonPIDFile returns the path to the daemon's PID file, sitting beside the socket.
func DaemonPIDFile() (string, error) {
	dir, err := UserStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "daemon.pid"), nil
}

// ContainerPoolLockFile returns the host-wide lock used by CLI callers that
// manage the container pool without a running daemon.
func ContainerPoolLockFile() (string, error) {
	dir, err := UserStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "container-pool.lock"), nil
}

// JanitorStateFile returns the path used to persist the isolation launcher's
// throttled cleanup timestamp across daemon restarts.
func JanitorStateFile() (string, error) {
	dir, err := UserStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "janitor-state.json"), nil
}

// IsDescendant reports whether child is a strict descendant of parent, after
// resolving both to absolute, cleaned paths. Used to enforce the
// containment invariant on worktree paths.
func IsDescendant(parent, child string) bool {
	parentAbs, err := filepath.Abs(parent)
	if err != nil {
		return false
	}
	childAbs, err := filepath.Abs(child)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(parentAbs, childAbs)
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..")
}
