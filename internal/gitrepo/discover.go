package gitrepo

import (
	"context"
	"os/exec"
	"strings"

	"github.com/para-dev/para/internal/corerr"
)

// WorktreeInfo describes one entry from `git worktree list --porcelain`.
type WorktreeInfo struct {
	Path   string
	Branch string // short branch name, empty if detached
	Head   string
	Bare   bool
}

// Discovery is the result of Discover: the repository root, its common git
// directory (shared across linked worktrees), and the currently registered
// worktrees.
type Discovery struct {
	RootPath     string
	CommonGitDir string
	Worktrees    []WorktreeInfo
}

// Discover finds the repository containing cwd by walking upward, and
// lists its currently registered worktrees. Fails with NotARepository if
// no .git is found.
func Discover(ctx context.Context, cwd string) (*Discovery, error) {
	root, err := runRepoRoot(ctx, cwd)
	if err != nil {
		return nil, corerr.New(corerr.NotARepository, "no git repository found walking up from "+cwd)
	}

	commonDir, err := runCommonGitDir(ctx, root)
	if err != nil {
		return nil, corerr.New(corerr.NotARepository, "failed to resolve common git dir for "+root)
	}

	r := &Repo{RootPath: root, CommonGitDir: commonDir}
	worktrees, err := r.ListWorktrees(ctx)
	if err != nil {
		return nil, err
	}

	return &Discovery{RootPath: root, CommonGitDir: commonDir, Worktrees: worktrees}, nil
}

// Open wraps an already-known repository root without re-running
// discovery, for callers (Session Manager, Monitor Aggregator) that
// already have the root cached.
func Open(root, commonGitDir string) *Repo {
	return &Repo{RootPath: root, CommonGitDir: commonGitDir}
}

func runRepoRoot(ctx context.Context, cwd string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", cwd, "rev-parse", "--show-toplevel")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func runCommonGitDir(ctx context.Context, root string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", root, "rev-parse", "--git-common-dir")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	dir := strings.TrimSpace(string(out))
	if !strings.HasPrefix(dir, "/") {
		dir = root + "/" + dir
	}
	return dir, nil
}

// ListWorktrees runs `git worktree list --porcelain` and parses the
// registered worktrees for this repository.
func (r *Repo) ListWorktrees(ctx context.Context) ([]WorktreeInfo, error) {
	out, err := r.run(ctx, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parseWorktreePorcelain(out), nil
}

func parseWorktreePorcelain(out string) []WorktreeInfo {
	var result []WorktreeInfo
	var current *WorktreeInfo

	flush := func() {
		if current != nil {
			result = append(result, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		switch {
		case strings.HasPrefix(line, "worktree "):
			flush()
			current = &WorktreeInfo{Path: strings.TrimPrefix(line, "worktree ")}
		case strings.HasPrefix(line, "HEAD "):
			if current != nil {
				current.Head = strings.TrimPrefix(line, "HEAD ")
			}
		case strings.HasPrefix(line, "branch "):
			if current != nil {
				ref := strings.TrimPrefix(line, "branch ")
				current.Branch = strings.TrimPrefix(ref, "refs/heads/")
			}
		case line == "bare":
			if current != nil {
				current.Bare = true
			}
		}
	}
	flush()
	return result
}

// FindWorktreeByBranch returns the first registered worktree checked out
// on branch, if any. It does not compare paths; FindWorktreeByPath does.
func (d *Discovery) FindWorktreeByBranch(branch string) (WorktreeInfo, bool) {
	for _, w := range d.Worktrees {
		if w.Branch == branch {
			return w, true
		}
	}
	return WorktreeInfo{}, false
}

// FindWorktreeByPath reports the worktree (if any) registered at exactly path.
func (d *Discovery) FindWorktreeByPath(path string) (WorktreeInfo, bool) {
	for _, w := range d.Worktrees {
		if w.Path == path {
			return w, true
		}
	}
	return WorktreeInfo{}, false
}
