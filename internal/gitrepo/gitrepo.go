// Package gitrepo implements the Repository Adapter (C1): a wrapper around
// the git binary that exposes worktree/branch/index/merge operations and
// idempotent helpers.
//
// Mutating operations shell out to the git binary as a subprocess: this
// matches the user's local git configuration, hooks, and version exactly,
// and avoids reimplementing git semantics. Repository discovery also goes
// through the git binary (rev-parse, worktree list). Branch listing uses
// go-git instead, since it's cheaper than parsing porcelain output for
// data that's only ever read, never mutated.
package gitrepo

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/para-dev/para/internal/corerr"
)

// Repo is a handle to a discovered repository. All Adapter methods are
// rooted at RootPath; the git binary is invoked with `-C RootPath` so
// callers never need to chdir.
type Repo struct {
	RootPath     string
	CommonGitDir string
}

// run executes `git -C r.RootPath <args...>` and returns trimmed stdout.
// stderr is captured and wrapped into a GitError on failure; the adapter
// never silently swallows a non-zero exit code.
func (r *Repo) run(ctx context.Context, args ...string) (string, error) {
	fullArgs := append([]string{"-C", r.RootPath}, args...)
	cmd := exec.CommandContext(ctx, "git", fullArgs...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", corerr.Wrap(corerr.GitError, err, fmt.Sprintf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(stderr.String())))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// runAllowFailure is like run but returns the captured stderr and exit
// status alongside the error, for callers that need to inspect *why* git
// failed (e.g. distinguishing a merge conflict from a hard error).
func (r *Repo) runAllowFailure(ctx context.Context, args ...string) (stdout, stderr string, exitErr error) {
	fullArgs := append([]string{"-C", r.RootPath}, args...)
	cmd := exec.CommandContext(ctx, "git", fullArgs...)

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	return strings.TrimSpace(outBuf.String()), strings.TrimSpace(errBuf.String()), err
}
