package gitrepo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/para-dev/para/internal/corerr"
)

// BranchScope selects which refs ListBranches returns.
type BranchScope int

const (
	ScopeLocal BranchScope = iota
	ScopeRemote
	ScopeAll
)

// BranchExists probes whether a local branch exists, via `git show-ref`.
func (r *Repo) BranchExists(ctx context.Context, name string) (bool, error) {
	_, _, err := r.runAllowFailure(ctx, "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	if err == nil {
		return true, nil
	}
	// show-ref exits 1 when the ref is missing; anything else is a real error.
	if exitErr, ok := asExitError(err); ok && exitErr == 1 {
		return false, nil
	}
	return false, corerr.Wrap(corerr.GitError, err, "checking branch existence")
}

// ListBranches lists branches in the requested scope using go-git, a
// read-only introspection path that avoids an extra subprocess per call.
func (r *Repo) ListBranches(scope BranchScope) ([]string, error) {
	repo, err := git.PlainOpen(r.RootPath)
	if err != nil {
		return nil, corerr.Wrap(corerr.GitError, err, "opening repository for branch listing")
	}

	var names []string
	refs, err := repo.References()
	if err != nil {
		return nil, corerr.Wrap(corerr.GitError, err, "listing references")
	}
	defer refs.Close()

	err = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name()
		switch {
		case name.IsBranch() && (scope == ScopeLocal || scope == ScopeAll):
			names = append(names, strings.TrimPrefix(string(name), "refs/heads/"))
		case name.IsRemote() && (scope == ScopeRemote || scope == ScopeAll):
			names = append(names, strings.TrimPrefix(string(name), "refs/remotes/"))
		}
		return nil
	})
	if err != nil {
		return nil, corerr.Wrap(corerr.GitError, err, "iterating references")
	}
	return names, nil
}

// RenameBranch renames old to new. The caller (Session Manager) supplies
// the collision policy, probing with BranchExists beforehand; this
// performs the rename without checking for a collision itself.
func (r *Repo) RenameBranch(ctx context.Context, oldName, newName string) error {
	_, err := r.run(ctx, "branch", "-m", oldName, newName)
	return err
}

// MoveToArchive renames branch into {archiveNS}/{timestamp}/{leaf}, and
// returns the resulting branch name.
func (r *Repo) MoveToArchive(ctx context.Context, branch, archiveNS string) (string, error) {
	leaf := branch
	if idx := strings.LastIndex(branch, "/"); idx >= 0 {
		leaf = branch[idx+1:]
	}
	archived := fmt.Sprintf("%s/%s/%s", archiveNS, time.Now().UTC().Format("20060102150405"), leaf)
	if err := r.RenameBranch(ctx, branch, archived); err != nil {
		return "", err
	}
	return archived, nil
}

// DeleteBranch force-deletes a local branch.
func (r *Repo) DeleteBranch(ctx context.Context, branch string) error {
	_, err := r.run(ctx, "branch", "-D", branch)
	return err
}
