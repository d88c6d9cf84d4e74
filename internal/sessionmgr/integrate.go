package sessionmgr

import (
	"context"
	"time"

	"github.com/para-dev/para/internal/corerr"
	"github.com/para-dev/para/internal/gitrepo"
	"github.com/para-dev/para/internal/store"
)

// IntegrateStrategy is the gitrepo.MergeStrategy type as used by
// integrate/continue; only Merge, Squash and Rebase are re-exported
// below, and FastForward is not.
type IntegrateStrategy = gitrepo.MergeStrategy

// Re-exported strategy constants for callers that only import sessionmgr.
const (
	StrategyMerge  = gitrepo.StrategyMerge
	StrategySquash = gitrepo.StrategySquash
	StrategyRebase = gitrepo.StrategyRebase
)

// IntegrateOptions configures an integrate() call.
type IntegrateOptions struct {
	Selector string
	Cwd      string
	Strategy IntegrateStrategy
	DryRun   bool
}

// IntegrateResult reports the outcome of integrate or continue.
type IntegrateResult struct {
	Paused        bool
	ConflictFiles []string
	Record        *store.Record // nil when Paused
}

// Integrate folds a Review-status session's branch back into its base.
// On conflict it persists an IntegrationState and returns Paused without
// mutating the SessionRecord; the caller resolves and calls Continue.
func (m *Manager) Integrate(ctx context.Context, opts IntegrateOptions) (*IntegrateResult, error) {
	record, err := m.resolveSession(opts.Selector, opts.Cwd)
	if err != nil {
		return nil, err
	}

	baseExists, err := m.Repo.BranchExists(ctx, record.BaseBranch)
	if err != nil {
		return nil, err
	}
	if !baseExists {
		return nil, corerr.Newf(corerr.BaseMissing, "base branch %s no longer exists", record.BaseBranch)
	}

	_ = m.Repo.FetchDefault(ctx) // best-effort remote sync

	if opts.DryRun {
		return &IntegrateResult{Record: record}, nil
	}

	if err := m.Repo.Checkout(ctx, record.BaseBranch); err != nil {
		return nil, err
	}

	outcome, err := m.Repo.Merge(ctx, opts.Strategy, record.Branch, integrateCommitMessage(record))
	if err != nil {
		return nil, err
	}

	if outcome.Conflicted {
		state := store.IntegrationState{
			Session:         record.Name,
			Strategy:        strategyName(opts.Strategy),
			Phase:           "conflict",
			ConflictedFiles: outcome.ConflictFiles,
			StartedAt:       time.Now().UTC(),
		}
		if err := m.Store.SaveIntegrationState(state); err != nil {
			return nil, err
		}
		return &IntegrateResult{Paused: true, ConflictFiles: outcome.ConflictFiles}, nil
	}

	finished, err := m.finalizeIntegration(ctx, record)
	if err != nil {
		return nil, err
	}
	return &IntegrateResult{Record: finished}, nil
}

// Continue resumes a paused merge/rebase/cherry-pick left by Integrate.
func (m *Manager) Continue(ctx context.Context) (*IntegrateResult, error) {
	state, err := m.Store.LoadIntegrationState()
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, corerr.New(corerr.NoIntegrationInProgress, "no integration is currently paused")
	}

	record, err := m.Store.Load(state.Session)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, corerr.Newf(corerr.SessionNotFound, "session %q from paused integration no longer exists", state.Session)
	}

	outcome, err := m.Repo.ContinueOperation(ctx)
	if err != nil {
		if outcome.Conflicted {
			state.ConflictedFiles = outcome.ConflictFiles
			_ = m.Store.SaveIntegrationState(*state)
			return &IntegrateResult{Paused: true, ConflictFiles: outcome.ConflictFiles}, nil
		}
		return nil, err
	}

	if outcome.Conflicted {
		return &IntegrateResult{Paused: true, ConflictFiles: outcome.ConflictFiles}, nil
	}

	finished, err := m.finalizeIntegration(ctx, record)
	if err != nil {
		return nil, err
	}
	if err := m.Store.ClearIntegrationState(); err != nil {
		return nil, err
	}
	return &IntegrateResult{Record: finished}, nil
}

// finalizeIntegration deletes the session branch, removes its worktree if
// still present, and archives the SessionRecord as Finished.
func (m *Manager) finalizeIntegration(ctx context.Context, record *store.Record) (*store.Record, error) {
	// The worktree is normally already gone by the time integrate runs
	// (finish removes it); tolerate it still being present for a
	// finish+integrate combined call.
	if record.WorktreePath != "" {
		_ = m.Repo.RemoveWorktree(ctx, record.WorktreePath, true)
	}
	if err := m.Repo.DeleteBranch(ctx, record.Branch); err != nil {
		return nil, err
	}
	if err := m.Store.Archive(record.Name, store.StatusFinished); err != nil {
		return nil, err
	}
	finished := *record
	finished.Status = store.StatusFinished
	return &finished, nil
}

func integrateCommitMessage(record *store.Record) string {
	return "Integrate " + record.Branch
}

func strategyName(s IntegrateStrategy) string {
	switch s {
	case gitrepo.StrategyMerge:
		return "Merge"
	case gitrepo.StrategySquash:
		return "Squash"
	case gitrepo.StrategyRebase:
		return "Rebase"
	case gitrepo.StrategyFastForward:
		return "FastForward"
	default:
		return "Unknown"
	}
}
