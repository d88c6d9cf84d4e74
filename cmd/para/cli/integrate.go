package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/para-dev/para/internal/sessionmgr"
	"github.com/para-dev/para/internal/store"
)

func strategyFromFlag(s string) sessionmgr.IntegrateStrategy {
	switch s {
	case "Merge":
		return sessionmgr.StrategyMerge
	case "Rebase":
		return sessionmgr.StrategyRebase
	default:
		return sessionmgr.StrategySquash
	}
}

func newIntegrateCmd() *cobra.Command {
	var strategy string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "integrate [session]",
		Short: "Fold a Review-status session's branch back into its base",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntegrate(cmd, args, strategyFromFlag(strategy), dryRun)
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", "Squash", "Merge, Squash, or Rebase")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would happen without touching any branch")
	return cmd
}

func newContinueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "continue",
		Short: "Resume a paused merge/rebase left by integrate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return writeError(cmd, err)
			}
			result, err := a.Manager.Continue(ctx)
			if err != nil {
				return writeError(cmd, err)
			}
			return reportIntegrateResult(cmd, a, result, "")
		},
	}
}

func runIntegrate(cmd *cobra.Command, args []string, strategy sessionmgr.IntegrateStrategy, dryRun bool) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return writeError(cmd, err)
	}

	selector := ""
	if len(args) == 1 {
		selector = args[0]
	}

	result, err := a.Manager.Integrate(ctx, sessionmgr.IntegrateOptions{
		Selector: selector,
		Cwd:      cwdOrEmpty(),
		Strategy: strategy,
		DryRun:   dryRun,
	})
	if err != nil {
		return writeError(cmd, err)
	}
	return reportIntegrateResult(cmd, a, result, selector)
}

// resolveForDiff best-effort recovers the record behind a Paused
// integrate/continue result, for conflict-diff rendering only; any
// failure here degrades to a plain file list, never an error.
func resolveForDiff(a *app, selector string) *store.Record {
	if selector != "" {
		if record, err := a.Store.Load(selector); err == nil && record != nil {
			return record
		}
	}
	if state, err := a.Store.LoadIntegrationState(); err == nil && state != nil {
		if record, err := a.Store.Load(state.Session); err == nil {
			return record
		}
	}
	return nil
}

func reportIntegrateResult(cmd *cobra.Command, a *app, result *sessionmgr.IntegrateResult, selector string) error {
	ctx := cmd.Context()

	if result.Paused {
		var diffs []conflictDiff
		if record := resolveForDiff(a, selector); record != nil {
			diffs = renderConflictDiffs(ctx, a.Repo, record.BaseBranch, record.Branch, result.ConflictFiles)
		}
		return writeResult(cmd, struct {
			Paused bool     `json:"paused"`
			Files  []string `json:"conflicted_files"`
		}{Paused: true, Files: result.ConflictFiles}, func(w io.Writer) {
			fmt.Fprintln(w, "integration paused: conflicts in")
			for i, f := range result.ConflictFiles {
				if i < len(diffs) {
					fmt.Fprintln(w, formatConflictDiff(diffs[i]))
				} else {
					fmt.Fprintf(w, "  %s\n", f)
				}
			}
			fmt.Fprintln(w, "resolve the conflicts, then run `para continue`")
		})
	}

	record := result.Record
	withTelemetryInfo(cmd, string(record.Kind), record.Kind == store.KindContainer)
	if client := daemonClientIfRunning(); client != nil {
		_ = client.UnregisterSession(record.Name)
	}
	return writeResult(cmd, record, func(w io.Writer) {
		fmt.Fprintf(w, "integrated session %s into %s\n", record.Name, record.BaseBranch)
	})
}
