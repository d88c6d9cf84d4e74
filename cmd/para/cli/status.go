package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/para-dev/para/internal/paths"
	"github.com/para-dev/para/internal/store"
)

// newStatusCmd lets an agent running inside a session (container or
// worktree) report its own progress. The report always goes through the
// signal-file protocol rather than writing the Store directly: the
// per-session daemon watcher is the single writer of status samples,
// keeping concurrent agent reports from racing a direct Store.WriteStatus.
func newStatusCmd() *cobra.Command {
	var (
		tests      string
		confidence string
		todos      string
		blocked    bool
	)
	cmd := &cobra.Command{
		Use:   "status <task>",
		Short: "Report this session's current task, test state, and progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			name, worktreePath, inContainerNow := inContainer()
			if !inContainerNow {
				a, err := newApp(ctx)
				if err != nil {
					return writeError(cmd, err)
				}
				record, err := resolveRecord(a, "", cwdOrEmpty())
				if err != nil {
					return writeError(cmd, err)
				}
				name, worktreePath = record.Name, record.WorktreePath
			}

			done, total, err := parseTodos(todos)
			if err != nil {
				return writeError(cmd, err)
			}

			sample := store.StatusSample{
				Task:       args[0],
				Tests:      testResultFromFlag(tests),
				Confidence: confidenceFromFlag(confidence),
				TodosDone:  done,
				TodosTotal: total,
				Blocked:    blocked,
			}

			return writeJSONSignal(cmd, worktreePath, paths.StatusSignalFile, sample, name, "status update")
		},
	}
	cmd.Flags().StringVar(&tests, "tests", "", "Passed, Failed, or Unknown")
	cmd.Flags().StringVar(&confidence, "confidence", "", "Low, Medium, or High")
	cmd.Flags().StringVar(&todos, "todos", "", "done/total, e.g. 3/7")
	cmd.Flags().BoolVar(&blocked, "blocked", false, "flag this session as blocked on outside input")
	return cmd
}

func testResultFromFlag(s string) store.TestResult {
	switch s {
	case "Passed":
		return store.TestsPassed
	case "Failed":
		return store.TestsFailed
	default:
		return store.TestsUnknown
	}
}

func confidenceFromFlag(s string) store.Confidence {
	switch s {
	case "Low":
		return store.ConfidenceLow
	case "High":
		return store.ConfidenceHigh
	default:
		return store.ConfidenceMedium
	}
}

func parseTodos(s string) (done, total int, err error) {
	if s == "" {
		return 0, 0, nil
	}
	if _, scanErr := fmt.Sscanf(s, "%d/%d", &done, &total); scanErr != nil {
		return 0, 0, fmt.Errorf("--todos must be formatted done/total, e.g. 3/7: %w", scanErr)
	}
	return done, total, nil
}
