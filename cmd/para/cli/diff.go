package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/para-dev/para/internal/gitrepo"
)

// conflictDiff summarizes one conflicted file between the session's base
// and its branch tip, for the integrate/continue Paused(files) report.
type conflictDiff struct {
	Path           string
	Added, Removed int
	Unchanged      int
}

// renderConflictDiffs computes a line-level diff stat for each conflicted
// file, base version vs branch-tip version, using the line-based
// DiffLinesToChars/DiffMain/DiffCharsToLines shape (tokenize whole lines
// to single characters so DiffMain's char-level algorithm effectively
// diffs at line granularity, then expand back).
func renderConflictDiffs(ctx context.Context, repo *gitrepo.Repo, base, branch string, files []string) []conflictDiff {
	diffs := make([]conflictDiff, 0, len(files))
	for _, path := range files {
		baseContent, _ := repo.Show(ctx, base, path)
		branchContent, _ := repo.Show(ctx, branch, path)

		dmp := diffmatchpatch.New()
		text1, text2, lineArray := dmp.DiffLinesToChars(baseContent, branchContent)
		lineDiffs := dmp.DiffMain(text1, text2, false)
		lineDiffs = dmp.DiffCharsToLines(lineDiffs, lineArray)

		var cd conflictDiff
		cd.Path = path
		for _, d := range lineDiffs {
			lines := strings.Count(d.Text, "\n")
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				cd.Unchanged += lines
			case diffmatchpatch.DiffInsert:
				cd.Added += lines
			case diffmatchpatch.DiffDelete:
				cd.Removed += lines
			}
		}
		diffs = append(diffs, cd)
	}
	return diffs
}

func formatConflictDiff(cd conflictDiff) string {
	return fmt.Sprintf("  %s (+%d -%d, %d unchanged)", cd.Path, cd.Added, cd.Removed, cd.Unchanged)
}
