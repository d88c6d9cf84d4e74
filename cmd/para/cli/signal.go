package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/para-dev/para/internal/corerr"
	"github.com/para-dev/para/internal/paths"
)

// writeJSONSignal is the agent-side half of the signal-file protocol: an
// agent running inside a container cannot reach the host Session
// Manager directly, so `finish`/`cancel`/`status` invoked there drop a
// JSON file into the worktree's signal directory for the host daemon's
// per-session watcher to pick up and dispatch.
func writeJSONSignal(cmd *cobra.Command, worktreePath, filename string, payload any, sessionName, verb string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return writeError(cmd, corerr.Wrap(corerr.IoError, err, "encoding "+filename))
	}

	dir := paths.WorktreeSignalDir(worktreePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return writeError(cmd, corerr.Wrap(corerr.IoError, err, "creating signal directory"))
	}
	target := filepath.Join(dir, filename)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return writeError(cmd, corerr.Wrap(corerr.IoError, err, "writing "+filename))
	}

	return writeResult(cmd, map[string]string{"session": sessionName, "status": "signaled"}, func(w io.Writer) {
		fmt.Fprintf(w, "%s requested for session %s; the host daemon will process it shortly\n", verb, sessionName)
	})
}
