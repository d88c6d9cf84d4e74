package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/para-dev/para/internal/corerr"
)

// jsonOutput is bound to the root command's --json persistent flag.
var jsonOutput bool

// errorEnvelope is the documented JSON-mode error shape: a single `Err`
// key carrying the error's stable kind, message, and any structured
// details (e.g. a conflicted-file list).
type errorEnvelope struct {
	Err struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
		Details any    `json:"details,omitempty"`
	} `json:"Err"`
}

// writeResult renders a successful result: JSON-encoded to stdout in
// --json mode, or via humanFn otherwise. humanFn may be nil if the
// command has nothing to print on success beyond its side effects.
func writeResult(cmd *cobra.Command, result any, humanFn func(io.Writer)) error {
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	if humanFn != nil {
		humanFn(cmd.OutOrStdout())
	}
	return nil
}

// writeError renders err as the documented JSON envelope to stdout in
// --json mode (so a JSON consumer never has to scrape stderr), or a
// human-readable message plus actionable suggestion to stderr otherwise.
// It always returns a *SilentError, since by the time it's called the
// message has already been printed; main's top-level handler must not
// print err a second time.
func writeError(cmd *cobra.Command, err error) error {
	if jsonOutput {
		var env errorEnvelope
		if ce, ok := corerr.As(err); ok {
			env.Err.Kind = string(ce.Kind)
			env.Err.Message = ce.Message
			env.Err.Details = ce.Details
		} else {
			env.Err.Kind = "Unknown"
			env.Err.Message = err.Error()
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		_ = enc.Encode(env)
		return NewSilentError(err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", err)
	if suggestion := suggestionFor(err); suggestion != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", suggestion)
	}
	return NewSilentError(err)
}

// suggestionFor maps an error's corerr.Kind to the actionable next step
// the documented failure-behavior text calls for.
func suggestionFor(err error) string {
	ce, ok := corerr.As(err)
	if !ok {
		return ""
	}
	switch ce.Kind {
	case corerr.MergeConflicts, corerr.UnresolvedConflicts:
		return "resolve the conflicted files, then run `para continue`"
	case corerr.NoIntegrationInProgress, corerr.NoOperationInProgress:
		return "there is no paused operation to continue"
	case corerr.UncommittedChanges:
		return "commit or stash your changes, or pass --force to discard them"
	case corerr.SessionNotFound:
		return "run `para list` to see active sessions, or `para recover` to restore an archived one"
	case corerr.AmbiguousSession, corerr.NameInvalid:
		return "pass an explicit session name"
	case corerr.PoolExhausted:
		return "run `para clean` to free capacity, or stop an existing container session"
	case corerr.InsecureImage:
		return "use an image labeled for network isolation, or omit --network-isolation"
	case corerr.DaemonUnavailable:
		return "run `para daemon start`"
	case corerr.NotInSession:
		return "run this command from inside a session's worktree, or pass an explicit session name"
	default:
		return ""
	}
}
