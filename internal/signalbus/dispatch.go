package signalbus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/para-dev/para/internal/logging"
	"github.com/para-dev/para/internal/paths"
	"github.com/para-dev/para/internal/sessionmgr"
	"github.com/para-dev/para/internal/store"
)

// signalFiles lists the known signal filenames in the fixed order a
// watcher sweep considers them.
var signalFiles = []string{paths.FinishSignalFile, paths.CancelSignalFile, paths.StatusSignalFile}

const initialBackoff = 1 * time.Second

// finishSignal is the payload written to finish_signal.json.
type finishSignal struct {
	Message string `json:"message"`
	Branch  string `json:"branch,omitempty"`
}

// cancelSignal is the payload written to cancel_signal.json.
type cancelSignal struct {
	Force bool `json:"force"`
}

// processPending sweeps the signal directory once, handling every known
// signal file whose retry backoff (if any) has elapsed. Signals are
// considered in a fixed order on the session's single watcher goroutine,
// so a slow file holds up the ones after it, and a file waiting on a
// retry ends the sweep, so a later one never jumps ahead of it.
func (w *sessionWatcher) processPending(ctx context.Context) {
	now := time.Now()
	for _, filename := range signalFiles {
		if state, pending := w.retry[filename]; pending && now.Before(state.nextAttempt) {
			return
		}
		w.processOne(ctx, filename)
		if _, pending := w.retry[filename]; pending {
			return
		}
	}
}

func (w *sessionWatcher) processOne(ctx context.Context, filename string) {
	path := filepath.Join(paths.WorktreeSignalDir(w.worktreePath), filename)

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if os.IsNotExist(err) {
		delete(w.retry, filename)
		return
	}
	if err != nil {
		logging.Warn(ctx, "signal open failed", "session", w.name, "file", filename, "error", err.Error())
		return
	}
	defer func() { _ = f.Close() }()

	// A non-blocking exclusive lock guards against reading a file the
	// agent is still in the middle of writing; the single-writer,
	// single-reader-deleter contract means a held lock here only ever
	// means "not finished writing yet", so we simply retry next sweep.
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return
	}
	defer func() { _ = unix.Flock(int(f.Fd()), unix.LOCK_UN) }()

	data, err := os.ReadFile(path)
	if err != nil {
		logging.Warn(ctx, "signal read failed", "session", w.name, "file", filename, "error", err.Error())
		return
	}

	handlerCtx, cancel := context.WithTimeout(ctx, HandlerTimeout)
	dispatchErr := w.dispatch(handlerCtx, filename, data)
	cancel()

	if dispatchErr == nil {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logging.Warn(ctx, "signal delete failed", "session", w.name, "file", filename, "error", err.Error())
		}
		delete(w.retry, filename)
		return
	}

	if malformed, ok := dispatchErr.(*malformedSignalError); ok {
		w.reject(ctx, filename, path, malformed)
		delete(w.retry, filename)
		return
	}

	logging.Warn(ctx, "signal dispatch failed, will retry", "session", w.name, "file", filename, "error", dispatchErr.Error())
	w.scheduleRetry(filename)
}

// malformedSignalError marks a signal payload as unparseable JSON, which
// is quarantined immediately rather than retried.
type malformedSignalError struct{ cause error }

func (e *malformedSignalError) Error() string { return fmt.Sprintf("malformed signal: %v", e.cause) }

func (w *sessionWatcher) dispatch(ctx context.Context, filename string, data []byte) error {
	switch filename {
	case paths.FinishSignalFile:
		var payload finishSignal
		if err := json.Unmarshal(data, &payload); err != nil {
			return &malformedSignalError{cause: err}
		}
		_, err := w.manager.Finish(ctx, sessionmgr.FinishOptions{
			Selector: w.name,
			Message:  payload.Message,
			Branch:   payload.Branch,
		}, nil)
		return err

	case paths.CancelSignalFile:
		var payload cancelSignal
		if err := json.Unmarshal(data, &payload); err != nil {
			return &malformedSignalError{cause: err}
		}
		_, err := w.manager.Cancel(ctx, sessionmgr.CancelOptions{
			Selector: w.name,
			Force:    payload.Force,
		})
		return err

	case paths.StatusSignalFile:
		var payload store.StatusSample
		if err := json.Unmarshal(data, &payload); err != nil {
			return &malformedSignalError{cause: err}
		}
		return w.manager.Store.WriteStatus(w.name, payload)

	default:
		return nil
	}
}

func (w *sessionWatcher) scheduleRetry(filename string) {
	state := w.retry[filename]
	if state.backoff == 0 {
		state.backoff = initialBackoff
	} else {
		state.backoff *= 2
		if state.backoff > RetryBackoffCap {
			state.backoff = RetryBackoffCap
		}
	}
	state.nextAttempt = time.Now().Add(state.backoff)
	w.retry[filename] = state
}

// reject moves a malformed signal file aside into the worktree's
// rejected-signal quarantine, keeping the watched directory's event
// stream clean of files the watcher will never successfully process.
func (w *sessionWatcher) reject(ctx context.Context, filename, path string, cause *malformedSignalError) {
	rejectedName := fmt.Sprintf("%s.rejected-%d", filename, time.Now().UnixNano())
	dest := filepath.Join(paths.WorktreeRejectedDir(w.worktreePath), rejectedName)
	if err := os.Rename(path, dest); err != nil {
		logging.Warn(ctx, "rejecting malformed signal failed", "session", w.name, "file", filename, "error", err.Error())
		return
	}
	logging.Warn(ctx, "rejected malformed signal", "session", w.name, "file", filename, "cause", cause.Error(), "moved_to", dest)
}
