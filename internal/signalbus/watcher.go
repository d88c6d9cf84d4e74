package signalbus

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/para-dev/para/internal/corerr"
	"github.com/para-dev/para/internal/logging"
	"github.com/para-dev/para/internal/paths"
	"github.com/para-dev/para/internal/sessionmgr"
)

// pollInterval is the fallback sweep period, catching signal files
// dropped between fsnotify events and files whose retry backoff has
// expired.
const pollInterval = 2 * time.Second

// sessionWatcher is the one-per-session filesystem-watch task described
// in the daemon's signal processing loop. All signal files for this
// session are processed by this single goroutine, which is what gives
// per-session FIFO ordering: the effect of one signal file always
// completes before the next is even opened.
type sessionWatcher struct {
	name         string
	worktreePath string
	repoRoot     string
	manager      *sessionmgr.Manager

	fsWatcher *fsnotify.Watcher

	stopCh   chan struct{}
	stopOnce sync.Once

	retry map[string]retryState
}

type retryState struct {
	nextAttempt time.Time
	backoff     time.Duration
}

func newSessionWatcher(name, worktreePath, repoRoot string, manager *sessionmgr.Manager) (*sessionWatcher, error) {
	signalDir := paths.WorktreeSignalDir(worktreePath)
	if err := os.MkdirAll(signalDir, 0o755); err != nil {
		return nil, corerr.Wrap(corerr.IoError, err, "creating signal directory")
	}
	if err := os.MkdirAll(paths.WorktreeRejectedDir(worktreePath), 0o755); err != nil {
		return nil, corerr.Wrap(corerr.IoError, err, "creating rejected-signal directory")
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, corerr.Wrap(corerr.IoError, err, "creating filesystem watcher")
	}
	if err := fsWatcher.Add(signalDir); err != nil {
		_ = fsWatcher.Close()
		return nil, corerr.Wrap(corerr.IoError, err, "watching signal directory")
	}

	return &sessionWatcher{
		name:         name,
		worktreePath: worktreePath,
		repoRoot:     repoRoot,
		manager:      manager,
		fsWatcher:    fsWatcher,
		stopCh:       make(chan struct{}),
		retry:        map[string]retryState{},
	}, nil
}

// run is the watcher's event loop. It processes any signal files already
// present at startup (crash recovery picks up where a prior daemon run
// left off), then reacts to filesystem events and a periodic sweep that
// catches both missed events and expired retry backoffs.
func (w *sessionWatcher) run(ctx context.Context) {
	defer func() { _ = w.fsWatcher.Close() }()

	w.processPending(ctx)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.processPending(ctx)
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			logging.Warn(ctx, "signal watcher error", "session", w.name, "error", err.Error())
		case <-ticker.C:
			w.processPending(ctx)
		}
	}
}

func (w *sessionWatcher) stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}
