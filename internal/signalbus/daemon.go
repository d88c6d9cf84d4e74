// Package signalbus implements the Signal Bus & Daemon (C5): a
// long-running host process that bridges sandboxed agents, which cannot
// invoke host CLIs directly, to the Session Manager. It accepts
// JSON-framed control RPCs over a Unix-domain socket and runs one
// filesystem-watch task per registered container session, each
// processing that session's signal files strictly in order while
// different sessions' watchers run independently.
package signalbus

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/para-dev/para/internal/corerr"
	"github.com/para-dev/para/internal/gitrepo"
	"github.com/para-dev/para/internal/logging"
	"github.com/para-dev/para/internal/paths"
	"github.com/para-dev/para/internal/sessionmgr"
	"github.com/para-dev/para/internal/store"
)

// RetryBackoffCap is the maximum exponential-backoff delay between retries
// of a signal file that failed to process.
const RetryBackoffCap = 30 * time.Second

// HandlerTimeout is the default per-signal processing deadline.
const HandlerTimeout = 60 * time.Second

// Daemon is the single per-host signal bus. One Daemon owns the control
// socket and the watcher for every registered container session, across
// every repository.
type Daemon struct {
	SocketPath string
	PIDFile    string

	ArchiveKeep  int
	BranchPrefix string
	Launcher     sessionmgr.Launcher

	mu       sync.Mutex
	watchers map[string]*sessionWatcher
	listener net.Listener
	draining bool

	wg sync.WaitGroup
}

// New constructs a Daemon at the conventional socket/PID-file locations.
func New(launcher sessionmgr.Launcher, branchPrefix string, archiveKeep int) (*Daemon, error) {
	socketPath, err := paths.DaemonSocketPath()
	if err != nil {
		return nil, err
	}
	pidFile, err := paths.DaemonPIDFile()
	if err != nil {
		return nil, err
	}
	if branchPrefix == "" {
		branchPrefix = paths.DefaultBranchPrefix
	}
	return &Daemon{
		SocketPath:   socketPath,
		PIDFile:      pidFile,
		ArchiveKeep:  archiveKeep,
		BranchPrefix: branchPrefix,
		Launcher:     launcher,
		watchers:     map[string]*sessionWatcher{},
	}, nil
}

// Run binds the control socket, writes the PID file, and serves RPCs and
// watcher tasks until ctx is cancelled or a Shutdown RPC arrives. Run
// blocks until shutdown is complete.
func (d *Daemon) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(d.PIDFile), 0o755); err != nil {
		return corerr.Wrap(corerr.IoError, err, "creating state directory")
	}

	// A stale socket from a crashed prior run must be removed before
	// binding; net.Listen on an in-use path otherwise fails.
	_ = os.Remove(d.SocketPath)

	listener, err := net.Listen("unix", d.SocketPath)
	if err != nil {
		return corerr.Wrap(corerr.DaemonUnavailable, err, "binding daemon socket")
	}
	d.listener = listener

	if err := os.WriteFile(d.PIDFile, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		_ = listener.Close()
		return corerr.Wrap(corerr.IoError, err, "writing PID file")
	}

	logging.Info(ctx, "daemon started", "socket", d.SocketPath, "pid", os.Getpid())

	acceptDone := make(chan struct{})
	go func() {
		defer close(acceptDone)
		d.acceptLoop(ctx)
	}()

	select {
	case <-ctx.Done():
	case <-acceptDone:
	}

	return d.shutdown()
}

func (d *Daemon) acceptLoop(ctx context.Context) {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			// Accept fails once the listener is closed by shutdown; that's
			// the expected exit path, not an error worth logging loudly.
			return
		}
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.handleConn(ctx, conn)
		}()
	}
}

// shutdown performs graceful drain: stop accepting new connections, let
// in-flight RPC handlers and watcher tasks finish up to a deadline, then
// tear down sockets and files regardless.
func (d *Daemon) shutdown() error {
	d.mu.Lock()
	d.draining = true
	watchers := make([]*sessionWatcher, 0, len(d.watchers))
	for _, w := range d.watchers {
		watchers = append(watchers, w)
	}
	d.mu.Unlock()

	_ = d.listener.Close()

	for _, w := range watchers {
		w.stop()
	}

	drained := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(HandlerTimeout):
		logging.Warn(context.Background(), "daemon shutdown deadline exceeded, aborting in-flight handlers")
	}

	_ = os.Remove(d.SocketPath)
	_ = os.Remove(d.PIDFile)
	logging.Info(context.Background(), "daemon stopped")
	return nil
}

// registerSession starts a watcher for name if one is not already
// running, constructing a Session Manager rooted at repoRoot.
func (d *Daemon) registerSession(ctx context.Context, name, worktreePath, repoRoot string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.draining {
		return corerr.New(corerr.DaemonUnavailable, "daemon is shutting down")
	}
	if _, exists := d.watchers[name]; exists {
		return nil
	}

	discovery, err := gitrepo.Discover(ctx, repoRoot)
	if err != nil {
		return err
	}
	repo := gitrepo.Open(discovery.RootPath, discovery.CommonGitDir)
	st := store.New(discovery.RootPath, d.ArchiveKeep)
	manager := sessionmgr.New(repo, st, d.Launcher, d.BranchPrefix)

	w, err := newSessionWatcher(name, worktreePath, repoRoot, manager)
	if err != nil {
		return err
	}
	d.watchers[name] = w

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		w.run(ctx)
	}()

	return nil
}

// unregisterSession stops and removes a session's watcher, if present.
func (d *Daemon) unregisterSession(name string) {
	d.mu.Lock()
	w, exists := d.watchers[name]
	if exists {
		delete(d.watchers, name)
	}
	d.mu.Unlock()

	if exists {
		w.stop()
	}
}

// listSessions returns the names of every currently registered session,
// for the debug-only ListSessions RPC.
func (d *Daemon) listSessions() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.watchers))
	for name := range d.watchers {
		names = append(names, name)
	}
	return names
}

// requestShutdown begins graceful drain from an in-process RPC handler.
func (d *Daemon) requestShutdown() {
	d.mu.Lock()
	if d.draining {
		d.mu.Unlock()
		return
	}
	d.draining = true
	d.mu.Unlock()

	_ = d.listener.Close()
}
