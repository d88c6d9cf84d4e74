package signalbus

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/para-dev/para/internal/gitrepo"
	"github.com/para-dev/para/internal/paths"
	"github.com/para-dev/para/internal/sessionmgr"
	"github.com/para-dev/para/internal/store"
)

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v failed: %s", args, out)
	return string(out)
}

// newTestRepo initializes a throwaway repository with one commit on main
// and returns a Session Manager rooted at it.
func newTestRepo(t *testing.T) *sessionmgr.Manager {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init", "-b", "main")
	runGit(t, dir, "config", "user.email", "para-test@example.com")
	runGit(t, dir, "config", "user.name", "Para Test")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644))
	runGit(t, dir, "add", "-A")
	runGit(t, dir, "commit", "-m", "initial commit")

	repo := gitrepo.Open(dir, filepath.Join(dir, ".git"))
	st := store.New(dir, 3)
	return sessionmgr.New(repo, st, stubLauncher{}, "para")
}

// stubLauncher satisfies sessionmgr.Launcher without starting a container,
// so the tests can create Container-kind sessions.
type stubLauncher struct{}

func (stubLauncher) Launch(context.Context, sessionmgr.LaunchOptions) (string, error) {
	return "stub-container", nil
}

func (stubLauncher) Stop(context.Context, string) error { return nil }

// newTestDaemon builds a Daemon with its socket/PID file under a
// per-test temp directory rather than the real host-wide state dir.
func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()
	dir := t.TempDir()
	return &Daemon{
		SocketPath:   filepath.Join(dir, "daemon.sock"),
		PIDFile:      filepath.Join(dir, "daemon.pid"),
		ArchiveKeep:  3,
		BranchPrefix: "para",
		watchers:     map[string]*sessionWatcher{},
	}
}

func TestRegisterSessionProcessesFinishSignal(t *testing.T) {
	manager := newTestRepo(t)
	ctx := context.Background()

	record, err := manager.Create(ctx, sessionmgr.CreateOptions{Name: "widget", Kind: store.KindContainer})
	require.NoError(t, err)

	daemon := newTestDaemon(t)
	runCtx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- daemon.Run(runCtx) }()

	client := waitForSocket(t, daemon.SocketPath)
	require.NoError(t, client.RegisterContainerSession("widget", record.WorktreePath, manager.Repo.RootPath))

	signalDir := paths.WorktreeSignalDir(record.WorktreePath)
	payload, err := json.Marshal(map[string]any{"message": "widget: done via signal"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(signalDir, paths.FinishSignalFile), payload, 0o644))

	require.Eventually(t, func() bool {
		rec, err := manager.Store.Load("widget")
		return err == nil && rec != nil && rec.Status == store.StatusReview
	}, 5*time.Second, 50*time.Millisecond, "finish signal should transition the session to Review")

	_, err = os.Stat(filepath.Join(signalDir, paths.FinishSignalFile))
	require.True(t, os.IsNotExist(err), "processed signal file should be deleted")

	require.NoError(t, client.Shutdown())
	cancel()
	require.NoError(t, <-runDone)
}

func TestMalformedSignalIsQuarantined(t *testing.T) {
	manager := newTestRepo(t)
	ctx := context.Background()

	record, err := manager.Create(ctx, sessionmgr.CreateOptions{Name: "widget", Kind: store.KindContainer})
	require.NoError(t, err)

	daemon := newTestDaemon(t)
	runCtx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- daemon.Run(runCtx) }()

	client := waitForSocket(t, daemon.SocketPath)
	require.NoError(t, client.RegisterContainerSession("widget", record.WorktreePath, manager.Repo.RootPath))

	signalDir := paths.WorktreeSignalDir(record.WorktreePath)
	require.NoError(t, os.WriteFile(filepath.Join(signalDir, paths.CancelSignalFile), []byte("{not json"), 0o644))

	rejectedDir := paths.WorktreeRejectedDir(record.WorktreePath)
	require.Eventually(t, func() bool {
		entries, err := os.ReadDir(rejectedDir)
		return err == nil && len(entries) == 1
	}, 5*time.Second, 50*time.Millisecond, "malformed signal should be quarantined")

	_, err = os.Stat(filepath.Join(signalDir, paths.CancelSignalFile))
	require.True(t, os.IsNotExist(err))

	require.NoError(t, client.Shutdown())
	cancel()
	require.NoError(t, <-runDone)
}

func waitForSocket(t *testing.T, path string) *Client {
	t.Helper()
	client := &Client{SocketPath: path}
	require.Eventually(t, func() bool {
		return client.Ping() == nil
	}, 2*time.Second, 20*time.Millisecond, "daemon socket should come up")
	return client
}
