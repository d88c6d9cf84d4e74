package signalbus

import (
	"encoding/json"
	"net"
	"os"
	"time"

	"github.com/para-dev/para/internal/corerr"
	"github.com/para-dev/para/internal/paths"
)

// DialTimeout bounds how long a CLI caller waits for the daemon socket to
// accept a connection before concluding no daemon is running.
const DialTimeout = 2 * time.Second

// Client is a thin, connect-per-call RPC client for host CLI processes,
// matching the protocol's one-message-per-connection framing.
type Client struct {
	SocketPath string
}

// NewClient resolves the conventional daemon socket path.
func NewClient() (*Client, error) {
	socketPath, err := paths.DaemonSocketPath()
	if err != nil {
		return nil, err
	}
	return &Client{SocketPath: socketPath}, nil
}

// call dials the daemon, sends req, and decodes the single Response.
func (c *Client) call(req Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.SocketPath, DialTimeout)
	if err != nil {
		return nil, corerr.Wrap(corerr.DaemonUnavailable, err, "connecting to daemon")
	}
	defer func() { _ = conn.Close() }()

	_ = conn.SetDeadline(time.Now().Add(HandlerTimeout))

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, corerr.Wrap(corerr.DaemonUnavailable, err, "sending daemon request")
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, corerr.Wrap(corerr.DaemonUnavailable, err, "reading daemon response")
	}
	if !resp.OK {
		return nil, corerr.New(corerr.DaemonUnavailable, resp.Error)
	}
	return &resp, nil
}

// RegisterContainerSession tells the daemon to start watching a
// container session's signal directory.
func (c *Client) RegisterContainerSession(name, worktreePath, repoRoot string) error {
	_, err := c.call(Request{Command: CmdRegisterContainerSession, Name: name, WorktreePath: worktreePath, RepoRoot: repoRoot})
	return err
}

// UnregisterSession tells the daemon to stop watching a session.
func (c *Client) UnregisterSession(name string) error {
	_, err := c.call(Request{Command: CmdUnregisterSession, Name: name})
	return err
}

// ListSessions returns the names of every session currently registered
// with the daemon. Debug-only, per the control protocol.
func (c *Client) ListSessions() ([]string, error) {
	resp, err := c.call(Request{Command: CmdListSessions})
	if err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// Ping reports whether the daemon is reachable and responsive.
func (c *Client) Ping() error {
	_, err := c.call(Request{Command: CmdPing})
	return err
}

// Shutdown requests graceful daemon shutdown.
func (c *Client) Shutdown() error {
	_, err := c.call(Request{Command: CmdShutdown})
	return err
}

// Running reports whether a daemon process appears to be alive, by
// checking the PID file and probing the socket. It never starts a
// daemon itself.
func Running() bool {
	pidFile, err := paths.DaemonPIDFile()
	if err != nil {
		return false
	}
	if _, err := os.Stat(pidFile); err != nil {
		return false
	}
	client, err := NewClient()
	if err != nil {
		return false
	}
	return client.Ping() == nil
}
