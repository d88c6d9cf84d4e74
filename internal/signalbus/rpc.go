package signalbus

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/para-dev/para/internal/logging"
)

// Command names the control RPCs the daemon accepts over its socket.
type Command string

const (
	CmdRegisterContainerSession Command = "RegisterContainerSession"
	CmdUnregisterSession        Command = "UnregisterSession"
	CmdListSessions             Command = "ListSessions"
	CmdPing                     Command = "Ping"
	CmdShutdown                 Command = "Shutdown"
)

// Request is the single JSON object a client sends per connection.
type Request struct {
	Command      Command `json:"command"`
	Name         string  `json:"name,omitempty"`
	WorktreePath string  `json:"worktree_path,omitempty"`
	RepoRoot     string  `json:"repo_root,omitempty"`
}

// Response is the single JSON object the daemon sends back before
// closing the connection.
type Response struct {
	OK       bool     `json:"ok"`
	Error    string   `json:"error,omitempty"`
	Sessions []string `json:"sessions,omitempty"`
}

// handleConn reads exactly one Request, dispatches it, writes exactly
// one Response, and closes the connection — the "one message per
// connection" framing the control protocol specifies.
func (d *Daemon) handleConn(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	_ = conn.SetDeadline(time.Now().Add(HandlerTimeout))

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		_ = json.NewEncoder(conn).Encode(Response{OK: false, Error: "malformed request: " + err.Error()})
		return
	}

	resp := d.handle(ctx, req)
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		logging.Warn(ctx, "writing RPC response failed", "command", string(req.Command), "error", err.Error())
	}
}

func (d *Daemon) handle(ctx context.Context, req Request) Response {
	switch req.Command {
	case CmdRegisterContainerSession:
		if err := d.registerSession(ctx, req.Name, req.WorktreePath, req.RepoRoot); err != nil {
			return Response{OK: false, Error: err.Error()}
		}
		return Response{OK: true}

	case CmdUnregisterSession:
		d.unregisterSession(req.Name)
		return Response{OK: true}

	case CmdListSessions:
		return Response{OK: true, Sessions: d.listSessions()}

	case CmdPing:
		return Response{OK: true}

	case CmdShutdown:
		d.requestShutdown()
		return Response{OK: true}

	default:
		return Response{OK: false, Error: "unknown command: " + string(req.Command)}
	}
}
