package cli

import (
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/para-dev/para/internal/config"
	"github.com/para-dev/para/internal/corerr"
	"github.com/para-dev/para/internal/isolate"
	"github.com/para-dev/para/internal/paths"
	"github.com/para-dev/para/internal/signalbus"
)

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the host-wide signal bus daemon",
	}
	cmd.AddCommand(newDaemonStartCmd(), newDaemonStopCmd(), newDaemonStatusCmd())
	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	var foreground bool
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the signal bus daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if signalbus.Running() {
				return writeResult(cmd, map[string]string{"status": "already running"}, func(w io.Writer) {
					fmt.Fprintln(w, "daemon is already running")
				})
			}

			cfg, err := config.Load()
			if err != nil {
				return writeError(cmd, corerr.Wrap(corerr.IoError, err, "loading configuration"))
			}

			launcher, err := isolate.New(&cfg.Docker)
			if err != nil {
				return writeError(cmd, err)
			}

			daemon, err := signalbus.New(launcher, cfg.Git.BranchPrefix, cfg.Session.ArchiveKeep)
			if err != nil {
				return writeError(cmd, err)
			}

			if !foreground {
				// A bare re-exec with a detach marker is the simplest
				// daemonization that needs no extra dependency: the child
				// inherits no controlling terminal reference it needs to
				// survive, and Run's own PID-file write is what a
				// subsequent `daemon status` actually checks against.
				if os.Getenv("PARA_DAEMON_FOREGROUND") == "" {
					return execDetached(cmd)
				}
			}

			return daemon.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&foreground, "foreground", false, "run in the foreground instead of detaching")
	return cmd
}

// execDetached re-execs this binary as `para daemon start --foreground`
// in a new session, so the returned daemon process outlives the
// invoking shell.
func execDetached(cmd *cobra.Command) error {
	self, err := os.Executable()
	if err != nil {
		return writeError(cmd, corerr.Wrap(corerr.IoError, err, "resolving executable path"))
	}
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return writeError(cmd, corerr.Wrap(corerr.IoError, err, "opening /dev/null"))
	}
	defer func() { _ = devNull.Close() }()

	proc, err := os.StartProcess(self, []string{self, "daemon", "start", "--foreground"}, &os.ProcAttr{
		Env:   append(os.Environ(), "PARA_DAEMON_FOREGROUND=1"),
		Files: []*os.File{devNull, devNull, devNull},
		Sys:   &syscall.SysProcAttr{Setsid: true},
	})
	if err != nil {
		return writeError(cmd, corerr.Wrap(corerr.IoError, err, "starting detached daemon process"))
	}

	return writeResult(cmd, map[string]int{"pid": proc.Pid}, func(w io.Writer) {
		fmt.Fprintf(w, "daemon started, pid %d\n", proc.Pid)
	})
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the signal bus daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !signalbus.Running() {
				return writeResult(cmd, map[string]string{"status": "not running"}, func(w io.Writer) {
					fmt.Fprintln(w, "daemon is not running")
				})
			}
			client, err := signalbus.NewClient()
			if err != nil {
				return writeError(cmd, err)
			}
			if err := client.Shutdown(); err != nil {
				return writeError(cmd, err)
			}
			return writeResult(cmd, map[string]string{"status": "stopped"}, func(w io.Writer) {
				fmt.Fprintln(w, "daemon stopped")
			})
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the daemon is running and what it's watching",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			running := signalbus.Running()
			socketPath, _ := paths.DaemonSocketPath()

			report := struct {
				Running    bool     `json:"running"`
				SocketPath string   `json:"socket_path"`
				Sessions   []string `json:"watched_sessions,omitempty"`
			}{Running: running, SocketPath: socketPath}

			if running {
				if client, err := signalbus.NewClient(); err == nil {
					report.Sessions, _ = client.ListSessions()
				}
			}

			return writeResult(cmd, report, func(w io.Writer) {
				if !report.Running {
					fmt.Fprintln(w, "daemon is not running")
					return
				}
				fmt.Fprintf(w, "daemon is running (socket %s)\n", report.SocketPath)
				fmt.Fprintf(w, "watching %d session(s)\n", len(report.Sessions))
				for _, name := range report.Sessions {
					fmt.Fprintf(w, "  %s\n", name)
				}
			})
		},
	}
}
