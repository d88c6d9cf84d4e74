package isolate

import (
	"context"
	"embed"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/para-dev/para/internal/corerr"
)

//go:embed profiles/*.sb
var profilesFS embed.FS

// SandboxProfile names the closed set of profiles a caller may select.
type SandboxProfile string

const (
	ProfilePermissiveOpen    SandboxProfile = "permissive-open"
	ProfilePermissiveClosed  SandboxProfile = "permissive-closed"
	ProfileRestrictiveClosed SandboxProfile = "restrictive-closed"
	ProfileStandardProxied   SandboxProfile = "standard-proxied"
)

// networkRestricted reports whether a profile denies unproxied outbound
// network access and therefore needs the allow-listing proxy started.
func (p SandboxProfile) networkRestricted() bool {
	switch p {
	case ProfilePermissiveClosed, ProfileRestrictiveClosed, ProfileStandardProxied:
		return true
	default:
		return false
	}
}

func (p SandboxProfile) filename() (string, error) {
	switch p {
	case ProfilePermissiveOpen, ProfilePermissiveClosed, ProfileRestrictiveClosed, ProfileStandardProxied:
		return "profiles/" + string(p) + ".sb", nil
	default:
		return "", corerr.Newf(corerr.NameInvalid, "unknown sandbox profile %q", p)
	}
}

// SandboxOptions configures WrapCommand.
type SandboxOptions struct {
	Profile      SandboxProfile
	WorktreePath string
	Command      string
	Args         []string
	Env          []string // base environment, KEY=VALUE, before proxy/profile injection
	ExtraDomains []string
}

// WrappedCommand is the effective program a caller should exec, plus an
// optional generated wrapper script for setups exec can't express directly
// (e.g. a trap that tears the proxy down on exit).
type WrappedCommand struct {
	Program       string
	Args          []string
	Env           []string
	Dir           string // working directory Run execs Program in, if set
	WrapperScript string // path to a generated script, or "" if Program/Args suffice
	ProfilePath   string // temp file holding the resolved profile content
	proxy         *Proxy
}

// Stop tears down any proxy WrapCommand started alongside the sandbox, and
// removes the temporary profile file. Safe to call once the wrapped command
// has exited.
func (w *WrappedCommand) Stop() error {
	var err error
	if w.proxy != nil {
		err = w.proxy.Close()
	}
	if w.ProfilePath != "" {
		_ = os.Remove(w.ProfilePath)
	}
	return err
}

// Run execs the wrapped command with the caller's terminal attached
// through a pty, the pattern re-cinq-detergent uses to give a spawned
// agent process a real terminal rather than a pipe. Unlike that one-way
// log-tailing use, Run wires the pty bidirectionally (stdin included)
// since the sandbox-wrapped process here is interactive (an editor or
// an agent session, not a batch job).
func (w *WrappedCommand) Run(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, w.Program, w.Args...)
	cmd.Env = append(os.Environ(), w.Env...)
	cmd.Dir = w.Dir

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return corerr.Wrap(corerr.IoError, err, "starting pty-attached command")
	}
	defer func() { _ = ptmx.Close() }()

	resize := make(chan os.Signal, 1)
	signal.Notify(resize, syscall.SIGWINCH)
	defer signal.Stop(resize)
	go func() {
		for range resize {
			_ = pty.InheritSize(os.Stdin, ptmx)
		}
	}()
	resize <- syscall.SIGWINCH // size it once up front, same as the first resize event would

	stdinFD := int(os.Stdin.Fd())
	if term.IsTerminal(stdinFD) {
		prevState, err := term.MakeRaw(stdinFD)
		if err == nil {
			defer func() { _ = term.Restore(stdinFD, prevState) }()
		}
	}

	go func() { _, _ = io.Copy(ptmx, os.Stdin) }()
	_, _ = io.Copy(os.Stdout, ptmx)

	return cmd.Wait()
}

// sandboxExecutor names the platform sandbox facility's executable. Overridable
// in tests.
var sandboxExecutor = "sandbox-exec"

// WrapCommand resolves a named profile, writes it to a private temp file,
// starts an allow-listing proxy if the profile restricts the network, and
// returns the effective command to exec.
func WrapCommand(ctx context.Context, opts SandboxOptions) (*WrappedCommand, error) {
	profileName, err := opts.Profile.filename()
	if err != nil {
		return nil, err
	}
	content, err := profilesFS.ReadFile(profileName)
	if err != nil {
		return nil, corerr.Wrap(corerr.IoError, err, "reading embedded sandbox profile")
	}
	content = []byte(strings.ReplaceAll(string(content), "(param \"WORKTREE_PATH\")", fmt.Sprintf("%q", opts.WorktreePath)))

	profileFile, err := os.CreateTemp("", "para-sandbox-*.sb")
	if err != nil {
		return nil, corerr.Wrap(corerr.IoError, err, "creating sandbox profile temp file")
	}
	if err := profileFile.Chmod(0o600); err != nil {
		_ = profileFile.Close()
		_ = os.Remove(profileFile.Name())
		return nil, corerr.Wrap(corerr.IoError, err, "restricting sandbox profile permissions")
	}
	if _, err := profileFile.Write(content); err != nil {
		_ = profileFile.Close()
		_ = os.Remove(profileFile.Name())
		return nil, corerr.Wrap(corerr.IoError, err, "writing sandbox profile")
	}
	if err := profileFile.Close(); err != nil {
		_ = os.Remove(profileFile.Name())
		return nil, corerr.Wrap(corerr.IoError, err, "closing sandbox profile")
	}

	env := append([]string(nil), opts.Env...)
	var proxy *Proxy
	if opts.Profile.networkRestricted() {
		proxy, err = StartProxy(ctx, AllowedDomains(opts.ExtraDomains))
		if err != nil {
			_ = os.Remove(profileFile.Name())
			return nil, corerr.Wrap(corerr.NetworkIsolationFailed, err, "starting allow-listing proxy")
		}
		env = append(env,
			"HTTP_PROXY="+proxy.URL(),
			"HTTPS_PROXY="+proxy.URL(),
			"http_proxy="+proxy.URL(),
			"https_proxy="+proxy.URL(),
		)
	}

	wrapped := &WrappedCommand{
		Program:     sandboxExecutor,
		Args:        append([]string{"-f", profileFile.Name(), opts.Command}, opts.Args...),
		Env:         env,
		Dir:         opts.WorktreePath,
		ProfilePath: profileFile.Name(),
		proxy:       proxy,
	}

	if runtime.GOOS != "darwin" {
		// Non-macOS hosts have no sandbox-exec; the caller still gets a
		// WrappedCommand carrying the proxy env so --sandbox degrades to
		// network allow-listing only, rather than failing outright.
		wrapped.Program = opts.Command
		wrapped.Args = opts.Args
	}

	return wrapped, nil
}

// worktreeSetupScript returns the configured setup script path under
// worktreePath, defaulting to .para/setup.sh, if it exists.
func worktreeSetupScript(worktreePath, configured string) (string, bool) {
	rel := configured
	if rel == "" {
		rel = filepath.Join(".para", "setup.sh")
	}
	full := filepath.Join(worktreePath, rel)
	if info, err := os.Stat(full); err == nil && !info.IsDir() {
		return full, true
	}
	return "", false
}
