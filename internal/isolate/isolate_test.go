package isolate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/docker/docker/api/types/mount"
	"github.com/stretchr/testify/require"

	"github.com/para-dev/para/internal/config"
)

func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	return srv
}

func TestSelectImage(t *testing.T) {
	require.Equal(t, "flag-image", selectImage("flag-image", &config.DockerConfig{DefaultImage: "config-image"}))
	require.Equal(t, "config-image", selectImage("", &config.DockerConfig{DefaultImage: "config-image"}))
	require.Equal(t, config.DefaultImage, selectImage("", nil))
	require.Equal(t, config.DefaultImage, selectImage("", &config.DockerConfig{}))
}

func TestForwardedEnv(t *testing.T) {
	host := []string{"TERM=xterm-256color", "LANG=en_US.UTF-8", "SECRET_TOKEN=abc123", "EDITOR=vim"}
	out := forwardedEnv(host, []string{"TERM", "LANG", "EDITOR"}, "HTTP_PROXY=http://127.0.0.1:9")

	require.Contains(t, out, "TERM=xterm-256color")
	require.Contains(t, out, "LANG=en_US.UTF-8")
	require.Contains(t, out, "EDITOR=vim")
	require.Contains(t, out, "HTTP_PROXY=http://127.0.0.1:9")
	require.NotContains(t, out, "SECRET_TOKEN=abc123")
}

func TestForwardedEnvEmptyAllowList(t *testing.T) {
	out := forwardedEnv([]string{"TERM=xterm", "LANG=en_US"}, nil)
	require.Empty(t, out)
}

func TestParseExtraMount(t *testing.T) {
	m, ok := parseExtraMount("/host/path:/container/path")
	require.True(t, ok)
	require.Equal(t, mount.Mount{Type: mount.TypeBind, Source: "/host/path", Target: "/container/path"}, m)

	m, ok = parseExtraMount("/host/path:/container/path:ro")
	require.True(t, ok)
	require.True(t, m.ReadOnly)

	_, ok = parseExtraMount("not-a-mount-spec")
	require.False(t, ok)
}

func TestBuildMounts(t *testing.T) {
	mounts := buildMounts("/host/worktree", []string{"/extra:/in-container"})
	require.Len(t, mounts, 2)
	require.Equal(t, "/host/worktree", mounts[0].Source)
	require.Equal(t, workspaceMountPath, mounts[0].Target)
	require.Equal(t, "/extra", mounts[1].Source)
}

func TestDockerContainerName(t *testing.T) {
	require.Equal(t, "para-swift-otter", dockerContainerName("swift-otter"))
}

func TestAllowedDomainsDedupesAndIncludesEssentials(t *testing.T) {
	domains := AllowedDomains([]string{"github.com", "Example.Com", "example.com"})
	require.Contains(t, domains, "github.com")
	require.Contains(t, domains, "api.anthropic.com")
	require.Contains(t, domains, "example.com")

	seen := map[string]int{}
	for _, d := range domains {
		seen[d]++
	}
	for d, count := range seen {
		require.Equalf(t, 1, count, "domain %q appeared %d times", d, count)
	}
}

func TestProxyAllowsListedDomainOverPlainHTTP(t *testing.T) {
	backend := newEchoServer(t)
	defer backend.Close()

	proxy, err := StartProxy(context.Background(), []string{"127.0.0.1"})
	require.NoError(t, err)
	defer func() { _ = proxy.Close() }()

	client := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyURL(mustParseURL(t, proxy.URL())),
		},
	}
	resp, err := client.Get(backend.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProxyDeniesUnlistedDomain(t *testing.T) {
	backend := newEchoServer(t)
	defer backend.Close()

	proxy, err := StartProxy(context.Background(), []string{"not-the-backend.invalid"})
	require.NoError(t, err)
	defer func() { _ = proxy.Close() }()

	client := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyURL(mustParseURL(t, proxy.URL())),
		},
	}
	resp, err := client.Get(backend.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestJanitorDueWhenStateFileMissing(t *testing.T) {
	j := &Janitor{}
	due, err := j.due(t.TempDir() + "/janitor-state.json")
	require.NoError(t, err)
	require.True(t, due)
}

func TestJanitorRecordsThenSkipsUntilIntervalElapses(t *testing.T) {
	j := &Janitor{}
	statePath := t.TempDir() + "/janitor-state.json"

	require.NoError(t, j.recordRun(statePath))

	due, err := j.due(statePath)
	require.NoError(t, err)
	require.False(t, due)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
