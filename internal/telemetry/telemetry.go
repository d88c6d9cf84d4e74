// Package telemetry is a best-effort, opt-in command-usage tracker. It
// never blocks or fails a CLI invocation: a disabled, misconfigured, or
// unreachable telemetry backend silently degrades to a no-op.
package telemetry

import (
	"context"
	"net"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/posthog/posthog-go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type contextKey struct{}

// WithClient attaches client to ctx for retrieval by command handlers
// that want to emit a session-lifecycle event without threading the
// client through every call signature.
func WithClient(ctx context.Context, client Client) context.Context {
	return context.WithValue(ctx, contextKey{}, client)
}

// GetClient retrieves the Client attached by WithClient, or a NoOpClient
// if none was attached.
func GetClient(ctx context.Context) Client {
	if client, ok := ctx.Value(contextKey{}).(Client); ok {
		return client
	}
	return &NoOpClient{}
}

var (
	// PostHogAPIKey is set at build time for production.
	PostHogAPIKey = "phc_development_key"
	// PostHogEndpoint is set at build time for production.
	PostHogEndpoint = "https://eu.i.posthog.com"
)

// Client records command usage.
type Client interface {
	TrackCommand(cmd *cobra.Command, kind string, containerized bool)
	TrackSessionEvent(event string, properties map[string]any)
	Close()
}

// NoOpClient discards everything; returned when telemetry is disabled.
type NoOpClient struct{}

func (n *NoOpClient) TrackCommand(_ *cobra.Command, _ string, _ bool) {}
func (n *NoOpClient) TrackSessionEvent(_ string, _ map[string]any)    {}
func (n *NoOpClient) Close()                                         {}

// silentLogger swallows posthog-go's own log output; a best-effort
// reporter has nothing useful to say about its own delivery failures.
type silentLogger struct{}

func (silentLogger) Logf(_ string, _ ...interface{})   {}
func (silentLogger) Debugf(_ string, _ ...interface{}) {}
func (silentLogger) Warnf(_ string, _ ...interface{})  {}
func (silentLogger) Errorf(_ string, _ ...interface{}) {}

// PostHogClient is the real telemetry client.
type PostHogClient struct {
	client    posthog.Client
	machineID string
	version   string
	mu        sync.RWMutex
}

// NewClient returns a PostHogClient if telemetry is enabled and a
// machine ID and working client can be constructed, NoOpClient
// otherwise. The PARA_TELEMETRY_OPTOUT environment variable always wins
// over the enabled flag.
func NewClient(version string, telemetryEnabled bool) Client {
	if os.Getenv("PARA_TELEMETRY_OPTOUT") != "" {
		return &NoOpClient{}
	}
	if !telemetryEnabled {
		return &NoOpClient{}
	}

	id, err := machineid.ProtectedID("para-cli")
	if err != nil {
		return &NoOpClient{}
	}

	// A fast-timeout transport: telemetry must never make the CLI wait on
	// exit for a slow or unreachable network.
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: 100 * time.Millisecond,
		}).DialContext,
		TLSHandshakeTimeout:   100 * time.Millisecond,
		ResponseHeaderTimeout: 100 * time.Millisecond,
	}

	client, err := posthog.NewWithConfig(PostHogAPIKey, posthog.Config{
		Endpoint:           PostHogEndpoint,
		ShutdownTimeout:    100 * time.Millisecond,
		BatchUploadTimeout: 200 * time.Millisecond,
		Transport:          transport,
		Logger:             silentLogger{},
		DisableGeoIP:       posthog.Ptr(true),
		DefaultEventProperties: posthog.NewProperties().
			Set("cli_version", version).
			Set("os", runtime.GOOS).
			Set("arch", runtime.GOARCH),
	})
	if err != nil {
		return &NoOpClient{}
	}

	return &PostHogClient{client: client, machineID: id, version: version}
}

// TrackCommand records one invocation: the command path, its session
// kind (Worktree/Container/"" for non-session commands), whether the
// session was containerized, and the flag names (never values) set.
func (p *PostHogClient) TrackCommand(cmd *cobra.Command, kind string, containerized bool) {
	if cmd == nil || cmd.Hidden {
		return
	}

	p.mu.RLock()
	id := p.machineID
	c := p.client
	p.mu.RUnlock()
	if c == nil {
		return
	}

	var flags []string
	cmd.Flags().Visit(func(flag *pflag.Flag) {
		flags = append(flags, flag.Name)
	})

	props := posthog.NewProperties().
		Set("command", cmd.CommandPath()).
		Set("session_kind", kind).
		Set("containerized", containerized)
	if len(flags) > 0 {
		props.Set("flags", flags)
	}

	//nolint:errcheck // best-effort: a delivery failure must not affect the CLI
	_ = c.Enqueue(posthog.Capture{
		DistinctId: id,
		Event:      "cli_command_executed",
		Properties: props,
	})
}

// TrackSessionEvent records a session lifecycle milestone (created,
// finished, integrated, cancelled, recovered) with arbitrary
// non-identifying properties.
func (p *PostHogClient) TrackSessionEvent(event string, properties map[string]any) {
	p.mu.RLock()
	id := p.machineID
	c := p.client
	p.mu.RUnlock()
	if c == nil {
		return
	}

	props := posthog.NewProperties()
	for k, v := range properties {
		props.Set(k, v)
	}

	//nolint:errcheck // best-effort
	_ = c.Enqueue(posthog.Capture{
		DistinctId: id,
		Event:      event,
		Properties: props,
	})
}

// Close flushes pending events, bounded by the client's own
// ShutdownTimeout.
func (p *PostHogClient) Close() {
	p.mu.RLock()
	c := p.client
	p.mu.RUnlock()
	if c != nil {
		_ = c.Close()
	}
}
