package telemetry

import (
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestNewClientOptOutEnv(t *testing.T) {
	t.Setenv("PARA_TELEMETRY_OPTOUT", "1")

	client := NewClient("1.0.0", true)

	_, ok := client.(*NoOpClient)
	require.True(t, ok, "PARA_TELEMETRY_OPTOUT should force NoOpClient even when enabled")
}

func TestNewClientDisabled(t *testing.T) {
	client := NewClient("1.0.0", false)

	_, ok := client.(*NoOpClient)
	require.True(t, ok)
}

func TestNoOpClientMethodsDoNotPanic(t *testing.T) {
	client := &NoOpClient{}

	require.NotPanics(t, func() {
		client.TrackCommand(nil, "", false)
		client.TrackCommand(&cobra.Command{Use: "test"}, "Container", true)
		client.TrackSessionEvent("session_created", map[string]any{"kind": "Worktree"})
		client.Close()
	})
}

func TestWithClientAndGetClient(t *testing.T) {
	ctx := context.Background()
	client := &NoOpClient{}

	ctx = WithClient(ctx, client)
	retrieved := GetClient(ctx)

	require.Same(t, client, retrieved)
}

func TestGetClientReturnsNoOpWhenNotSet(t *testing.T) {
	client := GetClient(context.Background())

	_, ok := client.(*NoOpClient)
	require.True(t, ok)
}

func TestPostHogClientSkipsHiddenAndNilCommands(t *testing.T) {
	client := &PostHogClient{machineID: "test-id"}

	require.NotPanics(t, func() {
		client.TrackCommand(&cobra.Command{Use: "hidden", Hidden: true}, "", false)
		client.TrackCommand(nil, "", false)
	})
}

func TestTrackCommandUsesCommandPath(t *testing.T) {
	client := &PostHogClient{machineID: "test-id"}

	cmd := &cobra.Command{Use: "start"}
	rootCmd := &cobra.Command{Use: "para"}
	rootCmd.AddCommand(cmd)

	require.Equal(t, "para start", cmd.CommandPath())
	require.NotPanics(t, func() { client.TrackCommand(cmd, "Container", true) })
}

func TestPostHogClientCloseWithNilInternalClient(t *testing.T) {
	client := &PostHogClient{machineID: "test-id"}
	require.NotPanics(t, client.Close)
}

func TestTrackSessionEventWithNilInternalClient(t *testing.T) {
	client := &PostHogClient{machineID: "test-id"}
	require.NotPanics(t, func() {
		client.TrackSessionEvent("session_finished", map[string]any{"strategy": "Squash"})
	})
}
