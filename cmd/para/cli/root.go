package cli

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/para-dev/para/internal/config"
	"github.com/para-dev/para/internal/telemetry"
)

// Version and Commit are overridden at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

type telemetryInfoKey struct{}

// telemetryInfo is the session-kind/containerized pair a command stashes
// onto its own context, if known, for PersistentPostRun to report.
type telemetryInfo struct {
	Kind          string
	Containerized bool
}

func withTelemetryInfo(cmd *cobra.Command, kind string, containerized bool) {
	cmd.SetContext(context.WithValue(cmd.Context(), telemetryInfoKey{}, telemetryInfo{Kind: kind, Containerized: containerized}))
}

// NewRootCmd builds the para command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "para",
		Short: "Parallel isolated development sessions",
		Long: `para orchestrates parallel, isolated development sessions: each one a
dedicated git worktree and branch, optionally launched inside a network-
isolated container, so multiple coding agents can work the same
repository at once without stepping on each other.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			cfg, err := config.Load()
			enabled := err == nil && cfg.Telemetry.Enabled

			client := telemetry.NewClient(Version, enabled)
			defer client.Close()

			info, _ := cmd.Context().Value(telemetryInfoKey{}).(telemetryInfo)
			client.TrackCommand(cmd, info.Kind, info.Containerized)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON instead of human-readable text")

	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newDispatchCmd())
	cmd.AddCommand(newFinishCmd())
	cmd.AddCommand(newIntegrateCmd())
	cmd.AddCommand(newContinueCmd())
	cmd.AddCommand(newCancelCmd())
	cmd.AddCommand(newCleanCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newResumeCmd())
	cmd.AddCommand(newRecoverCmd())
	cmd.AddCommand(newMonitorCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newDaemonCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "para %s (%s)\n", Version, Commit)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
