package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/para-dev/para/cmd/para/cli"
	"github.com/para-dev/para/internal/corerr"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	rootCmd := cli.NewRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err == nil {
		return
	}

	var silent *cli.SilentError
	if !errors.As(err, &silent) {
		fmt.Fprintln(rootCmd.OutOrStderr(), "error:", err)
	}

	os.Exit(corerr.ExitCode(err))
}
