// Command marketdb queries and modifies the marketplace data store.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/marketdb/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()

	code := cli.GetExitCode(err)
	var exitErr *cli.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		// cobra flag and argument errors
		code = cli.ExitCommandError
	}
	if code == cli.ExitCommandError {
		fmt.Fprintln(os.Stderr, "marketdb:", err)
	}
	os.Exit(code)
}
