// Command aql runs AQL queries over openEHR records.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/aqlengine/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := cli.ExitSuccess
	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		// Commands report their own failures as ExitErrors. Anything else
		// is a usage error from cobra.
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			code = cli.GetExitCode(exitErr)
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
			code = cli.ExitCommandError
		}
	}
	stop()
	os.Exit(code)
}
