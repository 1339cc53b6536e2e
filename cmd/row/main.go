// Command row applies user-defined shell-command actions to directories
// in a workspace, submitting eligible work to SLURM or a local shell and
// keeping crash-safe state of what has completed, what has been
// submitted, and what remains eligible.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rowhpc/row/internal/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(cmd.Execute(ctx))
}
