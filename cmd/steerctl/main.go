// steerctl drives and inspects the steering interface state machine.
//
// Usage:
//
//	steerctl run [ops...]
//	steerctl test ./internal/harness/testdata/scenarios
//	steerctl trace --db steer.db [--session id]
//	steerctl validate machines/steering.cue
//	steerctl table
//
// Exit codes:
//   - 0: success
//   - 1: failed operations, scenarios or validation
//   - 2: command error (bad flags, missing files)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/tablefsm/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
