// Command sync runs one incremental synchronization of the configured
// sources and exits.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Exit codes for different failure modes.
const (
	ExitSuccess = 0 // every selected source synced
	ExitPartial = 1 // at least one source failed
	ExitError   = 2 // configuration or startup error
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)

		var partial *PartialError
		if errors.As(err, &partial) {
			os.Exit(ExitPartial)
		}
		os.Exit(ExitError)
	}
	os.Exit(ExitSuccess)
}
