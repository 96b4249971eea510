package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"

	"github.com/cybre/tapo-light-sync/internal/tapo"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		if eris.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintln(os.Stderr, describeFailure(err))
		os.Exit(1)
	}
}

// describeFailure keeps the three fatal conditions distinguishable for the
// user: bad credentials, unreachable device, unavailable capture device.
func describeFailure(err error) string {
	switch {
	case tapo.IsAuthError(err):
		return fmt.Sprintf("invalid credentials: %v", err)
	case tapo.IsConnectError(err):
		return fmt.Sprintf("cannot reach device: %v", err)
	default:
		return err.Error()
	}
}
