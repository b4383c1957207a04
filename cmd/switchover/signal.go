package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
)

// errInterrupted signals that the run was cancelled by SIGINT/SIGTERM
// rather than failing on its own, so main can map it to exit code 130
// (spec.md §6).
var errInterrupted = errors.New("interrupted")

// withSignalContext returns a context cancelled on SIGINT/SIGTERM, along
// with a stop function the caller must defer. The state engine's Close
// is always invoked by the caller before returning, regardless of which
// of these triggered cancellation (spec.md §4.1 termination handler).
func withSignalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}
