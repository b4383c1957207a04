// Package waitutil implements the single wait/poll primitive the rest of
// the switchover core builds on (spec.md §4.3). Every place the teacher
// repo reaches for an ad-hoc `for ; ; time.Sleep(sleepTime)` loop
// (availability-prober/availability_prober.go is the clearest example)
// is replaced here by one call shape: explicit predicate, explicit
// timeout, explicit interval, explicit cancellation.
package waitutil

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/openshift/acm-hub-switchover/pkg/switchover/xerrors"
)

// Predicate reports whether the awaited condition currently holds. A
// non-nil error aborts the wait immediately as fatal.
type Predicate func(ctx context.Context) (bool, error)

// Options configures a single For call.
type Options struct {
	// Timeout bounds the total time spent waiting. Required; zero means
	// "fail after the first Interval unless the first evaluation is true"
	// (with AllowPostTimeoutSuccess, one more evaluation happens then).
	Timeout time.Duration
	// Interval is the sleep between predicate evaluations. Required.
	Interval time.Duration
	// Description is used in the timeout error message.
	Description string
	// AllowPostTimeoutSuccess, when true, performs one additional
	// predicate evaluation exactly at timeout before failing.
	AllowPostTimeoutSuccess bool
	// Logger, if set, receives one Info call per poll iteration at V(1).
	Logger logr.Logger
}

// For evaluates predicate immediately, then polls at opts.Interval until
// it returns true, ctx is cancelled, or opts.Timeout elapses. See
// spec.md §4.3 for the exact semantics of each branch.
func For(ctx context.Context, predicate Predicate, opts Options) error {
	if opts.Interval <= 0 {
		return xerrors.Fatal(nil, "wait %q misconfigured: interval must be positive", opts.Description)
	}

	deadline := time.Now().Add(opts.Timeout)

	ok, err := evaluate(ctx, predicate, opts)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	timer := time.NewTimer(opts.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return xerrors.Cancelled(fmt.Sprintf("wait for %q cancelled: %v", opts.Description, ctx.Err()))
		case <-timer.C:
		}

		if time.Now().After(deadline) {
			if opts.AllowPostTimeoutSuccess {
				ok, err := evaluate(ctx, predicate, opts)
				if err != nil {
					return err
				}
				if ok {
					return nil
				}
			}
			return xerrors.Fatal(nil, "timed out after %s waiting for %s", opts.Timeout, opts.Description)
		}

		ok, err := evaluate(ctx, predicate, opts)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		timer.Reset(opts.Interval)
	}
}

func evaluate(ctx context.Context, predicate Predicate, opts Options) (bool, error) {
	ok, err := predicate(ctx)
	if opts.Logger.GetSink() != nil {
		opts.Logger.V(1).Info("poll iteration", "description", opts.Description, "satisfied", ok)
	}
	if err != nil {
		return false, xerrors.Fatal(err, "predicate for %q failed", opts.Description)
	}
	return ok, nil
}
