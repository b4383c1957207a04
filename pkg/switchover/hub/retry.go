package hub

import (
	"context"
	"errors"
	"net"
	"net/http"
	"syscall"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/openshift/acm-hub-switchover/pkg/switchover/xerrors"
)

// retryBackoff is the capped exponential backoff spec.md §4.2 requires:
// 5 attempts, starting ~1s, cap ~16s.
var retryBackoff = wait.Backoff{
	Duration: time.Second,
	Factor:   2.0,
	Steps:    5,
	Cap:      16 * time.Second,
}

// isTransient classifies an API error per spec.md §4.2: server-side 5xx,
// 429, connection resets, and read timeouts are retried; everything else
// (including other 4xx) is not.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if apierrors.IsServerTimeout(err) || apierrors.IsTimeout(err) || apierrors.IsTooManyRequests(err) || apierrors.IsInternalError(err) || apierrors.IsServiceUnavailable(err) {
		return true
	}
	var statusErr apierrors.APIStatus
	if errors.As(err, &statusErr) {
		code := statusErr.Status().Code
		if code >= 500 || code == http.StatusTooManyRequests {
			return true
		}
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

// withRetry applies the outer retry wrapper to a single Kubernetes API
// call. Per spec.md §4.2 it must never be used to wrap an operation that
// itself calls another retried operation (documented anti-pattern): every
// call site in gateway.go invokes withRetry directly around exactly one
// client call, never around another gateway method.
func withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	backoff := retryBackoff
	err := wait.ExponentialBackoffWithContext(ctx, backoff, func(ctx context.Context) (bool, error) {
		err := fn(ctx)
		if err == nil {
			return true, nil
		}
		lastErr = err
		if isTransient(err) {
			return false, nil
		}
		return false, err
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, wait.ErrWaitTimeout) {
		return xerrors.Fatal(lastErr, "%s: exhausted retries against transient failures", op)
	}
	return xerrors.Fatal(err, "%s", op)
}
