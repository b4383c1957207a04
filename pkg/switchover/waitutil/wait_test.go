package waitutil

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestForSucceedsImmediately(t *testing.T) {
	calls := 0
	err := For(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		return true, nil
	}, Options{Timeout: time.Second, Interval: 10 * time.Millisecond, Description: "immediate"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 predicate call, got %d", calls)
	}
}

func TestForTimesOutWithoutPostTimeoutSuccess(t *testing.T) {
	err := For(context.Background(), func(ctx context.Context) (bool, error) {
		return false, nil
	}, Options{Timeout: 30 * time.Millisecond, Interval: 10 * time.Millisecond, Description: "never true"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestForAllowsPostTimeoutSuccess(t *testing.T) {
	calls := 0
	err := For(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		return calls > 2, nil
	}, Options{
		Timeout:                 20 * time.Millisecond,
		Interval:                10 * time.Millisecond,
		Description:             "eventually true",
		AllowPostTimeoutSuccess: true,
	})
	if err != nil {
		t.Fatalf("expected post-timeout success, got error: %v", err)
	}
}

func TestForPropagatesPredicateError(t *testing.T) {
	boom := errors.New("boom")
	err := For(context.Background(), func(ctx context.Context) (bool, error) {
		return false, boom
	}, Options{Timeout: time.Second, Interval: 10 * time.Millisecond, Description: "erroring"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestForRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := For(ctx, func(ctx context.Context) (bool, error) {
		return false, nil
	}, Options{Timeout: time.Second, Interval: 5 * time.Millisecond, Description: "cancelled"})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}
