package fetcher

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func retryPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, Delay: 0, Retryable: IsTransient}
}

func TestRetrySucceedsOnThirdAttempt(t *testing.T) {
	calls := 0
	err := retryPolicy(3).Do(context.Background(), zerolog.Nop(), func(context.Context) error {
		calls++
		if calls < 3 {
			return Transient(errors.New("flaky"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success on third attempt: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryDoesNotRetryFormatErrors(t *testing.T) {
	calls := 0
	err := retryPolicy(3).Do(context.Background(), zerolog.Nop(), func(context.Context) error {
		calls++
		return Format("broken table")
	})
	if !IsFormat(err) {
		t.Fatalf("expected format error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("format error must not be retried, got %d calls", calls)
	}
}

func TestRetryExhaustsAndReturnsLastError(t *testing.T) {
	calls := 0
	err := retryPolicy(3).Do(context.Background(), zerolog.Nop(), func(context.Context) error {
		calls++
		return Transient(errors.New("down"))
	})
	if !IsTransient(err) {
		t.Fatalf("expected the original transient error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryZeroPolicyRunsOnce(t *testing.T) {
	calls := 0
	err := (RetryPolicy{}).Do(context.Background(), zerolog.Nop(), func(context.Context) error {
		calls++
		return Transient(errors.New("down"))
	})
	if err == nil || calls != 1 {
		t.Fatalf("zero policy should run exactly once, calls=%d err=%v", calls, err)
	}
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retryPolicy(3).Do(ctx, zerolog.Nop(), func(context.Context) error {
		t.Fatal("operation must not run with cancelled context")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
