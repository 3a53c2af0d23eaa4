package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/aristath/asmgallery/internal/explorer"
)

func fastRetry(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:          maxRetries,
		InitialInterval:     time.Millisecond,
		MaxInterval:         5 * time.Millisecond,
		Multiplier:          2.0,
		RandomizationFactor: 0.1,
	}
}

// scripted returns an op that replays results in order.
func scripted(calls *atomic.Int32, results ...error) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		n := int(calls.Add(1)) - 1
		if n < len(results) && results[n] != nil {
			return "", results[n]
		}
		return "ok", nil
	}
}

func testBreaker(threshold uint32) *gobreaker.CircuitBreaker {
	return NewCircuitBreakerRegistry(BreakerConfig{Threshold: threshold, OpenTimeout: time.Minute}, zerolog.Nop()).Get("test")
}

func TestCallWithRetry_TransientThenSuccess(t *testing.T) {
	var calls atomic.Int32
	timeout := fmt.Errorf("POST /api/compiler/cg152/compile: %w", context.DeadlineExceeded)

	var notified []int
	out, attempts, err := callWithRetry(context.Background(), testBreaker(10), fastRetry(3),
		func(attempt int, wait time.Duration, err error) { notified = append(notified, attempt) },
		scripted(&calls, timeout, timeout))

	if err != nil {
		t.Fatalf("expected success after retries, got error: %v", err)
	}
	if out != "ok" {
		t.Errorf("expected 'ok', got %q", out)
	}
	if calls.Load() != 3 || attempts != 3 {
		t.Errorf("expected 3 calls (2 timeouts + 1 success), got calls=%d attempts=%d", calls.Load(), attempts)
	}
	if len(notified) != 2 || notified[0] != 1 || notified[1] != 2 {
		t.Errorf("expected retry notifications for attempts 1 and 2, got %v", notified)
	}
}

func TestCallWithRetry_PermanentNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"bad request", &explorer.StatusError{Op: "POST", Code: http.StatusBadRequest}},
		{"compile rejected", &explorer.CompileError{CompilerID: "cg152", ExitCode: 1}},
		{"undecodable", fmt.Errorf("GET: %w", explorer.ErrDecode)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			_, attempts, err := callWithRetry(context.Background(), testBreaker(10), fastRetry(3), nil,
				scripted(&calls, tt.err, tt.err, tt.err, tt.err))

			if err == nil {
				t.Fatal("expected an error")
			}
			if calls.Load() != 1 || attempts != 1 {
				t.Errorf("expected exactly 1 call, got %d", calls.Load())
			}
			if isTransient(err) {
				t.Errorf("error should be permanent: %v", err)
			}
		})
	}
}

func TestCallWithRetry_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	unavailable := &explorer.StatusError{Op: "POST", Code: http.StatusServiceUnavailable}

	_, attempts, err := callWithRetry(context.Background(), testBreaker(100), fastRetry(2), nil,
		scripted(&calls, unavailable, unavailable, unavailable, unavailable))

	if err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
	if calls.Load() != 3 || attempts != 3 {
		t.Errorf("expected 1 call + 2 retries, got %d", calls.Load())
	}
	var se *explorer.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusServiceUnavailable {
		t.Errorf("expected the last StatusError, got %v", err)
	}
	if !isTransient(err) {
		t.Error("exhausted transient error should stay retriable")
	}
}

func TestCallWithRetry_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	unavailable := &explorer.StatusError{Op: "POST", Code: http.StatusBadGateway}
	cb := testBreaker(2)

	_, attempts, err := callWithRetry(context.Background(), cb, fastRetry(3), nil,
		scripted(&calls, unavailable, unavailable, unavailable, unavailable))

	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected the breaker to stop calls after 2 failures, got %d", calls.Load())
	}
	if attempts != 4 {
		t.Errorf("expected 4 attempts, got %d", attempts)
	}
	if !isTransient(err) {
		t.Error("open circuit should be retriable")
	}
	if cb.State() != gobreaker.StateOpen {
		t.Errorf("expected open state, got %s", cb.State())
	}
}

func TestBreaker_IgnoresRejectedRequests(t *testing.T) {
	cb := testBreaker(1)
	badRequest := &explorer.StatusError{Op: "POST", Code: http.StatusBadRequest}

	for i := 0; i < 3; i++ {
		var calls atomic.Int32
		_, _, _ = callWithRetry(context.Background(), cb, fastRetry(0), nil, scripted(&calls, badRequest))
	}

	if cb.State() != gobreaker.StateClosed {
		t.Errorf("4xx responses must not trip the breaker, state=%s", cb.State())
	}
}

func TestCallWithRetry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	_, _, err := callWithRetry(ctx, testBreaker(10), fastRetry(3), nil, scripted(&calls))

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no calls on a cancelled context, got %d", calls.Load())
	}
}

func TestRegistry_ReusesBreakers(t *testing.T) {
	reg := NewCircuitBreakerRegistry(BreakerConfig{}, zerolog.Nop())
	if reg.Get(EndpointCompile) != reg.Get(EndpointCompile) {
		t.Error("expected the same breaker for the same endpoint")
	}
	if reg.Get(EndpointCompile) == reg.Get(EndpointExplain) {
		t.Error("expected distinct breakers per endpoint")
	}
}
