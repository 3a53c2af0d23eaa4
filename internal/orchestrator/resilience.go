package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/aristath/asmgallery/internal/explorer"
)

// Remote endpoints, used as breaker names and metric labels.
const (
	EndpointCompile = "compile"
	EndpointExplain = "explain"
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	MaxRetries          int           // Retries after the first attempt (default 3)
	InitialInterval     time.Duration // Initial retry interval (default 1s)
	MaxInterval         time.Duration // Maximum retry interval (default 30s)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:          3,
		InitialInterval:     time.Second,
		MaxInterval:         30 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// BreakerConfig configures the per-endpoint circuit breakers.
type BreakerConfig struct {
	Threshold   uint32        // Consecutive transient failures that open the circuit (default 5)
	OpenTimeout time.Duration // Time spent open before probing again (default 30s)
}

// CircuitBreakerRegistry manages per-endpoint circuit breakers.
type CircuitBreakerRegistry struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	logger   zerolog.Logger
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewCircuitBreakerRegistry creates a new circuit breaker registry.
func NewCircuitBreakerRegistry(cfg BreakerConfig, logger zerolog.Logger) *CircuitBreakerRegistry {
	if cfg.Threshold == 0 {
		cfg.Threshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	return &CircuitBreakerRegistry{
		cfg:      cfg,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get returns the circuit breaker for endpoint, creating it on first use.
func (r *CircuitBreakerRegistry) Get(endpoint string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[endpoint]; ok {
		return cb
	}

	threshold := r.cfg.Threshold
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        endpoint,
		MaxRequests: 1,
		Timeout:     r.cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.logger.Warn().Str("endpoint", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state change")
		},
		IsSuccessful: func(err error) bool {
			// Only transient errors say anything about the service's health.
			// Rejected requests and our own cancellation do not.
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			return !explorer.IsRetriable(err)
		},
	})

	r.breakers[endpoint] = cb
	return cb
}

// retryObserver is told about each retry before the backoff wait.
type retryObserver func(attempt int, wait time.Duration, err error)

// callWithRetry runs op through cb, retrying transient failures with
// exponential backoff. It returns the last error and the number of attempts.
// An open circuit counts as transient; permanent errors stop immediately.
//
// Cancelling ctx stops further attempts and backoff waits. An attempt that
// has already started runs on a detached context and ends on its own
// per-call timeout.
func callWithRetry[T any](ctx context.Context, cb *gobreaker.CircuitBreaker, cfg RetryConfig, notify retryObserver, op func(context.Context) (T, error)) (T, int, error) {
	var (
		out      T
		attempts int
	)

	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		attempts++
		result, err := cb.Execute(func() (interface{}, error) {
			return op(context.WithoutCancel(ctx))
		})
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return err
			}
			if !explorer.IsRetriable(err) {
				return backoff.Permanent(err)
			}
			return err
		}

		out = result.(T)
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = cfg.InitialInterval
	policy.MaxInterval = cfg.MaxInterval
	policy.Multiplier = cfg.Multiplier
	policy.RandomizationFactor = cfg.RandomizationFactor
	policy.MaxElapsedTime = 0 // bounded by MaxRetries

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(maxRetries)), ctx)

	err := backoff.RetryNotify(operation, b, func(err error, wait time.Duration) {
		if notify != nil {
			notify(attempts, wait, err)
		}
	})
	return out, attempts, err
}

// isTransient reports whether a final error from callWithRetry should be
// retried by a later run.
func isTransient(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}
	return explorer.IsRetriable(err)
}
