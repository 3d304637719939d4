package keystore

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"github.com/unrepo/devportal/internal/monitoring"
)

// BreakerConfig holds configuration for the backend circuit breaker
type BreakerConfig struct {
	// MaxRequests is the number of requests let through while half-open
	MaxRequests uint32
	// Interval is the cyclic period of the closed state after which counts are cleared
	Interval time.Duration
	// Timeout is how long the breaker stays open before going half-open
	Timeout time.Duration
	// FailureThreshold is the number of consecutive failures that opens the breaker
	FailureThreshold uint32
}

// DefaultBreakerConfig returns default circuit breaker configuration
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerState is the exported state of the breaker
type BreakerState string

const (
	BreakerStateClosed   BreakerState = "closed"
	BreakerStateOpen     BreakerState = "open"
	BreakerStateHalfOpen BreakerState = "half-open"
)

// Breaker guards calls to the unrepo backend. Transport failures, timeouts and
// 5xx answers count as failures; business rejections do not.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker creates a named circuit breaker
func NewBreaker(name string, config *BreakerConfig) *Breaker {
	if config == nil {
		config = DefaultBreakerConfig()
	}
	monitoring.SetCircuitBreakerState(name, 0)

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Info().
				Str("circuit_breaker", name).
				Str("from", string(stateOf(from))).
				Str("to", string(stateOf(to))).
				Msg("Circuit breaker state changed")
			monitoring.SetCircuitBreakerState(name, stateGauge(to))
		},
		IsSuccessful: countsAsSuccess,
	})
	return &Breaker{cb: cb}
}

func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	// The caller gave up; that says nothing about backend health
	if errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, ErrBackendUnavailable) || errors.Is(err, ErrBackendTimeout) || errors.Is(err, ErrMalformedResponse) {
		return false
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Rejected()
	}
	return true
}

// Execute runs fn with circuit breaker protection
func (b *Breaker) Execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			log.Warn().
				Str("circuit_breaker", b.cb.Name()).
				Msg("Circuit breaker is open, rejecting request")
			return nil, ErrCircuitOpen
		}
		return nil, err
	}
	return result, nil
}

// State returns the current breaker state
func (b *Breaker) State() BreakerState {
	return stateOf(b.cb.State())
}

func stateOf(state gobreaker.State) BreakerState {
	switch state {
	case gobreaker.StateOpen:
		return BreakerStateOpen
	case gobreaker.StateHalfOpen:
		return BreakerStateHalfOpen
	default:
		return BreakerStateClosed
	}
}

func stateGauge(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 0.5
	default:
		return 0
	}
}
