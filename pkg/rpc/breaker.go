package rpc

import (
	"sync"
	"time"

	"github.com/solwire/solwire/pkg/errors"
	"go.uber.org/zap"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int32

const (
	// StateClosed allows all requests to pass through
	StateClosed CircuitState = iota
	// StateOpen blocks all requests
	StateOpen
	// StateHalfOpen allows a limited number of requests to test if the
	// endpoint has recovered
	StateHalfOpen
)

// BreakerConfig is the configuration for the circuit breaker
type BreakerConfig struct {
	FailureThreshold int           // Consecutive failures before opening
	SuccessThreshold int           // Consecutive successes before closing
	Timeout          time.Duration // Wait before probing after opening
}

// DefaultBreakerConfig returns production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          10 * time.Second,
	}
}

// CircuitBreaker implements the circuit breaker pattern for RPC requests
// to prevent hammering an unhealthy cluster endpoint.
type CircuitBreaker struct {
	config BreakerConfig
	logger *zap.Logger

	mu                   sync.Mutex
	state                CircuitState
	consecutiveFailures  int
	consecutiveSuccesses int
	nextRetryTime        time.Time
}

// NewCircuitBreaker creates a circuit breaker in the closed state.
func NewCircuitBreaker(config BreakerConfig, logger *zap.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		config: config,
		logger: logger.With(zap.String("component", "circuit_breaker")),
		state:  StateClosed,
	}
}

// Allow reports whether a request may proceed. In the open state it
// returns an error until the retry timeout elapses, then transitions to
// half-open.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed, StateHalfOpen:
		return nil
	case StateOpen:
		if time.Now().After(cb.nextRetryTime) {
			cb.state = StateHalfOpen
			cb.consecutiveSuccesses = 0
			cb.logger.Info("circuit breaker half-open")
			return nil
		}
		return errors.New(errors.ErrorTypeRPC, "circuit breaker open")
	}
	return nil
}

// MarkSuccess records a successful request.
func (cb *CircuitBreaker) MarkSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures = 0
	if cb.state == StateHalfOpen {
		cb.consecutiveSuccesses++
		if cb.consecutiveSuccesses >= cb.config.SuccessThreshold {
			cb.state = StateClosed
			cb.logger.Info("circuit breaker closed")
		}
	}
}

// MarkFailure records a failed request, opening the circuit when the
// failure threshold is reached.
func (cb *CircuitBreaker) MarkFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures++
	if cb.state == StateHalfOpen ||
		(cb.state == StateClosed && cb.consecutiveFailures >= cb.config.FailureThreshold) {
		cb.state = StateOpen
		cb.nextRetryTime = time.Now().Add(cb.config.Timeout)
		cb.logger.Warn("circuit breaker open",
			zap.Int("consecutive_failures", cb.consecutiveFailures))
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
