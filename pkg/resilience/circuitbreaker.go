package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when a request is rejected without being
// attempted because the circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the circuit's current phase.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// CircuitBreakerConfig controls the trip threshold and recovery timing.
// Zero values fall back to the defaults.
type CircuitBreakerConfig struct {
	FailureThreshold  int
	ResetTimeout      time.Duration
	HalfOpenMaxProbes int
}

func (cfg CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxProbes <= 0 {
		cfg.HalfOpenMaxProbes = 1
	}
	return cfg
}

// CircuitBreaker fails fast once a dependency has failed repeatedly. It
// trips open after FailureThreshold consecutive failures, rejects requests
// for ResetTimeout, then lets a bounded number of probes through; one
// probe success closes the circuit again.
type CircuitBreaker struct {
	name   string
	cfg    CircuitBreakerConfig
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	failures    int
	openedAt    time.Time
	probesInUse int
}

// NewCircuitBreaker creates a closed CircuitBreaker.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg.withDefaults(),
		state:  StateClosed,
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
	}
}

// Execute runs fn if the circuit admits the request, recording the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.observe(err)
	return err
}

// GetState returns the current State.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the circuit back to closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.toClosed()
	cb.logger.Info("circuit manually reset")
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateOpen:
		remaining := cb.cfg.ResetTimeout - time.Since(cb.openedAt)
		if remaining > 0 {
			return fmt.Errorf("%w: %s (retry after %v)", ErrCircuitOpen, cb.name, remaining)
		}
		cb.state = StateHalfOpen
		cb.probesInUse = 0
		cb.logger.Info("circuit transitioning to half-open", "after", cb.cfg.ResetTimeout)
	case StateHalfOpen:
		if cb.probesInUse >= cb.cfg.HalfOpenMaxProbes {
			return fmt.Errorf("%w: %s (probe limit reached)", ErrCircuitOpen, cb.name)
		}
	}
	if cb.state == StateHalfOpen {
		cb.probesInUse++
	}
	return nil
}

func (cb *CircuitBreaker) observe(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err == nil {
		if cb.state == StateHalfOpen {
			cb.toClosed()
			cb.logger.Info("circuit closed (recovered)")
		}
		cb.failures = 0
		return
	}

	cb.failures++
	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.state = StateOpen
			cb.openedAt = time.Now()
			cb.logger.Warn("circuit opened",
				"consecutive_failures", cb.failures,
				"threshold", cb.cfg.FailureThreshold,
			)
		}
	case StateHalfOpen:
		cb.state = StateOpen
		cb.openedAt = time.Now()
		cb.logger.Warn("circuit re-opened (probe failed)")
	}
}

func (cb *CircuitBreaker) toClosed() {
	cb.state = StateClosed
	cb.failures = 0
	cb.probesInUse = 0
}
