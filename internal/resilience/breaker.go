package resilience

import (
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig controls a per-source circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold uint32
	// ResetTimeout is how long the circuit stays open before a probe.
	ResetTimeout time.Duration
	// HalfOpenRequests is the number of probes allowed while half-open.
	HalfOpenRequests uint32
}

// DefaultBreakerConfig returns the breaker settings used for listing sources.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		HalfOpenRequests: 1,
	}
}

// Breaker guards calls to one source.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker creates a breaker named after the source it protects.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = def.HalfOpenRequests
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zap.L().Warn("source circuit breaker state changed",
				zap.String("source", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})}
}

// Execute runs fn through the breaker. An open circuit fails fast with
// gobreaker.ErrOpenState or gobreaker.ErrTooManyRequests.
func Execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}

// State returns the breaker state as text: "closed", "half-open" or "open".
func (b *Breaker) State() string {
	return b.cb.State().String()
}
