package provider

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/sakif/soundscape/internal/metrics"
)

// BreakerSettings tunes the circuit breaker. Zero values take the defaults
// used in production.
type BreakerSettings struct {
	MinRequests  uint32        // requests in a window before the ratio counts
	FailureRatio float64       // trip at or above this failure ratio
	Interval     time.Duration // closed-state counting window
	Timeout      time.Duration // open-state cool-down before half-open
}

func (s BreakerSettings) withDefaults() BreakerSettings {
	if s.MinRequests == 0 {
		s.MinRequests = 5
	}
	if s.FailureRatio == 0 {
		s.FailureRatio = 0.6
	}
	if s.Interval == 0 {
		s.Interval = time.Minute
	}
	if s.Timeout == 0 {
		s.Timeout = 30 * time.Second
	}
	return s
}

// Breaker wraps a Provider with a circuit breaker so a failing upstream is
// not hammered on every search.
type Breaker struct {
	next   Provider
	cb     *gobreaker.CircuitBreaker[*Page]
	logger *slog.Logger
}

// NewBreaker wraps next.
func NewBreaker(next Provider, settings BreakerSettings, logger *slog.Logger) *Breaker {
	s := settings.withDefaults()
	name := next.Name() + "-api"

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[*Page](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= s.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			// caller cancellation and missing credentials say nothing about
			// upstream health
			return err == nil ||
				errors.Is(err, ErrNotConfigured) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &Breaker{next: next, cb: cb, logger: logger}
}

func (b *Breaker) Name() string { return b.next.Name() }

// State is the current breaker state, reported by /health.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }

func (b *Breaker) SearchEvents(ctx context.Context, params SearchParams) (*Page, error) {
	start := time.Now()
	page, err := b.cb.Execute(func() (*Page, error) {
		return b.next.SearchEvents(ctx, params)
	})

	switch {
	case err == nil:
		metrics.RecordProviderRequest(b.Name(), "success", time.Since(start))
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordProviderRequest(b.Name(), "rejected", time.Since(start))
	default:
		metrics.RecordProviderRequest(b.Name(), "failure", time.Since(start))
	}
	return page, err
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
