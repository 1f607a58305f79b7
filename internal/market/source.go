package market

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// BarSource supplies historical bars for a symbol. Implementations are
// provided by the data-retrieval layer; the core only consumes this
// interface so it stays testable without network access.
type BarSource interface {
	Bars(ctx context.Context, symbol string, tf Timeframe) ([]Bar, error)
}

// BarSourceFunc adapts a function to the BarSource interface
type BarSourceFunc func(ctx context.Context, symbol string, tf Timeframe) ([]Bar, error)

// Bars implements BarSource
func (f BarSourceFunc) Bars(ctx context.Context, symbol string, tf Timeframe) ([]Bar, error) {
	return f(ctx, symbol, tf)
}

// SchedulerConfig configures the fetch scheduler wrapping a BarSource
type SchedulerConfig struct {
	RequestsPerSecond   float64       // upstream rate limit
	Burst               int           // rate limiter burst size
	MaxRetries          uint64        // backoff retry attempts per fetch
	InitialInterval     time.Duration // first backoff interval
	BreakerMinRequests  uint32        // requests before the breaker may trip
	BreakerFailureRatio float64       // failure ratio that trips the breaker
	BreakerOpenTimeout  time.Duration // how long the breaker stays open
}

// DefaultSchedulerConfig returns conservative defaults for a free-tier
// upstream API
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		RequestsPerSecond:   2,
		Burst:               1,
		MaxRetries:          3,
		InitialInterval:     500 * time.Millisecond,
		BreakerMinRequests:  5,
		BreakerFailureRatio: 0.6,
		BreakerOpenTimeout:  30 * time.Second,
	}
}

// ScheduledSource wraps a BarSource with a token-bucket rate limiter,
// exponential backoff retries and a circuit breaker. It is injected into the
// scan orchestrator rather than living as a process-wide singleton.
type ScheduledSource struct {
	inner   BarSource
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	cfg     SchedulerConfig
}

// NewScheduledSource creates a fetch scheduler around inner
func NewScheduledSource(inner BarSource, cfg SchedulerConfig) *ScheduledSource {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "bar_source",
		Timeout: cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.BreakerMinRequests && failureRatio >= cfg.BreakerFailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Bar source circuit breaker state changed")
		},
	})

	return &ScheduledSource{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker: breaker,
		cfg:     cfg,
	}
}

// Bars fetches bars through the limiter, breaker and retry policy
func (s *ScheduledSource) Bars(ctx context.Context, symbol string, tf Timeframe) ([]Bar, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	fetch := func() ([]Bar, error) {
		result, err := s.breaker.Execute(func() (interface{}, error) {
			return s.inner.Bars(ctx, symbol, tf)
		})
		if err != nil {
			return nil, err
		}
		return result.([]Bar), nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(s.cfg.InitialInterval),
		), s.cfg.MaxRetries),
		ctx,
	)

	var bars []Bar
	operation := func() error {
		var err error
		bars, err = fetch()
		if err != nil {
			// Open breaker means the upstream is shedding load; retrying
			// immediately would only extend the outage
			if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
				return backoff.Permanent(err)
			}
			log.Debug().
				Err(err).
				Str("symbol", symbol).
				Msg("Bar fetch failed, retrying")
			return err
		}
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("fetch bars for %s: %w", symbol, err)
	}

	return bars, nil
}
