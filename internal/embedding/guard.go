package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// GuardOptions configures a GuardedEmbedder.
type GuardOptions struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold int
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
	// RequestsPerSecond of 0 disables rate limiting.
	RequestsPerSecond float64
	Logger            *zap.Logger
}

// GuardedEmbedder wraps an Embedder with a circuit breaker and a rate limiter.
// Every backend failure is reported as ErrUnavailable.
type GuardedEmbedder struct {
	inner   Embedder
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewGuardedEmbedder returns inner behind a breaker and limiter.
func NewGuardedEmbedder(inner Embedder, opts GuardOptions) *GuardedEmbedder {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	threshold := uint32(opts.FailureThreshold)
	if threshold == 0 {
		threshold = 3
	}
	limit := rate.Inf
	burst := 1
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
		burst = int(opts.RequestsPerSecond) + 1
	}
	return &GuardedEmbedder{
		inner: inner,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "embeddings",
			MaxRequests: 1,
			Timeout:     opts.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				// a cancelled caller says nothing about backend health
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("embedding breaker state change",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}),
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Embed embeds text unless the breaker is open.
func (g *GuardedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := g.execute(ctx, func() (interface{}, error) {
		return g.inner.Embed(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return res.([]float32), nil
}

// EmbedBatch embeds texts as one guarded call.
func (g *GuardedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	res, err := g.execute(ctx, func() (interface{}, error) {
		return g.inner.EmbedBatch(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return res.([][]float32), nil
}

func (g *GuardedEmbedder) execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding rate limit: %w", err)
	}
	res, err := g.breaker.Execute(fn)
	if err != nil {
		if errors.Is(err, ErrUnavailable) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return res, nil
}

// Open reports whether the breaker currently rejects calls.
func (g *GuardedEmbedder) Open() bool {
	return g.breaker.State() == gobreaker.StateOpen
}

func (g *GuardedEmbedder) Dimensions() int { return g.inner.Dimensions() }

func (g *GuardedEmbedder) Model() string { return ModelName(g.inner) }

func (g *GuardedEmbedder) Close() error { return g.inner.Close() }
