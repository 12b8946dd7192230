package embeddings

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ResilientConfig configures retries and rate limiting around a provider.
type ResilientConfig struct {
	// Model labels metrics.
	Model string
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// RateLimit is requests per second; zero disables limiting.
	RateLimit       float64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Resilient wraps a Provider with exponential-backoff retries, an
// optional token-bucket rate limit and metrics.
type Resilient struct {
	inner   Provider
	cfg     ResilientConfig
	limiter *rate.Limiter
	metrics *Metrics
	logger  *zap.Logger
}

// NewResilient wraps inner. metrics and logger may be nil.
func NewResilient(inner Provider, cfg ResilientConfig, metrics *Metrics, logger *zap.Logger) *Resilient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 200 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 2 * time.Second
	}
	r := &Resilient{inner: inner, cfg: cfg, metrics: metrics, logger: logger}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return r
}

// EmbedDocuments implements Embedder.
func (r *Resilient) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := r.do(ctx, "documents", len(texts), func() error {
		vecs, err := r.inner.EmbedDocuments(ctx, texts)
		out = vecs
		return err
	})
	return out, err
}

// EmbedQuery implements Embedder.
func (r *Resilient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := r.do(ctx, "query", 1, func() error {
		vec, err := r.inner.EmbedQuery(ctx, text)
		out = vec
		return err
	})
	return out, err
}

// Dimension implements Provider.
func (r *Resilient) Dimension() int { return r.inner.Dimension() }

// Close implements Provider.
func (r *Resilient) Close() error { return r.inner.Close() }

func (r *Resilient) do(ctx context.Context, op string, batch int, call func() error) error {
	start := time.Now()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialInterval
	b.MaxInterval = r.cfg.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()

	attempt := 0
	operation := func() error {
		if attempt > 0 {
			r.metrics.RecordRetry(ctx, r.cfg.Model)
		}
		attempt++
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		err := call()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return backoff.Permanent(err)
		}
		r.logger.Debug("embedding attempt failed",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.cfg.MaxRetries)), ctx)
	err := backoff.Retry(operation, policy)
	r.metrics.RecordGeneration(ctx, r.cfg.Model, op, time.Since(start), batch, err)
	return err
}

// isRetryable reports whether err is worth another attempt. Input and
// configuration errors, cancellation and client-side HTTP statuses are
// final.
func isRetryable(err error) bool {
	switch {
	case errors.Is(err, ErrEmptyInput),
		errors.Is(err, ErrInvalidConfig),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}
