// Package retry decorates an embedding service with fixed-delay retries and
// an outbound rate limit.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/core/ports/driven"
	"github.com/custodia-labs/coachkb/internal/logger"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default retry policy.
const (
	DefaultMaxRetries = 3
	DefaultDelay      = 2 * time.Second
)

// Config holds the retry and rate limit policy.
type Config struct {
	// MaxRetries bounds retries after the first attempt.
	MaxRetries int

	// Delay is the fixed wait between attempts.
	Delay time.Duration

	// RequestsPerSecond limits calls to the wrapped service (0 = unlimited).
	RequestsPerSecond float64
}

// EmbeddingService retries transient failures of the wrapped service.
// Only errors wrapping domain.ErrProviderUnavailable are retried.
type EmbeddingService struct {
	next    driven.EmbeddingService
	retries int
	delay   time.Duration
	limiter *rate.Limiter
}

// New wraps next with the given policy.
func New(next driven.EmbeddingService, cfg Config) *EmbeddingService {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	s := &EmbeddingService{next: next, retries: cfg.MaxRetries, delay: cfg.Delay}
	if cfg.RequestsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return s
}

// FromSettings builds the policy from embedding settings.
func FromSettings(next driven.EmbeddingService, cfg domain.EmbeddingSettings) *EmbeddingService {
	return New(next, Config{
		MaxRetries:        cfg.MaxRetries,
		Delay:             time.Duration(cfg.RetryDelayMillis) * time.Millisecond,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
}

func (s *EmbeddingService) do(ctx context.Context, op string, fn func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.delay), uint64(s.retries)),
		ctx,
	)
	attempt := 0
	operation := func() error {
		attempt++
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		err := fn()
		if err != nil && !errors.Is(err, domain.ErrProviderUnavailable) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.WithFields(logger.Fields{
			"op":      op,
			"attempt": attempt,
			"wait":    wait.String(),
			"error":   err,
		}).Warn("embedding call failed, retrying")
	}
	return backoff.RetryNotify(operation, policy, notify)
}

// Embed embeds one text, retrying transient failures.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := s.do(ctx, "embed", func() error {
		var err error
		out, err = s.next.Embed(ctx, text)
		return err
	})
	return out, err
}

// EmbedBatch embeds texts, retrying the whole batch on transient failures.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := s.do(ctx, "embed_batch", func() error {
		var err error
		out, err = s.next.EmbedBatch(ctx, texts)
		return err
	})
	return out, err
}

// Dimensions returns the wrapped service's vector size.
func (s *EmbeddingService) Dimensions() int { return s.next.Dimensions() }

// ModelName returns the wrapped service's model.
func (s *EmbeddingService) ModelName() string { return s.next.ModelName() }

// Ping is passed through without retries.
func (s *EmbeddingService) Ping(ctx context.Context) error { return s.next.Ping(ctx) }

// ModelAvailable retries transient failures of the availability check.
func (s *EmbeddingService) ModelAvailable(ctx context.Context) error {
	return s.do(ctx, "model_available", func() error { return s.next.ModelAvailable(ctx) })
}

// Close closes the wrapped service.
func (s *EmbeddingService) Close() error { return s.next.Close() }
