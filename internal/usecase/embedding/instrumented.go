// Package embedding holds the provider-agnostic embedding decorators.
package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/simdex/internal/domain"
	"github.com/kailas-cloud/simdex/internal/logger"
)

// InstrumentedEmbedder wraps Embedder with client-side rate limiting and logging.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder. A nil limiter disables throttling.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	limiter *rate.Limiter, logger *zap.Logger,
) *InstrumentedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		limiter:  limiter,
		logger:   logger,
	}
}

// Embed waits for a limiter slot, delegates to the inner embedder and logs usage.
// A wait that cannot finish before the context deadline returns ErrRateLimited.
func (p *InstrumentedEmbedder) Embed(
	ctx context.Context, text string,
) (domain.EmbeddingResult, error) {
	log := p.log(ctx)

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			log.Warn("Embedding request throttled",
				zap.String("provider", p.provider),
				zap.Error(err),
			)
			return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
		}
	}

	start := time.Now()
	result, err := p.inner.Embed(ctx, text)
	duration := time.Since(start)

	if err != nil {
		log.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	log.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// HealthCheck forwards to the inner embedder when it supports health checks.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

// log prefers the request-scoped logger so lines carry the request id.
func (p *InstrumentedEmbedder) log(ctx context.Context) *zap.Logger {
	return logger.FromContextOr(ctx, p.logger)
}
