// Package reindex keeps the in-memory lexical index in step with the
// document store.
package reindex

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/simdex/internal/domain"
	"github.com/kailas-cloud/simdex/internal/metrics"
	"github.com/kailas-cloud/simdex/internal/usecase/lexical"
)

// Worker rebuilds the lexical index on demand. Requests arriving while a
// rebuild is pending collapse into one, and rebuilds start at most once per
// minInterval.
type Worker struct {
	loader  CorpusLoader
	index   IndexBuilder
	limiter *rate.Limiter
	pending chan struct{}
	logger  *zap.Logger
}

// New creates a worker. A non-positive minInterval disables throttling.
func New(loader CorpusLoader, index IndexBuilder, minInterval time.Duration, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Worker{
		loader:  loader,
		index:   index,
		limiter: rate.NewLimiter(limit, 1),
		pending: make(chan struct{}, 1),
		logger:  logger,
	}
}

// Rebuild loads the corpus and publishes a new snapshot synchronously.
func (w *Worker) Rebuild(ctx context.Context) (lexical.Stats, error) {
	start := time.Now()

	corpus, err := w.loader.LoadCorpus(ctx)
	if err != nil {
		return lexical.Stats{}, fmt.Errorf("load corpus: %w", err)
	}

	stats, err := w.index.Build(ctx, corpus)
	if err != nil {
		return lexical.Stats{}, fmt.Errorf("build lexical index: %w", err)
	}

	elapsed := time.Since(start)
	metrics.LexicalRebuildDuration.Observe(elapsed.Seconds())
	metrics.LexicalIndexedDocuments.Set(float64(stats.Documents))

	w.logger.Info("Lexical index rebuilt",
		zap.String("version", stats.Version),
		zap.Int("documents", stats.Documents),
		zap.Int("terms", stats.Terms),
		zap.Int("loaded", len(corpus)),
		zap.Duration("duration", elapsed),
	)
	return stats, nil
}

// Notify requests an asynchronous rebuild. Never blocks.
func (w *Worker) Notify() {
	select {
	case w.pending <- struct{}{}:
	default:
	}
}

// HandleChange is a change-event handler that schedules a rebuild.
func (w *Worker) HandleChange(_ context.Context, change domain.DocumentChange) error {
	w.logger.Debug("Corpus change received",
		zap.String("op", string(change.Op)),
		zap.String("document_id", change.DocumentID),
	)
	w.Notify()
	return nil
}

// Run serves rebuild requests until ctx is done. Failed rebuilds are logged
// and the previous snapshot stays in service.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.pending:
		}

		if err := w.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("rebuild limiter: %w", err)
		}

		if _, err := w.Rebuild(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("Lexical index rebuild failed", zap.Error(err))
		}
	}
}
