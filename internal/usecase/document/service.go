// Package document ingests résumé records: persistence, vectorization and
// change propagation to the lexical index.
package document

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/simdex/internal/domain"
	domdoc "github.com/kailas-cloud/simdex/internal/domain/document"
	"github.com/kailas-cloud/simdex/internal/logger"
)

// Service handles document writes with best-effort vectorization.
type Service struct {
	repo     Repository
	embedder Embedder
	vectors  VectorStore
	events   Publisher
	rebuild  RebuildNotifier
	logger   *zap.Logger
}

// New creates a document service.
func New(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger}
}

// WithVectors enables the dense path: documents are embedded on write.
func (s *Service) WithVectors(embedder Embedder, vectors VectorStore) *Service {
	s.embedder = embedder
	s.vectors = vectors
	return s
}

// WithEvents publishes every change. The publishing replica receives its own
// event and rebuilds through its subscriber.
func (s *Service) WithEvents(p Publisher) *Service {
	s.events = p
	return s
}

// WithRebuild schedules local rebuilds when no publisher is set or publishing fails.
func (s *Service) WithRebuild(n RebuildNotifier) *Service {
	s.rebuild = n
	return s
}

// Upsert stores a document, then embeds it. Embedding failures are logged;
// the document stays stored without a vector and takes part in lexical and
// text similarity only.
func (s *Service) Upsert(ctx context.Context, doc *domdoc.Document) (bool, error) {
	if doc == nil || doc.ID() == "" {
		return false, domain.NewInputError("document id is required")
	}
	log := logger.FromContextOr(ctx, s.logger).With(zap.String("document_id", doc.ID()))

	created, err := s.repo.Upsert(ctx, doc)
	if err != nil {
		return false, fmt.Errorf("upsert document: %w", err)
	}

	if !doc.IsCandidate() {
		log.Info("Stored document has no meaningful text; excluded from similarity")
	}
	s.syncVector(ctx, log, doc)
	s.announce(ctx, log, domain.DocumentChange{DocumentID: doc.ID(), Op: domain.ChangeUpsert})

	return created, nil
}

// Get returns a document by ID.
func (s *Service) Get(ctx context.Context, id string) (domdoc.Document, error) {
	doc, err := s.repo.LoadDocument(ctx, id)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// Delete removes a document and its vector.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return domain.NewInputError("document id is required")
	}
	log := logger.FromContextOr(ctx, s.logger).With(zap.String("document_id", id))

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if s.vectors != nil {
		if err := s.vectors.Delete(ctx, id); err != nil {
			log.Warn("Failed to delete document vector", zap.Error(err))
		}
	}
	s.announce(ctx, log, domain.DocumentChange{DocumentID: id, Op: domain.ChangeDelete})
	return nil
}

// RequestRebuild asks every replica to rebuild its lexical index.
func (s *Service) RequestRebuild(ctx context.Context) {
	s.announce(ctx, logger.FromContextOr(ctx, s.logger), domain.DocumentChange{Op: domain.ChangeRebuild})
}

func (s *Service) syncVector(ctx context.Context, log *zap.Logger, doc *domdoc.Document) {
	if s.embedder == nil || s.vectors == nil {
		return
	}

	// A document that lost all meaningful text must not keep an old vector.
	if !doc.IsCandidate() {
		if err := s.vectors.Delete(ctx, doc.ID()); err != nil {
			log.Warn("Failed to drop stale vector", zap.Error(err))
		}
		return
	}

	res, err := s.embedder.Embed(ctx, doc.CombinedText())
	if err != nil {
		log.Warn("Document stored without vector",
			zap.Error(fmt.Errorf("%w: %w", domain.ErrCollaboratorUnavailable, err)))
		// The previous vector describes text the document no longer has.
		if derr := s.vectors.Delete(ctx, doc.ID()); derr != nil {
			log.Warn("Failed to drop stale vector", zap.Error(derr))
		}
		return
	}
	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)

	if err := s.vectors.Upsert(ctx, doc.ID(), res.Embedding); err != nil {
		log.Warn("Failed to store document vector", zap.Error(err))
	}
}

func (s *Service) announce(ctx context.Context, log *zap.Logger, change domain.DocumentChange) {
	if s.events != nil {
		err := s.events.Publish(ctx, change)
		if err == nil {
			return
		}
		log.Warn("Failed to publish change; rebuilding locally",
			zap.String("op", string(change.Op)), zap.Error(err))
	}
	if s.rebuild != nil {
		s.rebuild.Notify()
	}
}
