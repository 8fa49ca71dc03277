package simdex

import (
	"context"
	"fmt"
	"time"

	domdoc "github.com/kailas-cloud/simdex/internal/domain/document"
)

// DocumentService manages stored résumés.
type DocumentService struct {
	docSvc documentUseCase
	obs    *observer
}

// Upsert creates or updates a document. Returns true if created.
// The lexical index catches up in the background.
func (s *DocumentService) Upsert(ctx context.Context, doc Document) (created bool, err error) {
	start := time.Now()
	defer func() { s.obs.observe("documents.upsert", start, err) }()

	d, err := toInternalDocument(&doc)
	if err != nil {
		return false, fmt.Errorf("upsert: %w", err)
	}
	created, err = s.docSvc.Upsert(ctx, &d)
	if err != nil {
		return false, fmt.Errorf("upsert: %w", err)
	}
	return created, nil
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, id string) (_ Document, err error) {
	start := time.Now()
	defer func() { s.obs.observe("documents.get", start, err) }()

	d, err := s.docSvc.Get(ctx, id)
	if err != nil {
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	return fromInternalDocument(&d), nil
}

// Delete removes a document and its vector.
func (s *DocumentService) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("documents.delete", start, err) }()

	if err = s.docSvc.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

type documentUseCase interface {
	Upsert(ctx context.Context, doc *domdoc.Document) (bool, error)
	Get(ctx context.Context, id string) (domdoc.Document, error)
	Delete(ctx context.Context, id string) error
}
