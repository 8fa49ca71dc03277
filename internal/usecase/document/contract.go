package document

import (
	"context"

	"github.com/kailas-cloud/simdex/internal/domain"
	domdoc "github.com/kailas-cloud/simdex/internal/domain/document"
)

// Repository defines the storage contract for documents.
type Repository interface {
	Upsert(ctx context.Context, doc *domdoc.Document) (created bool, err error)
	LoadDocument(ctx context.Context, id string) (domdoc.Document, error)
	Delete(ctx context.Context, id string) error
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// VectorStore keeps one dense vector per document.
type VectorStore interface {
	Upsert(ctx context.Context, id string, vector []float32) error
	Delete(ctx context.Context, id string) error
}

// Publisher broadcasts corpus changes to every replica.
type Publisher interface {
	Publish(ctx context.Context, change domain.DocumentChange) error
}

// RebuildNotifier schedules a local lexical rebuild.
type RebuildNotifier interface {
	Notify()
}
