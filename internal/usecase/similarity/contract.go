package similarity

import (
	"context"

	"github.com/kailas-cloud/simdex/internal/domain"
	"github.com/kailas-cloud/simdex/internal/domain/document"
	"github.com/kailas-cloud/simdex/internal/domain/score"
)

// LexicalSearcher is the BM25 index over the stored corpus.
type LexicalSearcher interface {
	Ready() bool
	Search(ctx context.Context, query string, limit int) ([]score.Hit, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// DenseSearcher finds stored documents nearest to a vector. Scores are
// similarities in [0,1].
type DenseSearcher interface {
	QueryNearest(ctx context.Context, vector []float32, topK int) ([]score.Hit, error)
}

// DocumentStore loads documents for queries by ID.
type DocumentStore interface {
	LoadDocument(ctx context.Context, id string) (document.Document, error)
	LoadCorpus(ctx context.Context) ([]document.Document, error)
}
