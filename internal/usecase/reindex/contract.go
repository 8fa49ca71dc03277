package reindex

import (
	"context"

	"github.com/kailas-cloud/simdex/internal/domain/document"
	"github.com/kailas-cloud/simdex/internal/usecase/lexical"
)

// CorpusLoader reads the full stored corpus.
type CorpusLoader interface {
	LoadCorpus(ctx context.Context) ([]document.Document, error)
}

// IndexBuilder publishes a new lexical snapshot.
type IndexBuilder interface {
	Build(ctx context.Context, corpus []document.Document) (lexical.Stats, error)
}
