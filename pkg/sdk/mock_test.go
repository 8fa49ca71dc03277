package simdex

import (
	"context"

	domdoc "github.com/kailas-cloud/simdex/internal/domain/document"
	healthuc "github.com/kailas-cloud/simdex/internal/usecase/health"
	"github.com/kailas-cloud/simdex/internal/usecase/lexical"
	"github.com/kailas-cloud/simdex/internal/usecase/similarity"
)

// --- documentUseCase mock ---

type mockDocumentUC struct {
	upsertFn func(ctx context.Context, doc *domdoc.Document) (bool, error)
	getFn    func(ctx context.Context, id string) (domdoc.Document, error)
	deleteFn func(ctx context.Context, id string) error
}

func (m *mockDocumentUC) Upsert(ctx context.Context, doc *domdoc.Document) (bool, error) {
	return m.upsertFn(ctx, doc)
}

func (m *mockDocumentUC) Get(ctx context.Context, id string) (domdoc.Document, error) {
	return m.getFn(ctx, id)
}

func (m *mockDocumentUC) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

// --- similarityUseCase mock ---

type mockSimilarityUC struct {
	findFn     func(ctx context.Context, target *domdoc.Document, corpus []domdoc.Document) (similarity.Result, error)
	findByIDFn func(ctx context.Context, id string) (similarity.Result, error)
}

func (m *mockSimilarityUC) FindSimilar(
	ctx context.Context, target *domdoc.Document, corpus []domdoc.Document,
) (similarity.Result, error) {
	return m.findFn(ctx, target, corpus)
}

func (m *mockSimilarityUC) FindSimilarByID(ctx context.Context, id string) (similarity.Result, error) {
	return m.findByIDFn(ctx, id)
}

// --- corpusLoader / rebuildUseCase / healthUseCase mocks ---

type mockCorpus struct {
	docs []domdoc.Document
	err  error
}

func (m *mockCorpus) LoadCorpus(context.Context) ([]domdoc.Document, error) { return m.docs, m.err }

type mockRebuilder struct {
	stats lexical.Stats
	err   error
}

func (m *mockRebuilder) Rebuild(context.Context) (lexical.Stats, error) { return m.stats, m.err }

type mockHealthUC struct{ report healthuc.Report }

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

type mockPinger struct{ err error }

func (m *mockPinger) Ping(context.Context) error { return m.err }

// --- embedder mock ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

// --- helpers ---

func testClient(docSvc documentUseCase, simSvc similarityUseCase, corpus corpusLoader) *Client {
	return &Client{
		docSvc: docSvc,
		simSvc: simSvc,
		corpus: corpus,
	}
}
