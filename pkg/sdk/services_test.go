package simdex

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/simdex/internal/domain"
	domdoc "github.com/kailas-cloud/simdex/internal/domain/document"
	"github.com/kailas-cloud/simdex/internal/domain/risk"
	"github.com/kailas-cloud/simdex/internal/domain/score"
	"github.com/kailas-cloud/simdex/internal/usecase/lexical"
	"github.com/kailas-cloud/simdex/internal/usecase/similarity"
)

func TestDocuments_Upsert(t *testing.T) {
	var stored *domdoc.Document
	c := testClient(&mockDocumentUC{
		upsertFn: func(_ context.Context, doc *domdoc.Document) (bool, error) {
			stored = doc
			return true, nil
		},
	}, nil, nil)

	created, err := c.Documents().Upsert(context.Background(), Document{
		ID: "r1", Name: "Ana", Motivation: "I like ledgers",
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !created {
		t.Error("expected created")
	}
	if stored.ID() != "r1" || stored.Field(domdoc.Motivation) != "I like ledgers" {
		t.Errorf("stored = %+v", stored)
	}
	if _, ok := stored.Fields()[domdoc.CareerHistory]; ok {
		t.Error("empty fields must not be stored")
	}
}

func TestDocuments_Upsert_InvalidID(t *testing.T) {
	c := testClient(&mockDocumentUC{
		upsertFn: func(context.Context, *domdoc.Document) (bool, error) {
			t.Fatal("use case must not be called")
			return false, nil
		},
	}, nil, nil)

	_, err := c.Documents().Upsert(context.Background(), Document{ID: "has space"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}
}

func TestDocuments_GetDelete(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	doc := domdoc.Reconstruct("r1", "Ana", "Backend", map[domdoc.FieldName]string{
		domdoc.CareerHistory: "Ledger services",
	}, created)

	c := testClient(&mockDocumentUC{
		getFn: func(_ context.Context, id string) (domdoc.Document, error) {
			if id != "r1" {
				return domdoc.Document{}, domain.ErrDocumentNotFound
			}
			return doc, nil
		},
		deleteFn: func(_ context.Context, id string) error {
			if id != "r1" {
				return domain.ErrDocumentNotFound
			}
			return nil
		},
	}, nil, nil)
	ctx := context.Background()

	got, err := c.Documents().Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Position != "Backend" || got.CareerHistory != "Ledger services" || !got.CreatedAt.Equal(created) {
		t.Errorf("got = %+v", got)
	}

	if _, err := c.Documents().Get(ctx, "r2"); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("get missing: %v", err)
	}
	if err := c.Documents().Delete(ctx, "r1"); err != nil {
		t.Errorf("delete: %v", err)
	}
	if err := c.Documents().Delete(ctx, "r2"); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("delete missing: %v", err)
	}
}

func sampleResult() similarity.Result {
	return similarity.Result{
		Original: similarity.Original{
			ID:           "r1",
			FieldSummary: map[domdoc.FieldName]string{domdoc.Motivation: "I like..."},
		},
		Results: []similarity.Match{{
			DocumentID:      "r2",
			FinalScore:      0.84,
			ComponentScores: score.Components{Text: 0.9, Keyword: 0.7},
			MethodsUsed:     []score.Method{score.Text, score.Keyword},
		}},
		RiskSummary:   risk.Summary{TotalConsidered: 4, Accepted: 1, MaxScore: 0.84, Band: risk.High},
		DegradedPaths: []score.Method{score.Vector},
		IndexReady:    true,
	}
}

func TestClient_Similar(t *testing.T) {
	c := testClient(nil, &mockSimilarityUC{
		findByIDFn: func(_ context.Context, id string) (similarity.Result, error) {
			if id != "r1" {
				return similarity.Result{}, domain.ErrDocumentNotFound
			}
			return sampleResult(), nil
		},
	}, nil)

	res, err := c.Similar(context.Background(), "r1")
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	if res.TargetID != "r1" || len(res.Matches) != 1 || res.Risk.Band != RiskHigh {
		t.Fatalf("res = %+v", res)
	}
	if len(res.DegradedPaths) != 1 || res.DegradedPaths[0] != "vector" {
		t.Errorf("degraded = %v", res.DegradedPaths)
	}

	if _, err := c.Similar(context.Background(), "r9"); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("missing target: %v", err)
	}
}

func TestClient_SimilarTo(t *testing.T) {
	corpus := []domdoc.Document{
		domdoc.Reconstruct("a", "", "", map[domdoc.FieldName]string{domdoc.Motivation: "x"}, time.Time{}),
	}
	var gotTarget string
	var gotCorpus int
	c := testClient(nil, &mockSimilarityUC{
		findFn: func(_ context.Context, target *domdoc.Document, docs []domdoc.Document) (similarity.Result, error) {
			gotTarget = target.ID()
			gotCorpus = len(docs)
			return sampleResult(), nil
		},
	}, &mockCorpus{docs: corpus})

	if _, err := c.SimilarTo(context.Background(), Document{ID: "draft", Motivation: "x"}); err != nil {
		t.Fatalf("similar to: %v", err)
	}
	if gotTarget != "draft" || gotCorpus != 1 {
		t.Errorf("target=%q corpus=%d", gotTarget, gotCorpus)
	}
}

func TestClient_SimilarTo_CorpusError(t *testing.T) {
	c := testClient(nil, &mockSimilarityUC{}, &mockCorpus{err: errors.New("scan failed")})
	if _, err := c.SimilarTo(context.Background(), Document{ID: "draft", Motivation: "x"}); err == nil {
		t.Fatal("expected corpus error")
	}
}

func TestClient_Rebuild(t *testing.T) {
	built := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	c := &Client{rebuilder: &mockRebuilder{stats: lexical.Stats{Version: "v2", Documents: 3, Terms: 40, BuiltAt: built}}}

	stats, err := c.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if stats.Version != "v2" || stats.Documents != 3 || stats.Terms != 40 || !stats.BuiltAt.Equal(built) {
		t.Errorf("stats = %+v", stats)
	}

	c.rebuilder = &mockRebuilder{err: domain.ErrIndexNotBuilt}
	if _, err := c.Rebuild(context.Background()); !errors.Is(err, ErrIndexNotBuilt) {
		t.Errorf("rebuild error: %v", err)
	}
}
