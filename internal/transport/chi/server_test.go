package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/simdex/internal/domain"
	domdoc "github.com/kailas-cloud/simdex/internal/domain/document"
	healthuc "github.com/kailas-cloud/simdex/internal/usecase/health"
	"github.com/kailas-cloud/simdex/internal/usecase/lexical"
	"github.com/kailas-cloud/simdex/internal/usecase/similarity"
)

// --- mocks ---

type mockSimilar struct {
	result   similarity.Result
	err      error
	byID     string
	target   *domdoc.Document
	corpus   int
	addUsage int
}

func (m *mockSimilar) FindSimilar(
	ctx context.Context, target *domdoc.Document, corpus []domdoc.Document,
) (similarity.Result, error) {
	m.target = target
	m.corpus = len(corpus)
	m.recordUsage(ctx)
	return m.result, m.err
}

func (m *mockSimilar) FindSimilarByID(ctx context.Context, id string) (similarity.Result, error) {
	m.byID = id
	m.recordUsage(ctx)
	return m.result, m.err
}

func (m *mockSimilar) recordUsage(ctx context.Context) {
	if m.addUsage > 0 {
		domain.UsageFromContext(ctx).AddTokens(m.addUsage)
	}
}

type mockCorpus struct {
	docs []domdoc.Document
	err  error
}

func (m *mockCorpus) LoadCorpus(_ context.Context) ([]domdoc.Document, error) {
	return m.docs, m.err
}

type mockDocuments struct {
	stored    map[string]domdoc.Document
	upsertErr error
	rebuilds  int
}

func (m *mockDocuments) Upsert(_ context.Context, doc *domdoc.Document) (bool, error) {
	if m.upsertErr != nil {
		return false, m.upsertErr
	}
	_, exists := m.stored[doc.ID()]
	m.stored[doc.ID()] = *doc
	return !exists, nil
}

func (m *mockDocuments) Get(_ context.Context, id string) (domdoc.Document, error) {
	d, ok := m.stored[id]
	if !ok {
		return domdoc.Document{}, fmt.Errorf("load %s: %w", id, domain.ErrDocumentNotFound)
	}
	return d, nil
}

func (m *mockDocuments) Delete(_ context.Context, id string) error {
	if _, ok := m.stored[id]; !ok {
		return domain.ErrDocumentNotFound
	}
	delete(m.stored, id)
	return nil
}

func (m *mockDocuments) RequestRebuild(_ context.Context) { m.rebuilds++ }

type mockRebuilder struct {
	stats lexical.Stats
	err   error
}

func (m *mockRebuilder) Rebuild(_ context.Context) (lexical.Stats, error) { return m.stats, m.err }

type mockHealth struct{ report healthuc.Report }

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

type fixture struct {
	similar   *mockSimilar
	corpus    *mockCorpus
	documents *mockDocuments
	rebuilder *mockRebuilder
	health    *mockHealth
	handler   http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		similar:   &mockSimilar{},
		corpus:    &mockCorpus{},
		documents: &mockDocuments{stored: map[string]domdoc.Document{}},
		rebuilder: &mockRebuilder{},
		health:    &mockHealth{report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{}}},
	}
	srv := NewServer(f.similar, f.corpus, f.documents, f.rebuilder, f.health, nil)
	f.handler = NewRouter(srv, nil, nil)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return v
}

func mustDoc(t *testing.T, id, career string) domdoc.Document {
	t.Helper()
	d, err := domdoc.New(id, "", "", map[domdoc.FieldName]string{domdoc.CareerHistory: career}, time.Time{})
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	return d
}

// --- tests ---

func TestFindSimilar_ByID(t *testing.T) {
	f := newFixture(t)
	f.similar.result = similarity.Result{
		Original:   similarity.Original{ID: "r1"},
		Results:    []similarity.Match{{DocumentID: "r2", FinalScore: 0.91}},
		IndexReady: true,
	}
	f.similar.addUsage = 12

	rr := f.do(t, http.MethodPost, "/v1/similar", `{"document_id":"r1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	if f.similar.byID != "r1" {
		t.Errorf("byID: got %q", f.similar.byID)
	}
	if got := rr.Header().Get("X-Embedding-Tokens"); got != "12" {
		t.Errorf("X-Embedding-Tokens: got %q, want 12", got)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}

	resp := decodeBody[map[string]any](t, rr)
	if id, _ := resp["query_id"].(string); id == "" {
		t.Error("expected query_id")
	}
	if resp["index_ready"] != true {
		t.Errorf("index_ready: got %v", resp["index_ready"])
	}
	results, _ := resp["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("results: got %d, want 1", len(results))
	}
}

func TestFindSimilar_AdHocDocument(t *testing.T) {
	f := newFixture(t)
	f.corpus.docs = []domdoc.Document{mustDoc(t, "a", "x"), mustDoc(t, "b", "y")}

	body := `{"document":{"career_history":"Backend engineer at a payments company"}}`
	rr := f.do(t, http.MethodPost, "/v1/similar", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	if f.similar.target == nil || !strings.HasPrefix(f.similar.target.ID(), "adhoc-") {
		t.Fatalf("target: got %+v", f.similar.target)
	}
	if f.similar.corpus != 2 {
		t.Errorf("corpus size: got %d, want 2", f.similar.corpus)
	}
	if rr.Header().Get("X-Embedding-Tokens") != "" {
		t.Error("no embedding used: header should be absent")
	}
}

func TestFindSimilar_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"both forms", `{"document_id":"a","document":{"motivation":"x"}}`},
		{"malformed json", `{"document_id":`},
		{"unknown field", `{"doc":"a"}`},
		{"invalid id", `{"document":{"id":"bad id","motivation":"x"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rr := f.do(t, http.MethodPost, "/v1/similar", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d, want 400", rr.Code)
			}
			if resp := decodeBody[ErrorResponse](t, rr); resp.Code != CodeBadRequest {
				t.Errorf("code: got %q", resp.Code)
			}
		})
	}
}

func TestFindSimilar_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"input error shows reason", domain.NewInputError("target has no meaningful text"),
			http.StatusBadRequest, CodeBadRequest},
		{"missing target", fmt.Errorf("load target: %w", domain.ErrDocumentNotFound),
			http.StatusNotFound, CodeDocumentNotFound},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited},
		{"provider", domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingError},
		{"index not built", domain.ErrIndexNotBuilt, http.StatusServiceUnavailable, CodeIndexNotBuilt},
		{"unknown", errors.New("connection reset by peer"), http.StatusInternalServerError, CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.similar.err = tt.err
			rr := f.do(t, http.MethodPost, "/v1/similar", `{"document_id":"r1"}`)
			if rr.Code != tt.wantCode {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.wantCode)
			}
			resp := decodeBody[ErrorResponse](t, rr)
			if resp.Code != tt.wantBody {
				t.Errorf("code: got %q, want %q", resp.Code, tt.wantBody)
			}
			if strings.Contains(resp.Message, "connection reset") {
				t.Errorf("internal detail leaked: %q", resp.Message)
			}
		})
	}
}

func TestFindSimilar_InputReasonExposed(t *testing.T) {
	f := newFixture(t)
	f.similar.err = domain.NewInputError("target has no meaningful text")
	rr := f.do(t, http.MethodPost, "/v1/similar", `{"document_id":"r1"}`)
	if resp := decodeBody[ErrorResponse](t, rr); resp.Message != "target has no meaningful text" {
		t.Errorf("message: got %q", resp.Message)
	}
}

func TestDocuments_Lifecycle(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPut, "/v1/documents/r1", `{"name":"Kim","motivation":"I like building things"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("first put: got %d, body %s", rr.Code, rr.Body.String())
	}
	rr = f.do(t, http.MethodPut, "/v1/documents/r1", `{"name":"Kim","motivation":"I like shipping things"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("second put: got %d", rr.Code)
	}

	rr = f.do(t, http.MethodGet, "/v1/documents/r1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get: got %d", rr.Code)
	}
	got := decodeBody[documentBody](t, rr)
	if got.ID != "r1" || got.Motivation != "I like shipping things" || got.Name != "Kim" {
		t.Errorf("get body: %+v", got)
	}

	rr = f.do(t, http.MethodDelete, "/v1/documents/r1", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: got %d", rr.Code)
	}
	rr = f.do(t, http.MethodGet, "/v1/documents/r1", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete: got %d", rr.Code)
	}
	rr = f.do(t, http.MethodDelete, "/v1/documents/r1", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete: got %d", rr.Code)
	}
}

func TestPutDocument_Validation(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
	}{
		{"id mismatch", "/v1/documents/r1", `{"id":"r2","motivation":"x"}`},
		{"oversized field", "/v1/documents/r1", `{"motivation":"` + strings.Repeat("a", domdoc.MaxFieldSize+1) + `"}`},
		{"bad path id", "/v1/documents/bad%20id", `{"motivation":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rr := f.do(t, http.MethodPut, tt.path, tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d, want 400 (%s)", rr.Code, rr.Body.String())
			}
			if len(f.documents.stored) != 0 {
				t.Error("nothing should be stored")
			}
		})
	}
}

func TestRebuildIndex(t *testing.T) {
	f := newFixture(t)
	builtAt := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	f.rebuilder.stats = lexical.Stats{Version: "v-1", Documents: 42, BuiltAt: builtAt}

	rr := f.do(t, http.MethodPost, "/v1/index/rebuild", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	resp := decodeBody[rebuildResponse](t, rr)
	if resp.Version != "v-1" || resp.Documents != 42 || !resp.BuiltAt.Equal(builtAt) {
		t.Errorf("response: %+v", resp)
	}
	if f.documents.rebuilds != 1 {
		t.Errorf("replicas notified %d times, want 1", f.documents.rebuilds)
	}
}

func TestRebuildIndex_Failure(t *testing.T) {
	f := newFixture(t)
	f.rebuilder.err = errors.New("load corpus: timeout")

	rr := f.do(t, http.MethodPost, "/v1/index/rebuild", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d", rr.Code)
	}
	if f.documents.rebuilds != 0 {
		t.Error("failed rebuild must not notify replicas")
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name   string
		status healthuc.Status
		want   int
	}{
		{"healthy", healthuc.Healthy, http.StatusOK},
		{"degraded", healthuc.Degraded, http.StatusServiceUnavailable},
		{"unhealthy", healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.health.report = healthuc.Report{
				Status: tt.status,
				Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
			}
			rr := f.do(t, http.MethodGet, "/health", "")
			if rr.Code != tt.want {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.want)
			}
			resp := decodeBody[healthResponse](t, rr)
			if resp.Status != string(tt.status) || resp.Checks["database"] != "ok" {
				t.Errorf("body: %+v", resp)
			}
		})
	}
}

func TestRouter_NotFoundIsJSON(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/v1/unknown", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d", rr.Code)
	}
	if resp := decodeBody[ErrorResponse](t, rr); resp.Code != CodeNotFound {
		t.Errorf("code: got %q", resp.Code)
	}
}

func TestJSONRecoverer(t *testing.T) {
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	handler := jsonRecoverer(nopLogger())(panicking)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d", rr.Code)
	}
	if resp := decodeBody[ErrorResponse](t, rr); resp.Code != CodeInternalError {
		t.Errorf("code: got %q", resp.Code)
	}
}

func nopLogger() *zap.Logger { return zap.NewNop() }
