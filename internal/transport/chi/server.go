package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/simdex/internal/domain"
	domdoc "github.com/kailas-cloud/simdex/internal/domain/document"
	"github.com/kailas-cloud/simdex/internal/logger"
	healthuc "github.com/kailas-cloud/simdex/internal/usecase/health"
	"github.com/kailas-cloud/simdex/internal/usecase/lexical"
	"github.com/kailas-cloud/simdex/internal/usecase/similarity"
)

// maxBodyBytes bounds request bodies: three 64KB fields plus envelope.
const maxBodyBytes = 1 << 20

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest       = "bad_request"
	CodeUnauthorized     = "unauthorized"
	CodeDocumentNotFound = "document_not_found"
	CodeNotFound         = "not_found"
	CodeRateLimited      = "rate_limited"
	CodeEmbeddingError   = "embedding_provider_error"
	CodeIndexNotBuilt    = "index_not_built"
	CodeInternalError    = "internal_error"
)

// SimilarityFinder answers find-similar queries.
type SimilarityFinder interface {
	FindSimilar(ctx context.Context, target *domdoc.Document, corpus []domdoc.Document) (similarity.Result, error)
	FindSimilarByID(ctx context.Context, id string) (similarity.Result, error)
}

// CorpusLoader returns every stored document.
type CorpusLoader interface {
	LoadCorpus(ctx context.Context) ([]domdoc.Document, error)
}

// DocumentService manages stored résumés.
type DocumentService interface {
	Upsert(ctx context.Context, doc *domdoc.Document) (bool, error)
	Get(ctx context.Context, id string) (domdoc.Document, error)
	Delete(ctx context.Context, id string) error
	RequestRebuild(ctx context.Context)
}

// Rebuilder rebuilds the lexical index synchronously.
type Rebuilder interface {
	Rebuild(ctx context.Context) (lexical.Stats, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the simdex HTTP API.
type Server struct {
	similar       SimilarityFinder
	corpus        CorpusLoader
	documents     DocumentService
	rebuilder     Rebuilder
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	similar SimilarityFinder,
	corpus CorpusLoader,
	documents DocumentService,
	rebuilder Rebuilder,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		similar:   similar,
		corpus:    corpus,
		documents: documents,
		rebuilder: rebuilder,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		inputErrorHandler,
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, CodeDocumentNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingError),
		sentinelHandler(domain.ErrIndexNotBuilt, http.StatusServiceUnavailable, CodeIndexNotBuilt),
	}
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/similar", s.FindSimilar)
		r.Post("/index/rebuild", s.RebuildIndex)
		r.Put("/documents/{id}", s.PutDocument)
		r.Get("/documents/{id}", s.GetDocument)
		r.Delete("/documents/{id}", s.DeleteDocument)
	})
}

// documentBody is the wire form of a résumé.
type documentBody struct {
	ID               string    `json:"id,omitempty"`
	Name             string    `json:"name,omitempty"`
	Position         string    `json:"position,omitempty"`
	GrowthBackground string    `json:"growth_background,omitempty"`
	Motivation       string    `json:"motivation,omitempty"`
	CareerHistory    string    `json:"career_history,omitempty"`
	CreatedAt        time.Time `json:"created_at,omitzero"`
}

func (b *documentBody) toDomain(id string) (domdoc.Document, error) {
	fields := map[domdoc.FieldName]string{}
	for f, v := range map[domdoc.FieldName]string{
		domdoc.GrowthBackground: b.GrowthBackground,
		domdoc.Motivation:       b.Motivation,
		domdoc.CareerHistory:    b.CareerHistory,
	} {
		if v != "" {
			fields[f] = v
		}
	}
	doc, err := domdoc.New(id, b.Name, b.Position, fields, b.CreatedAt)
	if err != nil {
		return domdoc.Document{}, domain.NewInputError("%s", err.Error())
	}
	return doc, nil
}

func documentToBody(d *domdoc.Document) documentBody {
	return documentBody{
		ID:               d.ID(),
		Name:             d.Name(),
		Position:         d.Position(),
		GrowthBackground: d.Field(domdoc.GrowthBackground),
		Motivation:       d.Field(domdoc.Motivation),
		CareerHistory:    d.Field(domdoc.CareerHistory),
		CreatedAt:        d.CreatedAt(),
	}
}

type similarRequest struct {
	Document   *documentBody `json:"document,omitempty"`
	DocumentID string        `json:"document_id,omitempty"`
}

type similarResponse struct {
	QueryID string `json:"query_id"`
	similarity.Result
}

// FindSimilar handles POST /v1/similar.
func (s *Server) FindSimilar(w http.ResponseWriter, r *http.Request) {
	var req similarRequest
	if !s.decode(w, r, &req) {
		return
	}
	if (req.Document == nil) == (req.DocumentID == "") {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "exactly one of document or document_id is required")
		return
	}

	queryID := uuid.NewString()
	ctx := logger.With(r.Context(), s.logger, zap.String("query_id", queryID))
	ctx, usage := domain.NewContextWithUsage(ctx)

	var (
		res similarity.Result
		err error
	)
	if req.DocumentID != "" {
		res, err = s.similar.FindSimilarByID(ctx, req.DocumentID)
	} else {
		res, err = s.findAdHoc(ctx, req.Document)
	}
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, similarResponse{QueryID: queryID, Result: res})
}

// findAdHoc compares an unsaved document against the stored corpus.
func (s *Server) findAdHoc(ctx context.Context, body *documentBody) (similarity.Result, error) {
	id := body.ID
	if id == "" {
		id = "adhoc-" + uuid.NewString()
	}
	target, err := body.toDomain(id)
	if err != nil {
		return similarity.Result{}, err
	}
	corpus, err := s.corpus.LoadCorpus(ctx)
	if err != nil {
		return similarity.Result{}, err
	}
	return s.similar.FindSimilar(ctx, &target, corpus)
}

// PutDocument handles PUT /v1/documents/{id}.
func (s *Server) PutDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body documentBody
	if !s.decode(w, r, &body) {
		return
	}
	if body.ID != "" && body.ID != id {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "body id does not match path")
		return
	}
	doc, err := body.toDomain(id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	created, err := s.documents.Upsert(ctx, &doc)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, documentToBody(&doc))
}

// GetDocument handles GET /v1/documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, documentToBody(&doc))
}

// DeleteDocument handles DELETE /v1/documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.documents.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type rebuildResponse struct {
	Version   string    `json:"version"`
	Documents int       `json:"documents"`
	BuiltAt   time.Time `json:"built_at"`
}

// RebuildIndex handles POST /v1/index/rebuild. The local index is rebuilt
// synchronously; other replicas are notified through the event bus.
func (s *Server) RebuildIndex(w http.ResponseWriter, r *http.Request) {
	stats, err := s.rebuilder.Rebuild(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.documents.RequestRebuild(r.Context())
	writeJSON(w, http.StatusOK, rebuildResponse{
		Version:   stats.Version,
		Documents: stats.Documents,
		BuiltAt:   stats.BuiltAt,
	})
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return false
	}
	return true
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrDocumentNotFound,
		domain.ErrNotFound,
		domain.ErrRateLimited,
		domain.ErrEmbeddingProviderError,
		domain.ErrIndexNotBuilt,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// inputErrorHandler exposes the rejection reason of an InputError.
func inputErrorHandler(w http.ResponseWriter, err error, _ string) bool {
	if !errors.Is(err, domain.ErrInvalidInput) {
		return false
	}
	msg := domain.ErrInvalidInput.Error()
	var ie *domain.InputError
	if errors.As(err, &ie) {
		msg = ie.Reason
	}
	writeError(w, http.StatusBadRequest, CodeBadRequest, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	log.Warn("Domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("Internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
