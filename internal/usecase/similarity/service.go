// Package similarity runs the hybrid résumé similarity pipeline: three
// independent retrieval paths, weighted fusion, the consistency gate and
// risk banding.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/simdex/internal/domain"
	"github.com/kailas-cloud/simdex/internal/domain/document"
	"github.com/kailas-cloud/simdex/internal/domain/engine"
	"github.com/kailas-cloud/simdex/internal/domain/score"
	"github.com/kailas-cloud/simdex/internal/logger"
	"github.com/kailas-cloud/simdex/internal/metrics"
	"github.com/kailas-cloud/simdex/internal/resilience"
	"github.com/kailas-cloud/simdex/internal/usecase/consistency"
	"github.com/kailas-cloud/simdex/internal/usecase/fieldsim"
	"github.com/kailas-cloud/simdex/internal/usecase/fusion"
	riskagg "github.com/kailas-cloud/simdex/internal/usecase/risk"
)

const defaultDenseTimeout = 3 * time.Second

var errNoStore = errors.New("document store not configured")

// Service answers find-similar queries.
type Service struct {
	cfg     engine.Config
	lexical LexicalSearcher
	sim     *fieldsim.Engine
	ranker  *fusion.Ranker
	gate    *consistency.Gate
	risk    *riskagg.Aggregator

	embedder     Embedder
	dense        DenseSearcher
	denseTimeout time.Duration
	exec         *resilience.Executor

	store DocumentStore
}

// New creates a similarity service over a lexical index. cfg gets defaults
// applied; callers validate it beforehand.
func New(cfg engine.Config, lexical LexicalSearcher) *Service {
	cfg.ApplyDefaults()
	sim := fieldsim.New(cfg.FieldWeights)
	ranker := fusion.New(cfg.Fusion, cfg.LexicalNormalization)
	return &Service{
		cfg:          cfg,
		lexical:      lexical,
		sim:          sim,
		ranker:       ranker,
		gate:         consistency.New(sim, ranker, cfg.FieldThresholds, cfg.HighConfidence),
		risk:         riskagg.New(cfg.Risk),
		denseTimeout: defaultDenseTimeout,
	}
}

// WithDense enables the vector path. timeout bounds embed plus nearest
// neighbor lookup; zero keeps the default.
func (s *Service) WithDense(embedder Embedder, dense DenseSearcher, timeout time.Duration) *Service {
	s.embedder = embedder
	s.dense = dense
	if timeout > 0 {
		s.denseTimeout = timeout
	}
	return s
}

// WithExecutor routes dense calls through retry and circuit breaking.
func (s *Service) WithExecutor(exec *resilience.Executor) *Service {
	s.exec = exec
	return s
}

// WithStore enables FindSimilarByID.
func (s *Service) WithStore(store DocumentStore) *Service {
	s.store = store
	return s
}

// FindSimilarByID loads the target and the corpus from the store and runs
// FindSimilar.
func (s *Service) FindSimilarByID(ctx context.Context, id string) (Result, error) {
	if id == "" {
		return Result{}, domain.NewInputError("document_id is required")
	}
	if s.store == nil {
		return Result{}, errNoStore
	}
	target, err := s.store.LoadDocument(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("load target: %w", err)
	}
	corpus, err := s.store.LoadCorpus(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load corpus: %w", err)
	}
	return s.FindSimilar(ctx, &target, corpus)
}

// FindSimilar ranks corpus documents by similarity to target. Only an
// InputError or cancellation fails the call; unavailable retrieval paths
// are reported in DegradedPaths.
func (s *Service) FindSimilar(ctx context.Context, target *document.Document, corpus []document.Document) (Result, error) {
	start := time.Now()
	if target == nil || target.ID() == "" {
		return Result{}, domain.NewInputError("target document is required")
	}
	targetProfile := fieldsim.NewProfile(target)
	if targetProfile.Empty() {
		return Result{}, domain.NewInputError("target document %q has no meaningful text", target.ID())
	}

	log := logger.FromContext(ctx).With(zap.String("target_id", target.ID()))
	res := Result{
		Original:      Original{ID: target.ID(), FieldSummary: s.fieldSummary(target)},
		Results:       []Match{},
		DegradedPaths: []score.Method{},
	}

	if !s.lexical.Ready() {
		log.Error("Similarity query before lexical index build", zap.Error(domain.ErrIndexNotBuilt))
		res.RiskSummary = s.risk.Summarize(0, nil)
		metrics.QueryDuration.WithLabelValues("not_ready").Observe(time.Since(start).Seconds())
		return res, nil
	}
	res.IndexReady = true

	profiles, pool := candidatePool(target.ID(), corpus)

	var (
		vecHits, lexHits, textHits []score.Hit
		vecErr, lexErr             error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vecHits, vecErr = s.vectorPath(gctx, target, profiles)
		return nil
	})
	g.Go(func() error {
		lexHits, lexErr = s.lexicalPath(gctx, target, profiles)
		return nil
	})
	g.Go(func() error {
		var err error
		textHits, err = s.textPath(gctx, targetProfile, pool)
		return err
	})
	if err := g.Wait(); err != nil {
		metrics.QueryDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return Result{}, fmt.Errorf("find similar: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("find similar: %w", err)
	}

	if vecErr != nil {
		res.DegradedPaths = append(res.DegradedPaths, score.Vector)
		metrics.PathFailuresTotal.WithLabelValues(string(score.Vector)).Inc()
		log.Warn("Vector path unavailable", zap.Error(vecErr))
	}
	if lexErr != nil {
		res.DegradedPaths = append(res.DegradedPaths, score.Keyword)
		metrics.PathFailuresTotal.WithLabelValues(string(score.Keyword)).Inc()
		log.Warn("Keyword path unavailable", zap.Error(lexErr))
	}

	fused := s.ranker.Fuse(vecHits, lexHits, textHits)
	accepted, err := s.gate.Apply(ctx, targetProfile, fused, profiles)
	if err != nil {
		return Result{}, fmt.Errorf("find similar: %w", err)
	}

	if s.cfg.MinScore > 0 {
		accepted = slices.DeleteFunc(accepted, func(f score.Fused) bool {
			return f.FinalScore < s.cfg.MinScore
		})
	}

	res.RiskSummary = s.risk.Summarize(len(fused), accepted)
	if len(accepted) > s.cfg.TopK {
		accepted = accepted[:s.cfg.TopK]
	}
	for _, f := range accepted {
		res.Results = append(res.Results, toMatch(f))
	}

	status := "ok"
	if len(res.DegradedPaths) > 0 {
		status = "degraded"
	}
	metrics.QueryDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	metrics.RiskBandTotal.WithLabelValues(string(res.RiskSummary.Band)).Inc()

	log.Info("Similarity query completed",
		zap.Int("corpus", len(corpus)),
		zap.Int("pool", len(pool)),
		zap.Int("considered", res.RiskSummary.TotalConsidered),
		zap.Int("accepted", res.RiskSummary.Accepted),
		zap.Float64("max_score", res.RiskSummary.MaxScore),
		zap.String("band", string(res.RiskSummary.Band)),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// vectorPath embeds the target and queries the dense index. Any failure is
// reported as ErrCollaboratorUnavailable.
func (s *Service) vectorPath(
	ctx context.Context, target *document.Document, profiles map[string]fieldsim.Profile,
) ([]score.Hit, error) {
	if s.embedder == nil || s.dense == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.denseTimeout)
	defer cancel()

	var hits []score.Hit
	query := func(ctx context.Context) error {
		emb, err := s.embedder.Embed(ctx, target.CombinedText())
		if err != nil {
			return fmt.Errorf("embed target: %w", err)
		}
		domain.UsageFromContext(ctx).AddTokens(emb.TotalTokens)
		// +1 leaves room for the target itself
		hits, err = s.dense.QueryNearest(ctx, emb.Embedding, s.cfg.CandidatePool+1)
		if err != nil {
			return fmt.Errorf("query nearest: %w", err)
		}
		return nil
	}

	var err error
	if s.exec != nil {
		err = s.exec.Execute(ctx, "dense", query, resilience.TransientClassifier)
	} else {
		err = query(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCollaboratorUnavailable, err)
	}
	return s.restrict(hits, profiles), nil
}

// lexicalPath runs BM25 with the target's text as the query.
func (s *Service) lexicalPath(
	ctx context.Context, target *document.Document, profiles map[string]fieldsim.Profile,
) ([]score.Hit, error) {
	// the index may hold documents outside this corpus, so rank everything
	// and restrict afterwards
	hits, err := s.lexical.Search(ctx, target.CombinedText(), math.MaxInt32)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	return s.restrict(hits, profiles), nil
}

func (s *Service) textPath(ctx context.Context, target fieldsim.Profile, pool []fieldsim.Profile) ([]score.Hit, error) {
	hits, err := s.sim.ScoreAll(ctx, target, pool, s.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("field similarity: %w", err)
	}
	score.SortHits(hits)
	if len(hits) > s.cfg.CandidatePool {
		hits = hits[:s.cfg.CandidatePool]
	}
	return hits, nil
}

// restrict keeps hits that belong to the candidate pool, capped at the
// configured pool size. Input order is preserved.
func (s *Service) restrict(hits []score.Hit, profiles map[string]fieldsim.Profile) []score.Hit {
	out := make([]score.Hit, 0, min(len(hits), s.cfg.CandidatePool))
	for _, h := range hits {
		if len(out) == s.cfg.CandidatePool {
			break
		}
		if _, ok := profiles[h.DocumentID]; ok {
			out = append(out, h)
		}
	}
	return out
}

func (s *Service) fieldSummary(doc *document.Document) map[document.FieldName]string {
	out := make(map[document.FieldName]string, len(document.Fields))
	for _, f := range document.Fields {
		v := doc.Field(f)
		if v == "" {
			continue
		}
		out[f] = truncate(v, s.cfg.SummaryChars)
	}
	return out
}

// candidatePool profiles every distinct candidate document except the
// target. The first occurrence of a duplicated ID wins.
func candidatePool(targetID string, corpus []document.Document) (map[string]fieldsim.Profile, []fieldsim.Profile) {
	profiles := make(map[string]fieldsim.Profile, len(corpus))
	pool := make([]fieldsim.Profile, 0, len(corpus))
	for i := range corpus {
		doc := &corpus[i]
		if doc.ID() == targetID || !doc.IsCandidate() {
			continue
		}
		if _, dup := profiles[doc.ID()]; dup {
			continue
		}
		p := fieldsim.NewProfile(doc)
		profiles[doc.ID()] = p
		pool = append(pool, p)
	}
	return profiles, pool
}

func toMatch(f score.Fused) Match {
	return Match{
		DocumentID: f.DocumentID,
		FinalScore: score.Round2(f.FinalScore),
		ComponentScores: score.Components{
			Vector:  score.Round2(f.Components.Vector),
			Text:    score.Round2(f.Components.Text),
			Keyword: score.Round2(f.Components.Keyword),
		},
		MethodsUsed: f.Methods,
	}
}

func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
