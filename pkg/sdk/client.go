package simdex

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	dbRedis "github.com/kailas-cloud/simdex/internal/db/redis"
	domdoc "github.com/kailas-cloud/simdex/internal/domain/document"
	"github.com/kailas-cloud/simdex/internal/domain/engine"
	"github.com/kailas-cloud/simdex/internal/repository/dense"
	documentrepo "github.com/kailas-cloud/simdex/internal/repository/document"
	pgrepo "github.com/kailas-cloud/simdex/internal/repository/postgres"
	"github.com/kailas-cloud/simdex/internal/usecase/chunking"
	documentuc "github.com/kailas-cloud/simdex/internal/usecase/document"
	healthuc "github.com/kailas-cloud/simdex/internal/usecase/health"
	"github.com/kailas-cloud/simdex/internal/usecase/lexical"
	"github.com/kailas-cloud/simdex/internal/usecase/reindex"
	"github.com/kailas-cloud/simdex/internal/usecase/similarity"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces, swapped for mocks in tests.
type similarityUseCase interface {
	FindSimilar(ctx context.Context, target *domdoc.Document, corpus []domdoc.Document) (similarity.Result, error)
	FindSimilarByID(ctx context.Context, id string) (similarity.Result, error)
}

type corpusLoader interface {
	LoadCorpus(ctx context.Context) ([]domdoc.Document, error)
}

type rebuildUseCase interface {
	Rebuild(ctx context.Context) (lexical.Stats, error)
}

type docStore interface {
	corpusLoader
	Upsert(ctx context.Context, doc *domdoc.Document) (bool, error)
	LoadDocument(ctx context.Context, id string) (domdoc.Document, error)
	Delete(ctx context.Context, id string) error
}

// Client is the simdex SDK entry point.
type Client struct {
	pinger    healthuc.DBPinger
	docSvc    documentUseCase
	simSvc    similarityUseCase
	corpus    corpusLoader
	rebuilder rebuildUseCase
	healthSvc healthUseCase
	obs       *observer

	closers []func()
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a Client, connects to the databases and builds the lexical
// index from the stored corpus. The provided context bounds startup only.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{engine: engine.DefaultConfig()}
	for _, o := range opts {
		o.apply(cfg)
	}
	if len(cfg.addrs) == 0 {
		return nil, errors.New("simdex: database address required (use WithRedis)")
	}
	if cfg.embedder != nil && cfg.vectorDimensions <= 0 {
		return nil, errors.New("simdex: WithVectorDimensions is required with WithEmbedder")
	}
	cfg.engine.ApplyDefaults()
	if err := cfg.engine.Validate(); err != nil {
		return nil, fmt.Errorf("simdex: engine config: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	c := &Client{obs: obs}
	if err := c.wire(ctx, cfg); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) wire(ctx context.Context, cfg *clientConfig) error {
	store, err := dbRedis.NewStore(dbRedis.Config{Addrs: cfg.addrs, Password: cfg.password})
	if err != nil {
		return fmt.Errorf("simdex: create redis store: %w", err)
	}
	c.closers = append(c.closers, store.Close)
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		return fmt.Errorf("simdex: database not ready: %w", err)
	}
	c.pinger = store

	var docs docStore = documentrepo.New(store)
	if cfg.postgresDSN != "" {
		sqlDB, err := pgrepo.OpenDB(ctx, cfg.postgresDSN)
		if err != nil {
			return fmt.Errorf("simdex: open postgres: %w", err)
		}
		c.closers = append(c.closers, func() { _ = sqlDB.Close() })
		pg := pgrepo.New(sqlDB)
		if err := pg.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("simdex: postgres schema: %w", err)
		}
		docs = pg
	}

	// Internal services log through zap; SDK callers observe via slog.
	nop := zap.NewNop()
	ec := cfg.engine
	index := lexical.New(ec.BM25, chunking.New(ec.ChunkSize, ec.ChunkOverlap, ec.MinChunkChars))
	worker := reindex.New(docs, index, cfg.rebuildInterval, nop)
	if _, err := worker.Rebuild(ctx); err != nil {
		return fmt.Errorf("simdex: initial index build: %w", err)
	}

	sim := similarity.New(ec, index).WithStore(docs)
	docSvc := documentuc.New(docs, nop).WithRebuild(worker)
	health := healthuc.New(store, index)

	if cfg.embedder != nil {
		emb := &embedderAdapter{inner: cfg.embedder}
		vectors := dense.New(store, dense.Options{
			Dimensions:  cfg.vectorDimensions,
			M:           cfg.hnswM,
			EFConstruct: cfg.hnswEFConstruct,
		})
		if err := vectors.EnsureIndex(ctx); err != nil {
			return fmt.Errorf("simdex: vector index: %w", err)
		}
		sim.WithDense(emb, vectors, cfg.denseTimeout)
		docSvc.WithVectors(emb, vectors)
		health.WithEmbedding(emb)
	}

	runCtx, stop := context.WithCancel(context.Background())
	c.stop = stop
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_ = worker.Run(runCtx)
	}()

	c.docSvc = docSvc
	c.simSvc = sim
	c.corpus = docs
	c.rebuilder = worker
	c.healthSvc = health
	return nil
}

// Close stops the background rebuild worker and releases all connections.
func (c *Client) Close() {
	if c.stop != nil {
		c.stop()
	}
	c.wg.Wait()
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.pinger.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Documents returns the document service.
func (c *Client) Documents() *DocumentService {
	return &DocumentService{docSvc: c.docSvc, obs: c.obs}
}

// Similar compares a stored document with the rest of the corpus.
func (c *Client) Similar(ctx context.Context, id string) (_ Result, err error) {
	start := time.Now()
	defer func() { c.obs.observe("similar", start, err) }()

	r, err := c.simSvc.FindSimilarByID(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("similar: %w", err)
	}
	res := fromInternalResult(&r)
	c.obs.observeDegraded("similar", res.DegradedPaths)
	return res, nil
}

// SimilarTo compares an unsaved document with the stored corpus.
func (c *Client) SimilarTo(ctx context.Context, doc Document) (_ Result, err error) {
	start := time.Now()
	defer func() { c.obs.observe("similar_to", start, err) }()

	target, err := toInternalDocument(&doc)
	if err != nil {
		return Result{}, fmt.Errorf("similar to: %w", err)
	}
	corpus, err := c.corpus.LoadCorpus(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("similar to: %w", err)
	}
	r, err := c.simSvc.FindSimilar(ctx, &target, corpus)
	if err != nil {
		return Result{}, fmt.Errorf("similar to: %w", err)
	}
	res := fromInternalResult(&r)
	c.obs.observeDegraded("similar_to", res.DegradedPaths)
	return res, nil
}

// Rebuild reloads the corpus into the lexical index immediately.
func (c *Client) Rebuild(ctx context.Context) (_ IndexStats, err error) {
	start := time.Now()
	defer func() { c.obs.observe("rebuild", start, err) }()

	stats, err := c.rebuilder.Rebuild(ctx)
	if err != nil {
		return IndexStats{}, fmt.Errorf("rebuild: %w", err)
	}
	return fromInternalStats(stats), nil
}
