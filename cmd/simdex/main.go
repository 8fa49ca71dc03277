package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/simdex/internal/config"
	"github.com/kailas-cloud/simdex/internal/db"
	dbRedis "github.com/kailas-cloud/simdex/internal/db/redis"
	"github.com/kailas-cloud/simdex/internal/domain"
	domdoc "github.com/kailas-cloud/simdex/internal/domain/document"
	logpkg "github.com/kailas-cloud/simdex/internal/logger"
	"github.com/kailas-cloud/simdex/internal/metrics"
	"github.com/kailas-cloud/simdex/internal/repository/dense"
	documentrepo "github.com/kailas-cloud/simdex/internal/repository/document"
	"github.com/kailas-cloud/simdex/internal/repository/embcache"
	pgrepo "github.com/kailas-cloud/simdex/internal/repository/postgres"
	"github.com/kailas-cloud/simdex/internal/resilience"
	chiTransport "github.com/kailas-cloud/simdex/internal/transport/chi"
	natsTransport "github.com/kailas-cloud/simdex/internal/transport/nats"
	openaiEmb "github.com/kailas-cloud/simdex/internal/transport/openai"
	"github.com/kailas-cloud/simdex/internal/usecase/chunking"
	documentuc "github.com/kailas-cloud/simdex/internal/usecase/document"
	embeddinguc "github.com/kailas-cloud/simdex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/simdex/internal/usecase/health"
	"github.com/kailas-cloud/simdex/internal/usecase/lexical"
	"github.com/kailas-cloud/simdex/internal/usecase/reindex"
	"github.com/kailas-cloud/simdex/internal/usecase/similarity"
	"github.com/kailas-cloud/simdex/internal/version"
)

// documentStore is what the services need from either document backend.
type documentStore interface {
	Upsert(ctx context.Context, doc *domdoc.Document) (bool, error)
	LoadDocument(ctx context.Context, id string) (domdoc.Document, error)
	LoadCorpus(ctx context.Context) ([]domdoc.Document, error)
	Delete(ctx context.Context, id string) error
}

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting simdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("store_driver", cfg.Store.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.Bool("dense_enabled", cfg.Dense.Enabled),
	)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("simdex stopped with error", zap.Error(err))
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterEngineMetrics()

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return fmt.Errorf("create redis store: %w", err)
	}
	defer store.Close()

	readiness := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, readiness); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database")

	docs, pingers, closeDocs, err := openDocumentStore(ctx, cfg, store)
	if err != nil {
		return err
	}
	defer closeDocs()

	executor := resilience.NewExecutor(cfg.Resilience, logger)

	// Lexical index and its rebuild worker
	chunker := chunking.New(cfg.Engine.ChunkSize, cfg.Engine.ChunkOverlap, cfg.Engine.MinChunkChars)
	index := lexical.New(cfg.Engine.BM25, chunker)
	worker := reindex.New(docs, index, cfg.Events.RebuildMinInterval, logger)
	if _, err := worker.Rebuild(ctx); err != nil {
		// Queries report index_ready=false until a later rebuild succeeds.
		logger.Error("Initial lexical rebuild failed", zap.Error(err))
	}

	similar := similarity.New(cfg.Engine, index).WithStore(docs).WithExecutor(executor)
	documents := documentuc.New(docs, logger).WithRebuild(worker)
	health := healthuc.New(pingers, index)

	if cfg.Dense.Enabled {
		embedder := buildEmbedder(cfg, store, logger)
		vectors := dense.New(store, dense.Options{
			Dimensions:  cfg.Embedding.Vectorizer.Dimensions,
			Algorithm:   db.VectorAlgorithm(strings.ToUpper(cfg.Dense.Algorithm)),
			M:           cfg.Dense.HNSWM,
			EFConstruct: cfg.Dense.HNSWEFConstruct,
		})
		if err := vectors.EnsureIndex(ctx); err != nil {
			return fmt.Errorf("ensure vector index: %w", err)
		}
		similar.WithDense(embedder, vectors, cfg.Dense.Timeout)
		documents.WithVectors(embedder, vectors)
		health.WithEmbedding(embeddingHealthChecker{embedder})
		logger.Info("Dense path enabled",
			zap.String("provider", cfg.Embedding.Vectorizer.Provider),
			zap.String("model", cfg.Embedding.Vectorizer.Model),
			zap.Int("dimensions", cfg.Embedding.Vectorizer.Dimensions),
			zap.String("index", dense.IndexName()),
		)
	}

	var bus *natsTransport.Bus
	if cfg.Events.NATSURL != "" {
		bus, err = natsTransport.Connect(cfg.Events.NATSURL, cfg.Events.Subject, natsTransport.Options{
			Name:     "simdex",
			Executor: executor,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer bus.Close()
		documents.WithEvents(bus)
		health.WithEvents(bus)
		logger.Info("Change events enabled", zap.String("subject", cfg.Events.Subject))
	}

	server := chiTransport.NewServer(similar, docs, documents, worker, health, logger)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })
	if bus != nil {
		g.Go(func() error { return bus.Subscribe(gctx, worker.HandleChange) })
	}
	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Received shutdown signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// openDocumentStore selects the document backend. The returned pinger covers
// every database the process depends on.
func openDocumentStore(
	ctx context.Context, cfg config.Config, store *dbRedis.Store,
) (documentStore, healthuc.DBPinger, func(), error) {
	switch cfg.Store.Driver {
	case "postgres":
		sqlDB, err := pgrepo.OpenDB(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		repo := pgrepo.New(sqlDB)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, nil, nil, fmt.Errorf("ensure postgres schema: %w", err)
		}
		return repo, pingers{store, repo}, func() { _ = sqlDB.Close() }, nil
	default:
		return documentrepo.New(store), store, func() {}, nil
	}
}

// pingers reports the first failing database.
type pingers []healthuc.DBPinger

func (p pingers) Ping(ctx context.Context) error {
	for _, pg := range p {
		if err := pg.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// embeddingHealthChecker adapts domain.Embedder to health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func (h embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction
func buildEmbedder(cfg config.Config, store *dbRedis.Store, logger *zap.Logger) domain.Embedder {
	vec := cfg.Embedding.Vectorizer
	prov := cfg.Embedding.Providers[vec.Provider]

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     prov.APIKey,
		BaseURL:    prov.BaseURL,
		Model:      vec.Model,
		Dimensions: vec.Dimensions,
		Provider:   vec.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = embcache.New(
		base, store, cfg.Embedding.CacheTTL, metrics.EmbeddingCacheTotal, logger,
	)

	var limiter *rate.Limiter
	if cfg.Embedding.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Embedding.RateLimitRPS), cfg.Embedding.RateBurst)
	}
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, vec.Provider, vec.Model, limiter, logger)

	// Instruction prefix (outermost, so the cache key includes it)
	if vec.Instruction != "" {
		return domain.NewInstructionEmbedder(embedder, vec.Instruction)
	}
	return embedder
}
