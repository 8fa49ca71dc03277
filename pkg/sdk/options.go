package simdex

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/simdex/internal/domain/engine"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs    []string
	password string

	postgresDSN string

	embedder         Embedder
	vectorDimensions int
	hnswM            int
	hnswEFConstruct  int
	denseTimeout     time.Duration

	engine          engine.Config
	rebuildInterval time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithRedis sets the Redis instance holding vectors, the embedding cache and,
// unless WithPostgres is given, the documents.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithPostgres stores documents in PostgreSQL instead of Redis.
func WithPostgres(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.postgresDSN = dsn
	})
}

// WithEmbedder enables the dense vector path.
// Without it similarity runs on the lexical and field paths only.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithVectorDimensions sets the embedding size. Required with WithEmbedder.
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.vectorDimensions = dim
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
// Defaults: M=16, EFConstruct=200.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithDenseTimeout bounds embedding plus vector lookup per query. Default 3s.
func WithDenseTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.denseTimeout = d
	})
}

// WithEngineConfig replaces the scoring configuration. Start from
// engine.DefaultConfig: zero fields take defaults except BM25 b and
// MinChunkChars, where zero is a valid setting.
func WithEngineConfig(cfg engine.Config) Option {
	return optionFunc(func(c *clientConfig) {
		c.engine = cfg
	})
}

// WithRebuildInterval limits how often writes trigger a lexical rebuild.
// Zero rebuilds after every write burst.
func WithRebuildInterval(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.rebuildInterval = d
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
