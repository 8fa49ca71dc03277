// Package dense stores one embedding per document in a Valkey/Redis hash and
// answers nearest-neighbour queries through an FT vector index.
package dense

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/simdex/internal/db"
	"github.com/kailas-cloud/simdex/internal/domain"
	"github.com/kailas-cloud/simdex/internal/domain/score"
)

const (
	vecNamespace   = "vec:"
	fieldDocID     = "document_id"
	fieldVector    = "vector"
	indexSuffix    = "idx"
	metaSuffix     = "vecmeta"
	metaDimensions = "dimensions"
	metaAlgorithm  = "algorithm"
	defaultM       = 16
	defaultEFBuild = 200
)

// store is the consumer interface for vector storage (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Options configures the vector index.
type Options struct {
	Dimensions  int
	Algorithm   db.VectorAlgorithm
	M           int
	EFConstruct int
}

// Repo is the dense retrieval adapter.
type Repo struct {
	store store
	opts  Options
}

// New creates a dense repository.
func New(s store, opts Options) *Repo {
	if opts.Algorithm == "" {
		opts.Algorithm = db.VectorHNSW
	}
	if opts.M <= 0 {
		opts.M = defaultM
	}
	if opts.EFConstruct <= 0 {
		opts.EFConstruct = defaultEFBuild
	}
	return &Repo{store: s, opts: opts}
}

// IndexName is the FT index holding document vectors.
func IndexName() string {
	return domain.KeyPrefix + vecNamespace + indexSuffix
}

// EnsureIndex creates the vector index unless it already exists with the
// configured dimensions and algorithm. An index built with other settings is
// dropped and recreated; stored vectors are kept and re-indexed.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	def, err := r.indexDefinition()
	if err != nil {
		return err
	}

	name := IndexName()
	exists, err := r.store.IndexExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check index %s: %w", name, err)
	}
	if exists {
		meta, err := r.store.HGetAll(ctx, metaKey())
		if err != nil {
			return fmt.Errorf("read index meta: %w", err)
		}
		if r.matches(meta) {
			return nil
		}
		if err := r.store.DropIndex(ctx, name); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
			return fmt.Errorf("drop index %s: %w", name, err)
		}
	}

	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	if err := r.store.HSet(ctx, metaKey(), r.meta()); err != nil {
		return fmt.Errorf("write index meta: %w", err)
	}
	return nil
}

func (r *Repo) meta() map[string]string {
	return map[string]string{
		metaDimensions: strconv.Itoa(r.opts.Dimensions),
		metaAlgorithm:  string(r.opts.Algorithm),
	}
}

func (r *Repo) matches(meta map[string]string) bool {
	want := r.meta()
	return meta[metaDimensions] == want[metaDimensions] && meta[metaAlgorithm] == want[metaAlgorithm]
}

func (r *Repo) indexDefinition() (*db.IndexDefinition, error) {
	b := db.NewIndex(IndexName()).
		OnHash().
		Prefix(domain.KeyPrefix + vecNamespace).
		Tag(fieldDocID)

	switch r.opts.Algorithm {
	case db.VectorFlat:
		b = b.VectorFlat(fieldVector, r.opts.Dimensions, db.DistanceCosine, 0)
	default:
		b = b.VectorHNSW(fieldVector, r.opts.Dimensions, db.DistanceCosine, r.opts.M, r.opts.EFConstruct)
	}

	def, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build vector index: %w", err)
	}
	return def, nil
}

// Upsert stores the vector for a document.
func (r *Repo) Upsert(ctx context.Context, id string, vector []float32) error {
	if len(vector) != r.opts.Dimensions {
		return fmt.Errorf("vector for %s has %d dimensions, index expects %d", id, len(vector), r.opts.Dimensions)
	}
	key := vecKey(id)
	fields := map[string]string{
		fieldDocID:  id,
		fieldVector: db.EncodeVector(vector),
	}
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// Delete removes the vector for a document. Missing vectors are not an error.
func (r *Repo) Delete(ctx context.Context, id string) error {
	key := vecKey(id)
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// QueryNearest returns up to topK documents ordered by cosine similarity.
func (r *Repo) QueryNearest(ctx context.Context, vector []float32, topK int) ([]score.Hit, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    IndexName(),
		Vector:       vector,
		K:            topK,
		ReturnFields: []string{fieldDocID},
	})
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}
	if sr == nil {
		return nil, nil
	}

	hits := make([]score.Hit, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		id := e.Fields[fieldDocID]
		if id == "" {
			id = strings.TrimPrefix(e.Key, domain.KeyPrefix+vecNamespace)
		}
		hits = append(hits, score.Hit{DocumentID: id, Score: e.Score})
	}
	return hits, nil
}

func vecKey(id string) string {
	return domain.KeyPrefix + vecNamespace + id
}

// metaKey lives outside the indexed prefix.
func metaKey() string {
	return domain.KeyPrefix + metaSuffix
}
