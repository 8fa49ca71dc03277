// Package lexical implements a field-partitioned BM25 inverted index with
// copy-on-write snapshots: searches run against an immutable snapshot while
// a rebuild constructs its replacement out of place.
package lexical

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/simdex/internal/domain"
	"github.com/kailas-cloud/simdex/internal/domain/document"
	"github.com/kailas-cloud/simdex/internal/domain/engine"
	"github.com/kailas-cloud/simdex/internal/domain/score"
	"github.com/kailas-cloud/simdex/internal/domain/text"
	"github.com/kailas-cloud/simdex/internal/usecase/chunking"
)

// Posting records how often a term occurs in one field of one document.
type Posting struct {
	DocumentID string
	Field      document.FieldName
	TF         int
}

// Stats describes a built snapshot.
type Stats struct {
	Version   string
	Documents int
	Terms     int
	BuiltAt   time.Time
}

type fieldStats struct {
	lengths map[string]int // document ID -> token count
	avgLen  float64
}

// snapshot is never mutated after publication.
type snapshot struct {
	stats    Stats
	postings map[string][]Posting
	fields   map[document.FieldName]*fieldStats
	// docFreq[field][term] = number of documents whose field contains term.
	docFreq map[document.FieldName]map[string]int
}

// Index is the BM25 index. The zero value is not usable; call New.
type Index struct {
	params  engine.BM25Params
	chunker *chunking.Engine

	current atomic.Pointer[snapshot]
	buildMu sync.Mutex
}

// New creates an empty index. Search fails with domain.ErrIndexNotBuilt until
// the first Build.
func New(params engine.BM25Params, chunker *chunking.Engine) *Index {
	if params.K1 <= 0 {
		params.K1 = 1.5
	}
	if params.B < 0 || params.B > 1 {
		params.B = 0.75
	}
	return &Index{params: params, chunker: chunker}
}

// Ready reports whether a snapshot has been published.
func (idx *Index) Ready() bool {
	return idx.current.Load() != nil
}

// Stats returns the statistics of the current snapshot.
func (idx *Index) Stats() (Stats, error) {
	snap := idx.current.Load()
	if snap == nil {
		return Stats{}, domain.ErrIndexNotBuilt
	}
	return snap.stats, nil
}

// Build constructs a new snapshot from corpus and atomically publishes it.
// In-flight searches finish against the previous snapshot. Concurrent builds
// are serialized; a cancelled build leaves the current snapshot untouched.
func (idx *Index) Build(ctx context.Context, corpus []document.Document) (Stats, error) {
	idx.buildMu.Lock()
	defer idx.buildMu.Unlock()

	snap := &snapshot{
		postings: make(map[string][]Posting),
		fields:   make(map[document.FieldName]*fieldStats, len(document.Fields)),
		docFreq:  make(map[document.FieldName]map[string]int, len(document.Fields)),
	}
	for _, f := range document.Fields {
		snap.fields[f] = &fieldStats{lengths: make(map[string]int)}
		snap.docFreq[f] = make(map[string]int)
	}

	seen := make(map[string]struct{}, len(corpus))
	for i := range corpus {
		if err := ctx.Err(); err != nil {
			return Stats{}, fmt.Errorf("build cancelled: %w", err)
		}
		doc := &corpus[i]
		if _, dup := seen[doc.ID()]; dup || !doc.IsCandidate() {
			continue
		}
		seen[doc.ID()] = struct{}{}
		idx.addDocument(snap, doc)
	}

	for _, fs := range snap.fields {
		if len(fs.lengths) == 0 {
			continue
		}
		total := 0
		for _, n := range fs.lengths {
			total += n
		}
		fs.avgLen = float64(total) / float64(len(fs.lengths))
	}

	snap.stats = Stats{
		Version:   uuid.NewString(),
		Documents: len(seen),
		Terms:     len(snap.postings),
		BuiltAt:   time.Now().UTC(),
	}
	idx.current.Store(snap)
	return snap.stats, nil
}

func (idx *Index) addDocument(snap *snapshot, doc *document.Document) {
	for _, f := range document.Fields {
		raw := doc.Field(f)
		if text.IsMeaningless(raw) {
			continue
		}
		counts := make(map[string]int)
		length := 0
		chunks := idx.chunker.ChunkField(doc.ID(), f, raw)
		for _, seg := range chunking.Coverage(raw, chunks) {
			for _, tok := range text.Tokenize(seg) {
				counts[tok]++
				length++
			}
		}
		if length == 0 {
			continue
		}
		snap.fields[f].lengths[doc.ID()] = length
		for term, tf := range counts {
			snap.postings[term] = append(snap.postings[term], Posting{DocumentID: doc.ID(), Field: f, TF: tf})
			snap.docFreq[f][term]++
		}
	}
}

// Search scores documents against query and returns the top limit hits,
// score descending, ties by document ID ascending. Each query token
// contributes once per occurrence; per-field contributions are summed.
func (idx *Index) Search(ctx context.Context, query string, limit int) ([]score.Hit, error) {
	snap := idx.current.Load()
	if snap == nil {
		return nil, domain.ErrIndexNotBuilt
	}
	if limit <= 0 {
		return nil, nil
	}

	scores := make(map[string]float64)
	for _, term := range text.Tokenize(query) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("search cancelled: %w", err)
		}
		for _, p := range snap.postings[term] {
			scores[p.DocumentID] += idx.contribution(snap, term, p)
		}
	}

	hits := make([]score.Hit, 0, len(scores))
	for id, s := range scores {
		if s > 0 {
			hits = append(hits, score.Hit{DocumentID: id, Score: s})
		}
	}
	score.SortHits(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// contribution is the BM25 term weight of one posting within its field.
func (idx *Index) contribution(snap *snapshot, term string, p Posting) float64 {
	fs := snap.fields[p.Field]
	n := float64(len(fs.lengths))
	df := float64(snap.docFreq[p.Field][term])
	idf := math.Log(1 + (n-df+0.5)/(df+0.5))

	tf := float64(p.TF)
	norm := 1 - idx.params.B
	if fs.avgLen > 0 {
		norm += idx.params.B * float64(fs.lengths[p.DocumentID]) / fs.avgLen
	}
	return idf * tf * (idx.params.K1 + 1) / (tf + idx.params.K1*norm)
}
