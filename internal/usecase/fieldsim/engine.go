// Package fieldsim computes field-weighted token-set similarity between résumés.
package fieldsim

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/simdex/internal/domain/document"
	"github.com/kailas-cloud/simdex/internal/domain/score"
	"github.com/kailas-cloud/simdex/internal/domain/text"
)

// Profile is a pre-tokenized document. Build it once per query and reuse it
// across comparisons.
type Profile struct {
	ID     string
	fields map[document.FieldName]text.TokenSet // meaningful fields only
	all    text.TokenSet
}

// NewProfile tokenizes every meaningful field of doc.
func NewProfile(doc *document.Document) Profile {
	p := Profile{
		ID:     doc.ID(),
		fields: make(map[document.FieldName]text.TokenSet, len(document.Fields)),
		all:    make(text.TokenSet),
	}
	for _, f := range document.Fields {
		raw := doc.Field(f)
		if text.IsMeaningless(raw) {
			continue
		}
		set := text.NewTokenSet(raw)
		p.fields[f] = set
		for t := range set {
			p.all[t] = struct{}{}
		}
	}
	return p
}

// Has reports whether field f carries meaningful text.
func (p Profile) Has(f document.FieldName) bool {
	_, ok := p.fields[f]
	return ok
}

// Empty reports whether no field carries meaningful text.
func (p Profile) Empty() bool { return len(p.fields) == 0 }

// Engine scores document pairs with a fixed field weight table.
type Engine struct {
	weights map[document.FieldName]float64
}

// New creates an engine. Fields missing from weights are never compared.
func New(weights map[document.FieldName]float64) *Engine {
	w := make(map[document.FieldName]float64, len(weights))
	for f, v := range weights {
		w[f] = v
	}
	return &Engine{weights: w}
}

// PerField returns the Jaccard similarity of every field where both sides
// carry meaningful text. Other fields are absent, not zero.
func (e *Engine) PerField(a, b Profile) map[document.FieldName]float64 {
	out := make(map[document.FieldName]float64, len(document.Fields))
	for _, f := range document.Fields {
		sa, okA := a.fields[f]
		sb, okB := b.fields[f]
		if !okA || !okB {
			continue
		}
		out[f] = text.Jaccard(sa, sb)
	}
	return out
}

// Weighted returns Σ(wᵢ·simᵢ)/Σwᵢ over comparable fields, or None when no
// weighted field is comparable.
func (e *Engine) Weighted(a, b Profile) score.Optional {
	var sum, weightSum float64
	for _, f := range document.Fields {
		w := e.weights[f]
		if w <= 0 {
			continue
		}
		sa, okA := a.fields[f]
		sb, okB := b.fields[f]
		if !okA || !okB {
			continue
		}
		sum += w * text.Jaccard(sa, sb)
		weightSum += w
	}
	if weightSum == 0 {
		return score.None()
	}
	return score.Some(sum / weightSum)
}

// Similarity is Weighted over two documents.
func (e *Engine) Similarity(a, b *document.Document) score.Optional {
	return e.Weighted(NewProfile(a), NewProfile(b))
}

// Score is Weighted with a whole-document Jaccard fallback when no field is
// comparable. It is None only when one side has no meaningful text at all.
func (e *Engine) Score(a, b Profile) score.Optional {
	if s := e.Weighted(a, b); s.Valid {
		return s
	}
	if a.Empty() || b.Empty() {
		return score.None()
	}
	return score.Some(text.Jaccard(a.all, b.all))
}

// ScoreAll scores target against every candidate on a bounded worker pool.
// Candidates with no signal are omitted. Output order follows candidates.
func (e *Engine) ScoreAll(ctx context.Context, target Profile, candidates []Profile, workers int) ([]score.Hit, error) {
	if workers <= 0 {
		workers = 1
	}
	scores := make([]score.Optional, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range candidates {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err //nolint:wrapcheck // surfaced below
			}
			scores[i] = e.Score(target, candidates[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("score candidates: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("score candidates: %w", err)
	}

	hits := make([]score.Hit, 0, len(candidates))
	for i, s := range scores {
		if s.Valid {
			hits = append(hits, score.Hit{DocumentID: candidates[i].ID, Score: s.Value})
		}
	}
	return hits, nil
}
