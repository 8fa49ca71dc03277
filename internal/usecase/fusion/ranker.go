package fusion

import (
	"math"

	"github.com/kailas-cloud/simdex/internal/domain/engine"
	"github.com/kailas-cloud/simdex/internal/domain/score"
)

// Ranker merges the vector, keyword and text retrieval paths with a fixed
// weight table. A method missing for a candidate contributes 0.
type Ranker struct {
	weights engine.FusionWeights
	norm    float64
}

// New creates a ranker. norm scales raw BM25 scores into [0,1]; values <= 0
// fall back to 10.
func New(weights engine.FusionWeights, norm float64) *Ranker {
	if norm <= 0 {
		norm = 10
	}
	return &Ranker{weights: weights, norm: norm}
}

// Collect unions the three hit lists into per-document candidates.
// Duplicate IDs within one list keep their highest score.
func Collect(vector, lexical, text []score.Hit) map[string]*score.Candidate {
	out := make(map[string]*score.Candidate, len(vector)+len(lexical)+len(text))
	get := func(id string) *score.Candidate {
		c, ok := out[id]
		if !ok {
			c = &score.Candidate{DocumentID: id}
			out[id] = c
		}
		return c
	}
	merge := func(dst *score.Optional, v float64) {
		if !dst.Valid || v > dst.Value {
			*dst = score.Some(v)
		}
	}
	for _, h := range vector {
		merge(&get(h.DocumentID).Vector, h.Score)
	}
	for _, h := range lexical {
		merge(&get(h.DocumentID).Lexical, h.Score)
	}
	for _, h := range text {
		merge(&get(h.DocumentID).Field, h.Score)
	}
	return out
}

// Fuse scores every candidate seen in any list, drops zero scores and sorts
// by final score, then corroborating method count, then document ID.
func (r *Ranker) Fuse(vector, lexical, text []score.Hit) []score.Fused {
	candidates := Collect(vector, lexical, text)
	out := make([]score.Fused, 0, len(candidates))
	for _, c := range candidates {
		f := r.FuseCandidate(*c)
		if f.FinalScore <= 0 {
			continue
		}
		out = append(out, f)
	}
	score.SortFused(out)
	return out
}

// FuseCandidate normalizes one candidate's raw scores and weights them.
func (r *Ranker) FuseCandidate(c score.Candidate) score.Fused {
	comp := score.Components{
		Vector:  score.Clamp01(c.Vector.Or(0)),
		Text:    score.Clamp01(c.Field.Or(0)),
		Keyword: r.NormalizeKeyword(c.Lexical.Or(0)),
	}
	return score.Fused{
		DocumentID: c.DocumentID,
		Components: comp,
		FinalScore: r.Final(comp),
		Methods:    c.Methods(),
	}
}

// NormalizeKeyword maps an unbounded BM25 score into [0,1].
func (r *Ranker) NormalizeKeyword(bm25 float64) float64 {
	return score.Clamp01(bm25 / r.norm)
}

// Final is the weighted sum of components, clamped to [0,1].
func (r *Ranker) Final(c score.Components) float64 {
	v := c.Vector*r.weights.Vector + c.Text*r.weights.Text + c.Keyword*r.weights.Keyword
	return math.Min(1, math.Max(0, v))
}

// WithText replaces the text component with a present score, marks the text
// method as used and recomputes the final score.
func (r *Ranker) WithText(f score.Fused, text float64) score.Fused {
	f.Components.Text = score.Clamp01(text)
	f.FinalScore = r.Final(f.Components)
	if !f.HasMethod(score.Text) {
		methods := make([]score.Method, 0, len(f.Methods)+1)
		if f.HasMethod(score.Vector) {
			methods = append(methods, score.Vector)
		}
		methods = append(methods, score.Text)
		if f.HasMethod(score.Keyword) {
			methods = append(methods, score.Keyword)
		}
		f.Methods = methods
	}
	return f
}
