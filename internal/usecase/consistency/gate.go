package consistency

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/simdex/internal/domain/document"
	"github.com/kailas-cloud/simdex/internal/domain/score"
	"github.com/kailas-cloud/simdex/internal/usecase/fieldsim"
	"github.com/kailas-cloud/simdex/internal/usecase/fusion"
)

// Gate re-derives a bidirectional text score for each fused candidate and
// rejects candidates that fail the per-field minimum thresholds.
type Gate struct {
	sim        *fieldsim.Engine
	ranker     *fusion.Ranker
	thresholds map[document.FieldName]float64
	override   float64
}

// New creates a gate. A candidate whose fused score exceeds override passes
// regardless of field thresholds.
func New(
	sim *fieldsim.Engine, ranker *fusion.Ranker,
	thresholds map[document.FieldName]float64, override float64,
) *Gate {
	th := make(map[document.FieldName]float64, len(thresholds))
	for f, v := range thresholds {
		th[f] = v
	}
	return &Gate{sim: sim, ranker: ranker, thresholds: th, override: override}
}

// SymmetricScore averages the A→B and B→A scores. With one direction absent
// the other is returned; with both absent the pair has no text signal.
func (g *Gate) SymmetricScore(a, b fieldsim.Profile) score.Optional {
	ab := g.sim.Score(a, b)
	ba := g.sim.Score(b, a)
	switch {
	case ab.Valid && ba.Valid:
		return score.Some((ab.Value + ba.Value) / 2)
	case ab.Valid:
		return ab
	case ba.Valid:
		return ba
	default:
		return score.None()
	}
}

// PassesFieldThresholds checks the thresholds of fields both sides fill in.
// At least half of the checkable fields must clear their threshold, unless
// fused exceeds the high-confidence override. No checkable field passes.
func (g *Gate) PassesFieldThresholds(a, b fieldsim.Profile, fused float64) bool {
	if fused > g.override {
		return true
	}
	per := g.sim.PerField(a, b)
	checkable, passed := 0, 0
	for _, f := range document.Fields {
		th, ok := g.thresholds[f]
		if !ok {
			continue
		}
		sim, ok := per[f]
		if !ok {
			continue
		}
		checkable++
		if sim >= th {
			passed++
		}
	}
	if checkable == 0 {
		return true
	}
	return passed*2 >= checkable
}

// Apply corrects and filters fused results against target. Candidates
// without a profile cannot be verified and are dropped. The context is
// checked between candidates.
func (g *Gate) Apply(
	ctx context.Context, target fieldsim.Profile,
	fused []score.Fused, profiles map[string]fieldsim.Profile,
) ([]score.Fused, error) {
	out := make([]score.Fused, 0, len(fused))
	for _, f := range fused {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("consistency gate: %w", err)
		}
		if f.DocumentID == target.ID {
			continue
		}
		p, ok := profiles[f.DocumentID]
		if !ok {
			continue
		}
		sym := g.SymmetricScore(target, p)
		if !sym.Valid {
			continue
		}
		f = g.ranker.WithText(f, sym.Value)
		if f.FinalScore <= 0 {
			continue
		}
		if !g.PassesFieldThresholds(target, p, f.FinalScore) {
			continue
		}
		out = append(out, f)
	}
	score.SortFused(out)
	return out, nil
}
