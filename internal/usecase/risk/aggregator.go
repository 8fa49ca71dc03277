package risk

import (
	"github.com/kailas-cloud/simdex/internal/domain/risk"
	"github.com/kailas-cloud/simdex/internal/domain/score"
)

// Aggregator classifies a result list into a risk summary. It is pure and
// never calls out.
type Aggregator struct {
	cuts risk.Cuts
}

// New creates an aggregator with the given band cut points.
func New(cuts risk.Cuts) *Aggregator {
	return &Aggregator{cuts: cuts}
}

// Summarize reports how many candidates were considered and accepted and
// bands the top score. The band is derived from the rounded max score so
// the two reported values always agree.
func (a *Aggregator) Summarize(considered int, accepted []score.Fused) risk.Summary {
	var maxScore float64
	for _, f := range accepted {
		if f.FinalScore > maxScore {
			maxScore = f.FinalScore
		}
	}
	maxScore = score.Round2(maxScore)
	return risk.Summary{
		TotalConsidered: considered,
		Accepted:        len(accepted),
		MaxScore:        maxScore,
		Band:            a.cuts.Classify(maxScore),
	}
}
