// Package score holds the per-query scoring records passed between the
// retrieval paths, the fusion ranker and the consistency gate.
package score

import (
	"math"
	"sort"
)

// Method tags a retrieval path.
type Method string

const (
	// Vector is the dense nearest-neighbour path.
	Vector Method = "vector"
	// Text is the field-weighted token similarity path.
	Text Method = "text"
	// Keyword is the BM25 lexical path.
	Keyword Method = "keyword"
)

// Methods lists every method in reporting order.
var Methods = []Method{Vector, Text, Keyword}

// Hit is a single (document, score) pair produced by one retrieval path.
type Hit struct {
	DocumentID string
	Score      float64
}

// Optional is a score that may be absent. Absence means "no signal",
// which is not the same as a zero score.
type Optional struct {
	Value float64
	Valid bool
}

// Some wraps a present score.
func Some(v float64) Optional { return Optional{Value: v, Valid: true} }

// None is the absent score.
func None() Optional { return Optional{} }

// Or returns the value or def when absent.
func (o Optional) Or(def float64) float64 {
	if o.Valid {
		return o.Value
	}
	return def
}

// Candidate collects the raw per-method scores for one candidate document.
type Candidate struct {
	DocumentID string
	Vector     Optional
	Lexical    Optional
	Field      Optional
}

// Methods returns the methods that produced a score, in reporting order.
func (c Candidate) Methods() []Method {
	out := make([]Method, 0, 3)
	if c.Vector.Valid {
		out = append(out, Vector)
	}
	if c.Field.Valid {
		out = append(out, Text)
	}
	if c.Lexical.Valid {
		out = append(out, Keyword)
	}
	return out
}

// Components are the normalized [0,1] component scores of a fused result.
// Missing methods contribute 0.
type Components struct {
	Vector  float64 `json:"vector"`
	Text    float64 `json:"text"`
	Keyword float64 `json:"keyword"`
}

// Fused is a candidate after fusion.
type Fused struct {
	DocumentID string
	FinalScore float64
	Components Components
	Methods    []Method
}

// HasMethod reports whether m contributed to the result.
func (f Fused) HasMethod(m Method) bool {
	for _, x := range f.Methods {
		if x == m {
			return true
		}
	}
	return false
}

// SortFused orders results by final score descending, then by number of
// contributing methods descending, then by document ID ascending.
func SortFused(results []Fused) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].FinalScore != results[j].FinalScore {
			return results[i].FinalScore > results[j].FinalScore
		}
		if len(results[i].Methods) != len(results[j].Methods) {
			return len(results[i].Methods) > len(results[j].Methods)
		}
		return results[i].DocumentID < results[j].DocumentID
	})
}

// SortHits orders hits by score descending, ties by document ID ascending.
func SortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocumentID < hits[j].DocumentID
	})
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Clamp01 clamps v into [0,1].
func Clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
