package simdex

import (
	"fmt"
	"time"

	domdoc "github.com/kailas-cloud/simdex/internal/domain/document"
	"github.com/kailas-cloud/simdex/internal/domain/score"
	"github.com/kailas-cloud/simdex/internal/usecase/lexical"
	"github.com/kailas-cloud/simdex/internal/usecase/similarity"
)

// Document is a résumé record. Only the three essay fields are compared.
type Document struct {
	ID               string
	Name             string
	Position         string
	GrowthBackground string
	Motivation       string
	CareerHistory    string
	CreatedAt        time.Time
}

// RiskBand is the plagiarism-risk label of a query.
type RiskBand string

// RiskBand constants.
const (
	RiskNone     RiskBand = "none"
	RiskLow      RiskBand = "low"
	RiskModerate RiskBand = "moderate"
	RiskHigh     RiskBand = "high"
)

// Result is the outcome of a similarity query.
type Result struct {
	TargetID     string
	FieldSummary map[string]string
	Matches      []Match
	Risk         RiskSummary
	// DegradedPaths names retrieval methods that were unavailable.
	DegradedPaths []string
	// IndexReady is false before the first successful lexical build.
	IndexReady bool
}

// Match is one accepted similar document.
type Match struct {
	DocumentID   string
	FinalScore   float64
	VectorScore  float64
	TextScore    float64
	KeywordScore float64
	Methods      []string
}

// RiskSummary classifies the whole result set.
type RiskSummary struct {
	Band       RiskBand
	MaxScore   float64
	Considered int
	Accepted   int
}

// IndexStats describes a lexical index build.
type IndexStats struct {
	Version   string
	Documents int
	Terms     int
	BuiltAt   time.Time
}

func toInternalDocument(d *Document) (domdoc.Document, error) {
	fields := make(map[domdoc.FieldName]string, 3)
	for f, v := range map[domdoc.FieldName]string{
		domdoc.GrowthBackground: d.GrowthBackground,
		domdoc.Motivation:       d.Motivation,
		domdoc.CareerHistory:    d.CareerHistory,
	} {
		if v != "" {
			fields[f] = v
		}
	}
	doc, err := domdoc.New(d.ID, d.Name, d.Position, fields, d.CreatedAt)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return doc, nil
}

func fromInternalDocument(d *domdoc.Document) Document {
	return Document{
		ID:               d.ID(),
		Name:             d.Name(),
		Position:         d.Position(),
		GrowthBackground: d.Field(domdoc.GrowthBackground),
		Motivation:       d.Field(domdoc.Motivation),
		CareerHistory:    d.Field(domdoc.CareerHistory),
		CreatedAt:        d.CreatedAt(),
	}
}

func fromInternalResult(r *similarity.Result) Result {
	summary := make(map[string]string, len(r.Original.FieldSummary))
	for f, v := range r.Original.FieldSummary {
		summary[string(f)] = v
	}
	matches := make([]Match, len(r.Results))
	for i, m := range r.Results {
		matches[i] = Match{
			DocumentID:   m.DocumentID,
			FinalScore:   m.FinalScore,
			VectorScore:  m.ComponentScores.Vector,
			TextScore:    m.ComponentScores.Text,
			KeywordScore: m.ComponentScores.Keyword,
			Methods:      methodNames(m.MethodsUsed),
		}
	}
	return Result{
		TargetID:     r.Original.ID,
		FieldSummary: summary,
		Matches:      matches,
		Risk: RiskSummary{
			Band:       RiskBand(r.RiskSummary.Band),
			MaxScore:   r.RiskSummary.MaxScore,
			Considered: r.RiskSummary.TotalConsidered,
			Accepted:   r.RiskSummary.Accepted,
		},
		DegradedPaths: methodNames(r.DegradedPaths),
		IndexReady:    r.IndexReady,
	}
}

func methodNames(ms []score.Method) []string {
	if len(ms) == 0 {
		return nil
	}
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = string(m)
	}
	return out
}

func fromInternalStats(s lexical.Stats) IndexStats {
	return IndexStats{
		Version:   s.Version,
		Documents: s.Documents,
		Terms:     s.Terms,
		BuiltAt:   s.BuiltAt,
	}
}
