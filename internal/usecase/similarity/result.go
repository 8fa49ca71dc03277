package similarity

import (
	"github.com/kailas-cloud/simdex/internal/domain/document"
	"github.com/kailas-cloud/simdex/internal/domain/risk"
	"github.com/kailas-cloud/simdex/internal/domain/score"
)

// Result is the outcome of one similarity query.
type Result struct {
	Original    Original     `json:"original"`
	Results     []Match      `json:"results"`
	RiskSummary risk.Summary `json:"risk_summary"`
	// DegradedPaths lists retrieval methods that failed for this query.
	DegradedPaths []score.Method `json:"degraded_paths"`
	// IndexReady is false when the lexical index has never been built; the
	// result set is then empty.
	IndexReady bool `json:"index_ready"`
}

// Original echoes the target document.
type Original struct {
	ID           string                        `json:"id"`
	FieldSummary map[document.FieldName]string `json:"field_summary"`
}

// Match is one accepted candidate.
type Match struct {
	DocumentID      string           `json:"document_id"`
	FinalScore      float64          `json:"final_score"`
	ComponentScores score.Components `json:"component_scores"`
	MethodsUsed     []score.Method   `json:"methods_used"`
}
