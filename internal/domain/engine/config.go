// Package engine holds the tunables of the retrieval and fusion pipeline.
package engine

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/simdex/internal/domain/document"
	"github.com/kailas-cloud/simdex/internal/domain/risk"
)

// FusionWeights weight each retrieval method in the final score.
type FusionWeights struct {
	Vector  float64 `yaml:"vector"`
	Text    float64 `yaml:"text"`
	Keyword float64 `yaml:"keyword"`
}

// BM25Params are the Okapi BM25 free parameters.
type BM25Params struct {
	K1 float64 `yaml:"k1"`
	B  float64 `yaml:"b"`
}

// Config holds every knob of the similarity pipeline.
type Config struct {
	ChunkSize     int `yaml:"chunk_size"`
	ChunkOverlap  int `yaml:"chunk_overlap"`
	MinChunkChars int `yaml:"min_chunk_chars"`

	FieldWeights    map[document.FieldName]float64 `yaml:"field_weights"`
	FieldThresholds map[document.FieldName]float64 `yaml:"field_thresholds"`

	Fusion               FusionWeights `yaml:"fusion"`
	BM25                 BM25Params    `yaml:"bm25"`
	LexicalNormalization float64       `yaml:"lexical_normalization"`
	HighConfidence       float64       `yaml:"high_confidence"`
	MinScore             float64       `yaml:"min_score"`
	Risk                 risk.Cuts     `yaml:"risk"`

	TopK          int `yaml:"top_k"`
	CandidatePool int `yaml:"candidate_pool"`
	Workers       int `yaml:"workers"`
	SummaryChars  int `yaml:"summary_chars"`
}

// DefaultConfig returns the standard pipeline settings.
func DefaultConfig() Config {
	return Config{
		ChunkSize:     500,
		ChunkOverlap:  50,
		MinChunkChars: 10,
		FieldWeights: map[document.FieldName]float64{
			document.GrowthBackground: 0.4,
			document.Motivation:       0.35,
			document.CareerHistory:    0.25,
		},
		FieldThresholds: map[document.FieldName]float64{
			document.GrowthBackground: 0.2,
			document.Motivation:       0.2,
			document.CareerHistory:    0.2,
		},
		Fusion:               FusionWeights{Vector: 0.5, Text: 0.3, Keyword: 0.2},
		BM25:                 BM25Params{K1: 1.5, B: 0.75},
		LexicalNormalization: 10.0,
		HighConfidence:       0.8,
		Risk:                 risk.DefaultCuts(),
		TopK:                 10,
		CandidatePool:        50,
		Workers:              8,
		SummaryChars:         100,
	}
}

// ApplyDefaults fills zero values from DefaultConfig. Weight and threshold
// tables are filled per missing field so partial overrides keep the rest.
// BM25 b and min_chunk_chars accept zero, so only negative values are
// replaced; decode onto DefaultConfig to keep their defaults for absent keys.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = 0
	}
	if c.MinChunkChars < 0 {
		c.MinChunkChars = d.MinChunkChars
	}
	if c.FieldWeights == nil {
		c.FieldWeights = make(map[document.FieldName]float64, len(d.FieldWeights))
	}
	for f, w := range d.FieldWeights {
		if _, ok := c.FieldWeights[f]; !ok {
			c.FieldWeights[f] = w
		}
	}
	if c.FieldThresholds == nil {
		c.FieldThresholds = make(map[document.FieldName]float64, len(d.FieldThresholds))
	}
	for f, th := range d.FieldThresholds {
		if _, ok := c.FieldThresholds[f]; !ok {
			c.FieldThresholds[f] = th
		}
	}
	if c.Fusion == (FusionWeights{}) {
		c.Fusion = d.Fusion
	}
	if c.BM25.K1 <= 0 {
		c.BM25.K1 = d.BM25.K1
	}
	if c.BM25.B < 0 {
		c.BM25.B = d.BM25.B
	}
	if c.LexicalNormalization <= 0 {
		c.LexicalNormalization = d.LexicalNormalization
	}
	if c.HighConfidence <= 0 {
		c.HighConfidence = d.HighConfidence
	}
	if c.Risk == (risk.Cuts{}) {
		c.Risk = d.Risk
	}
	if c.TopK <= 0 {
		c.TopK = d.TopK
	}
	if c.CandidatePool <= 0 {
		c.CandidatePool = d.CandidatePool
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.SummaryChars <= 0 {
		c.SummaryChars = d.SummaryChars
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	var errs []error

	var weightSum float64
	for f, w := range c.FieldWeights {
		if !f.Valid() {
			errs = append(errs, fmt.Errorf("field_weights: unknown field %q", f))
		}
		if w < 0 {
			errs = append(errs, fmt.Errorf("field_weights.%s must be >= 0, got %g", f, w))
		}
		weightSum += w
	}
	if weightSum <= 0 {
		errs = append(errs, errors.New("field_weights must not all be zero"))
	}
	for f, th := range c.FieldThresholds {
		if !f.Valid() {
			errs = append(errs, fmt.Errorf("field_thresholds: unknown field %q", f))
		}
		if th < 0 || th > 1 {
			errs = append(errs, fmt.Errorf("field_thresholds.%s must be in [0,1], got %g", f, th))
		}
	}
	if c.Fusion.Vector < 0 || c.Fusion.Text < 0 || c.Fusion.Keyword < 0 {
		errs = append(errs, errors.New("fusion weights must be >= 0"))
	}
	if c.Fusion.Vector+c.Fusion.Text+c.Fusion.Keyword <= 0 {
		errs = append(errs, errors.New("fusion weights must not all be zero"))
	}
	if c.BM25.B > 1 {
		errs = append(errs, fmt.Errorf("bm25.b must be in [0,1], got %g", c.BM25.B))
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		errs = append(errs, fmt.Errorf("min_score must be in [0,1], got %g", c.MinScore))
	}
	if err := c.Risk.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
