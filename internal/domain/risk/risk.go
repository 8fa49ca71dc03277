package risk

import "fmt"

// Band is a discretized plagiarism-risk label.
type Band string

const (
	// None means no meaningful similarity was found.
	None Band = "none"
	// Low means weak overlap.
	Low Band = "low"
	// Moderate means substantial overlap worth a manual look.
	Moderate Band = "moderate"
	// High means likely copied content.
	High Band = "high"
)

// Cuts are the lower bounds of the low, moderate and high bands.
type Cuts struct {
	Low      float64 `yaml:"low"`
	Moderate float64 `yaml:"moderate"`
	High     float64 `yaml:"high"`
}

// DefaultCuts returns the standard band boundaries.
func DefaultCuts() Cuts {
	return Cuts{Low: 0.3, Moderate: 0.5, High: 0.8}
}

// Validate checks that the cut points are ordered within [0,1].
func (c Cuts) Validate() error {
	if c.Low < 0 || c.High > 1 || c.Low > c.Moderate || c.Moderate > c.High {
		return fmt.Errorf("risk cuts must satisfy 0 <= low <= moderate <= high <= 1, got %.2f/%.2f/%.2f",
			c.Low, c.Moderate, c.High)
	}
	return nil
}

// Classify maps a score onto a band. Bounds are inclusive on the low side.
func (c Cuts) Classify(score float64) Band {
	switch {
	case score >= c.High:
		return High
	case score >= c.Moderate:
		return Moderate
	case score >= c.Low:
		return Low
	default:
		return None
	}
}

// Summary is the per-query risk classification.
type Summary struct {
	TotalConsidered int     `json:"total_considered"`
	Accepted        int     `json:"accepted"`
	MaxScore        float64 `json:"max_score"`
	Band            Band    `json:"band"`
}
