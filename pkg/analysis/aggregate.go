package analysis

import (
	"math"

	"github.com/elelem/visibility/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Aggregator combines six signals into a visibility score in [0, 100]
type Aggregator struct {
	weights model.Weights
}

// NewAggregator validates weights once. Invalid weights are a startup error.
func NewAggregator(weights model.Weights) (*Aggregator, error) {
	if err := weights.Validate(); err != nil {
		return nil, goerr.Wrap(err, "failed to create aggregator")
	}
	return &Aggregator{weights: weights}, nil
}

// Weights returns the configured weights
func (a *Aggregator) Weights() model.Weights {
	return a.weights
}

// Score returns the weighted sum of signals multiplied by 100 and rounded to 2 decimals.
// Each signal is clamped into [0, 1] before weighting.
func (a *Aggregator) Score(s model.Signals) float64 {
	w := a.weights
	sum := w.Sentiment*model.Clamp01(s.Sentiment) +
		w.Semantic*model.Clamp01(s.Semantic) +
		w.Keyword*model.Clamp01(s.Keyword) +
		w.BrandFreq*model.Clamp01(s.BrandFreq) +
		w.Correctness*model.Clamp01(s.Correctness) +
		w.Consistency*model.Clamp01(s.Consistency)

	score := round2(sum * 100)
	return math.Max(0, math.Min(100, score))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
