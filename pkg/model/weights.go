package model

import (
	"math"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

const weightSumTolerance = 1e-9

// Weights are the aggregation weights of the six signals
type Weights struct {
	Sentiment   float64 `yaml:"sentiment"`
	Semantic    float64 `yaml:"semantic"`
	Keyword     float64 `yaml:"keyword"`
	BrandFreq   float64 `yaml:"brand_freq"`
	Correctness float64 `yaml:"correctness"`
	Consistency float64 `yaml:"consistency"`
}

// DefaultWeights returns the production weight set
func DefaultWeights() Weights {
	return Weights{
		Sentiment:   0.20,
		Semantic:    0.25,
		Keyword:     0.15,
		BrandFreq:   0.15,
		Correctness: 0.15,
		Consistency: 0.10,
	}
}

// Sum returns the total of all weights
func (w Weights) Sum() float64 {
	return w.Sentiment + w.Semantic + w.Keyword + w.BrandFreq + w.Correctness + w.Consistency
}

// Validate checks that no weight is negative and that weights sum to 1.0
func (w Weights) Validate() error {
	values := map[string]float64{
		"sentiment":   w.Sentiment,
		"semantic":    w.Semantic,
		"keyword":     w.Keyword,
		"brand_freq":  w.BrandFreq,
		"correctness": w.Correctness,
		"consistency": w.Consistency,
	}
	for name, v := range values {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return goerr.Wrap(ErrInvalidWeights, "weight must be a non-negative number", goerr.V("name", name), goerr.V("value", v))
		}
	}

	if sum := w.Sum(); math.Abs(sum-1.0) > weightSumTolerance {
		return goerr.Wrap(ErrInvalidWeights, "weights must sum to 1.0", goerr.V("sum", sum))
	}
	return nil
}

// LoadWeights reads weights from a YAML file and validates them
func LoadWeights(path string) (Weights, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, goerr.Wrap(err, "failed to read weights file", goerr.V("path", path))
	}

	var w Weights
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return Weights{}, goerr.Wrap(err, "failed to parse weights file", goerr.V("path", path))
	}

	if err := w.Validate(); err != nil {
		return Weights{}, goerr.Wrap(err, "weights file is invalid", goerr.V("path", path))
	}
	return w, nil
}
