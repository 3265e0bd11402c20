package model

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Environment is the deployment environment. It decides which historical sink is used.
type Environment string

const (
	EnvironmentLocal Environment = "LOCAL"
	EnvironmentCloud Environment = "CLOUD"
)

// ParseEnvironment converts a case-insensitive string into Environment
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(strings.ToUpper(strings.TrimSpace(s))) {
	case EnvironmentLocal:
		return EnvironmentLocal, nil
	case EnvironmentCloud:
		return EnvironmentCloud, nil
	default:
		return "", goerr.Wrap(ErrInvalidConfig, "unknown environment", goerr.V("environment", s))
	}
}

// SentimentNormalization decides how the [-1, 1] sentiment enters the [0, 1] aggregator
type SentimentNormalization string

const (
	// SentimentRemap maps sentiment linearly with (s+1)/2
	SentimentRemap SentimentNormalization = "remap"
	// SentimentRaw feeds the raw score, so any negative sentiment contributes zero
	SentimentRaw SentimentNormalization = "raw"
)

// ParseSentimentNormalization converts a string into SentimentNormalization
func ParseSentimentNormalization(s string) (SentimentNormalization, error) {
	switch SentimentNormalization(strings.ToLower(strings.TrimSpace(s))) {
	case SentimentRemap:
		return SentimentRemap, nil
	case SentimentRaw:
		return SentimentRaw, nil
	default:
		return "", goerr.Wrap(ErrInvalidConfig, "unknown sentiment normalization", goerr.V("value", s))
	}
}

// Apply converts a sentiment score into an aggregator signal
func (n SentimentNormalization) Apply(sentiment float64) float64 {
	switch n {
	case SentimentRaw:
		return Clamp01(sentiment)
	default:
		return Clamp01((sentiment + 1) / 2)
	}
}

// Clamp01 limits v into [0, 1]
func Clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
