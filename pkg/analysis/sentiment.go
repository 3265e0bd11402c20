package analysis

import (
	"context"
	"strings"

	"github.com/jonreiter/govader"
)

// LexiconSentiment scores text polarity with the VADER lexicon and returns its compound
// score in [-1, 1]. It needs no external model.
type LexiconSentiment struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

// NewLexiconSentiment creates a scorer with the bundled VADER lexicon
func NewLexiconSentiment() *LexiconSentiment {
	return &LexiconSentiment{
		analyzer: govader.NewSentimentIntensityAnalyzer(),
	}
}

// Score returns the compound polarity of text
func (s *LexiconSentiment) Score(_ context.Context, text string) (float64, error) {
	return s.Compound(text), nil
}

// Compound returns the compound polarity of text in [-1, 1]
func (s *LexiconSentiment) Compound(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return s.analyzer.PolarityScores(text).Compound
}
