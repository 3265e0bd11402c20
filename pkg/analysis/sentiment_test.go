package analysis_test

import (
	"context"
	"testing"

	"github.com/elelem/visibility/pkg/analysis"
	"github.com/m-mizutani/gt"
)

func TestLexiconSentiment(t *testing.T) {
	s := analysis.NewLexiconSentiment()

	testCases := []struct {
		name  string
		text  string
		check func(t *testing.T, score float64)
	}{
		{
			name:  "neutral text",
			text:  "The store opens at nine.",
			check: func(t *testing.T, score float64) { gt.Equal(t, score, 0.0) },
		},
		{
			name:  "empty text",
			text:  "",
			check: func(t *testing.T, score float64) { gt.Equal(t, score, 0.0) },
		},
		{
			name:  "blank text",
			text:  "  \n\t",
			check: func(t *testing.T, score float64) { gt.Equal(t, score, 0.0) },
		},
		{
			name:  "positive text",
			text:  "Daraz is a great and reliable platform.",
			check: func(t *testing.T, score float64) { gt.True(t, score > 0) },
		},
		{
			name:  "negative text",
			text:  "Delivery was terrible and support was awful.",
			check: func(t *testing.T, score float64) { gt.True(t, score < 0) },
		},
		{
			name:  "strongly negative words",
			text:  "Daraz delivery was disgusting, lousy and pathetic.",
			check: func(t *testing.T, score float64) { gt.True(t, score < 0) },
		},
		{
			name:  "negative words outside a small lexicon",
			text:  "Daraz is a ripoff; shoppers feel cheated and furious.",
			check: func(t *testing.T, score float64) { gt.True(t, score < 0) },
		},
		{
			name:  "negation flips polarity",
			text:  "The service is not good.",
			check: func(t *testing.T, score float64) { gt.True(t, score < 0) },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			score, err := s.Score(context.Background(), tc.text)
			gt.NoError(t, err)
			gt.True(t, score >= -1 && score <= 1)
			tc.check(t, score)
		})
	}
}

func TestLexiconSentimentModifiers(t *testing.T) {
	s := analysis.NewLexiconSentiment()

	base := s.Compound("The app is good.")
	gt.True(t, base > 0)
	gt.True(t, s.Compound("The app is very good.") > base)
	gt.True(t, s.Compound("The app is good!!!") > base)

	// the clause after "but" dominates
	gt.True(t, s.Compound("The app is good but delivery is terrible.") < 0)
}
