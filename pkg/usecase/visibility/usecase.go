package visibility

import (
	"time"

	"github.com/elelem/visibility/pkg/analysis"
	"github.com/elelem/visibility/pkg/interfaces"
	"github.com/elelem/visibility/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

const defaultHistoryLimit = 20

// Capabilities holds initialized model handles the pipeline depends on
type Capabilities struct {
	Embedder  interfaces.EmbeddingProvider
	Sentiment interfaces.SentimentProvider
}

// Stores holds the persistence targets of one deployment. History may be nil, in which
// case every run sees an empty history. Archive is optional too.
type Stores struct {
	Index   interfaces.IndexStore
	Status  interfaces.StatusStore
	Sink    interfaces.HistoricalSink
	History interfaces.HistoryProvider
	Archive interfaces.ObjectStorage
}

// UseCase runs visibility analysis and persists its results
type UseCase struct {
	caps         Capabilities
	stores       Stores
	weights      model.Weights
	aggregator   *analysis.Aggregator
	norm         model.SentimentNormalization
	policies     map[Step]StepPolicy
	historyLimit int
	now          func() time.Time
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithWeights replaces the default aggregator weights
func WithWeights(w model.Weights) Option {
	return func(uc *UseCase) {
		uc.weights = w
	}
}

func WithSentimentNormalization(norm model.SentimentNormalization) Option {
	return func(uc *UseCase) {
		uc.norm = norm
	}
}

// WithStepPolicy sets the failure policy of one persistence step
func WithStepPolicy(step Step, policy StepPolicy) Option {
	return func(uc *UseCase) {
		uc.policies[step] = policy
	}
}

func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) {
		uc.now = now
	}
}

// WithHistoryLimit sets how many prior sentiment scores feed the consistency signal
func WithHistoryLimit(n int) Option {
	return func(uc *UseCase) {
		uc.historyLimit = n
	}
}

// New creates a new visibility UseCase. Weights are validated here so a bad configuration
// fails before any request is served.
func New(caps Capabilities, stores Stores, opts ...Option) (*UseCase, error) {
	uc := &UseCase{
		caps:         caps,
		stores:       stores,
		weights:      model.DefaultWeights(),
		norm:         model.SentimentRemap,
		policies:     defaultPolicies(),
		historyLimit: defaultHistoryLimit,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	agg, err := analysis.NewAggregator(uc.weights)
	if err != nil {
		return nil, err
	}
	uc.aggregator = agg

	for step, p := range uc.policies {
		if err := p.Validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid step policy", goerr.V("step", step))
		}
	}
	if uc.historyLimit < 0 {
		return nil, goerr.Wrap(model.ErrInvalidConfig, "history limit must not be negative",
			goerr.V("limit", uc.historyLimit))
	}

	return uc, nil
}

// Weights returns the aggregator weights in use
func (u *UseCase) Weights() model.Weights {
	return u.aggregator.Weights()
}
